package usercache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cliffcho242/identity/kv"
)

const (
	// DefaultProfileTTL bounds staleness of the canonical entry.
	DefaultProfileTTL = 300 * time.Second
	// DefaultLookupTTL bounds staleness of indirection pointers. It is
	// intentionally shorter than the profile TTL: a pointer keyed by a
	// mutable field goes stale faster than the record it points to.
	DefaultLookupTTL = 180 * time.Second
)

// Config tunes the two TTL classes of the cache.
type Config struct {
	ProfileTTL time.Duration
	LookupTTL  time.Duration
}

// Lookups carries the mutable lookup-field values known at invalidation
// time. Empty fields are skipped; supplying any subset is valid.
type Lookups struct {
	Email    string
	Username string
	Phone    string
}

// Cache orchestrates the remote tier, the in-process fallback tier, and the
// origin repository. Reads prefer remote, degrade to fallback on remote
// unavailability, and fall through to the origin on a miss; successful
// origin reads are written through before returning.
type Cache struct {
	remote   kv.Backend
	fallback kv.Backend
	repo     Repository
	stats    *Stats
	logger   *zap.Logger

	profileTTL time.Duration
	lookupTTL  time.Duration
}

// New wires a [Cache]. remote, fallback, and repo are required; stats and
// logger may be nil. Zero TTLs fall back to the defaults.
func New(remote, fallback kv.Backend, repo Repository, stats *Stats, logger *zap.Logger, cfg Config) (*Cache, error) {
	if remote == nil || fallback == nil {
		return nil, errors.New("usercache requires both cache tiers")
	}
	if repo == nil {
		return nil, errors.New("usercache requires an origin repository")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProfileTTL <= 0 {
		cfg.ProfileTTL = DefaultProfileTTL
	}
	if cfg.LookupTTL <= 0 {
		cfg.LookupTTL = DefaultLookupTTL
	}

	return &Cache{
		remote:     remote,
		fallback:   fallback,
		repo:       repo,
		stats:      stats,
		logger:     logger,
		profileTTL: cfg.ProfileTTL,
		lookupTTL:  cfg.LookupTTL,
	}, nil
}

func canonicalKey(id int64) string {
	return "user:id:" + strconv.FormatInt(id, 10)
}

func emailKey(email string) string {
	return "user:email:" + NormalizeEmail(email)
}

func usernameKey(username string) string {
	return "user:username:" + username
}

func phoneKey(phone string) string {
	return "user:phone:" + phone
}

// GetByID resolves the canonical cache entry, falling through to the origin
// repository on a miss and writing the canonical entry back on success.
// Indirection pointers are never populated here: each lookup path populates
// only the pointer it actually confirmed.
func (c *Cache) GetByID(ctx context.Context, id int64) (*User, error) {
	key := canonicalKey(id)

	if data, err := c.tierGet(ctx, key); err == nil {
		user, decErr := decodeUser(data)
		if decErr == nil {
			c.stats.inc(CounterHit)
			return user, nil
		}
		c.logger.Warn("dropping corrupt canonical cache entry",
			zap.String("key", key), zap.Error(decErr))
		c.tierDelete(ctx, key)
	}

	c.stats.inc(CounterMiss)
	c.stats.inc(CounterOriginRead)
	rec, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user := Sanitize(rec)
	c.writeCanonical(ctx, user)
	return user, nil
}

// GetByEmail resolves a user through the email indirection pointer. Email
// comparison is case-insensitive.
func (c *Cache) GetByEmail(ctx context.Context, email string) (*User, error) {
	normalized := NormalizeEmail(email)
	return c.getByLookup(ctx, emailKey(normalized), func(ctx context.Context) (*Record, error) {
		return c.repo.FindByEmail(ctx, normalized)
	})
}

// GetByUsername resolves a user through the username indirection pointer.
func (c *Cache) GetByUsername(ctx context.Context, username string) (*User, error) {
	return c.getByLookup(ctx, usernameKey(username), func(ctx context.Context) (*Record, error) {
		return c.repo.FindByUsername(ctx, username)
	})
}

// GetByPhone resolves a user through the phone indirection pointer.
func (c *Cache) GetByPhone(ctx context.Context, phone string) (*User, error) {
	return c.getByLookup(ctx, phoneKey(phone), func(ctx context.Context) (*Record, error) {
		return c.repo.FindByPhone(ctx, phone)
	})
}

// getByLookup implements the shared pointer-then-canonical algorithm. On a
// pointer miss the origin is queried by the lookup field directly, and the
// write-through populates the canonical entry plus the one pointer that was
// just confirmed — never the other two, since those associations were not
// on the lookup path taken.
func (c *Cache) getByLookup(ctx context.Context, pointerKey string, find func(ctx context.Context) (*Record, error)) (*User, error) {
	if data, err := c.tierGet(ctx, pointerKey); err == nil {
		id, parseErr := strconv.ParseInt(string(data), 10, 64)
		if parseErr == nil && id > 0 {
			c.stats.inc(CounterHit)
			user, err := c.GetByID(ctx, id)
			if errors.Is(err, ErrNotFound) {
				// The pointer outlived its user. Drop it so the next
				// lookup goes back to the origin.
				c.tierDelete(ctx, pointerKey)
			}
			return user, err
		}
		c.logger.Warn("dropping corrupt lookup pointer",
			zap.String("key", pointerKey), zap.Error(parseErr))
		c.tierDelete(ctx, pointerKey)
	}

	c.stats.inc(CounterMiss)
	c.stats.inc(CounterOriginRead)
	rec, err := find(ctx)
	if err != nil {
		return nil, err
	}

	user := Sanitize(rec)
	c.writeCanonical(ctx, user)
	c.tierSet(ctx, pointerKey, []byte(strconv.FormatInt(user.ID, 10)), c.lookupTTL)
	return user, nil
}

// Invalidate deletes the canonical entry and the pointers for all supplied
// lookup fields from both cache tiers before returning. Mutation paths must
// call it before acknowledging success to their own callers, so that a
// racing reader can at worst repopulate from the origin's committed state.
// Invalidating keys that are already absent is a no-op; the call is
// idempotent.
func (c *Cache) Invalidate(ctx context.Context, id int64, lookups Lookups) error {
	keys := make([]string, 0, 4)
	keys = append(keys, canonicalKey(id))
	if lookups.Email != "" {
		keys = append(keys, emailKey(lookups.Email))
	}
	if lookups.Username != "" {
		keys = append(keys, usernameKey(lookups.Username))
	}
	if lookups.Phone != "" {
		keys = append(keys, phoneKey(lookups.Phone))
	}

	c.tierDelete(ctx, keys...)
	c.stats.inc(CounterInvalidation)
	return nil
}

// writeCanonical serializes the cache-safe representation and writes it
// through with the profile TTL.
func (c *Cache) writeCanonical(ctx context.Context, user *User) {
	data, err := encodeUser(user)
	if err != nil {
		c.logger.Error("encode cached user", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	c.tierSet(ctx, canonicalKey(user.ID), data, c.profileTTL)
}

// tierGet reads from the remote tier, degrading to the in-process tier when
// the remote reports unavailability. Any error other than a miss is
// absorbed into a miss: a cache failure must never surface as a lookup
// failure.
func (c *Cache) tierGet(ctx context.Context, key string) ([]byte, error) {
	data, err := c.remote.Get(ctx, key)
	if err == nil {
		return data, nil
	}
	if errors.Is(err, kv.ErrMiss) {
		return nil, kv.ErrMiss
	}

	c.logger.Debug("remote cache read degraded", zap.String("key", key), zap.Error(err))
	data, fbErr := c.fallback.Get(ctx, key)
	if fbErr != nil {
		return nil, kv.ErrMiss
	}
	c.stats.inc(CounterFallbackServe)
	return data, nil
}

// tierSet writes through to the remote tier, shifting the write to the
// in-process tier when the remote is unavailable. Failures are absorbed:
// the entry will simply be repopulated by a later read.
func (c *Cache) tierSet(ctx context.Context, key string, value []byte, ttl time.Duration) {
	err := c.remote.Set(ctx, key, value, ttl)
	if err == nil {
		return
	}
	c.logger.Debug("remote cache write degraded", zap.String("key", key), zap.Error(err))
	if fbErr := c.fallback.Set(ctx, key, value, ttl); fbErr != nil {
		c.logger.Debug("fallback cache write failed", zap.String("key", key), zap.Error(fbErr))
	}
}

// tierDelete removes keys from both tiers unconditionally. Invalidation
// must reach the fallback tier even while the remote is healthy, otherwise
// a later outage would resurrect deleted entries from the fallback map.
func (c *Cache) tierDelete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.remote.Delete(ctx, keys...); err != nil {
		c.logger.Debug("remote cache delete degraded", zap.Strings("keys", keys), zap.Error(err))
	}
	if err := c.fallback.Delete(ctx, keys...); err != nil {
		c.logger.Debug("fallback cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
