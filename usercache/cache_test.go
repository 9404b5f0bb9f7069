package usercache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cliffcho242/identity/kv"
)

type fakeRepo struct {
	mu    sync.Mutex
	rows  map[int64]*Record
	calls map[string]int
	fail  error
}

func newFakeRepo(rows ...*Record) *fakeRepo {
	r := &fakeRepo{rows: make(map[int64]*Record), calls: make(map[string]int)}
	for _, row := range rows {
		r.rows[row.ID] = row
	}
	return r
}

func (r *fakeRepo) find(method string, match func(*Record) bool) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[method]++
	if r.fail != nil {
		return nil, r.fail
	}
	for _, row := range r.rows {
		if match(row) {
			clone := *row
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) FindByID(_ context.Context, id int64) (*Record, error) {
	return r.find("id", func(row *Record) bool { return row.ID == id })
}

func (r *fakeRepo) FindByEmail(_ context.Context, email string) (*Record, error) {
	return r.find("email", func(row *Record) bool { return NormalizeEmail(row.Email) == email })
}

func (r *fakeRepo) FindByUsername(_ context.Context, username string) (*Record, error) {
	return r.find("username", func(row *Record) bool { return row.Username == username })
}

func (r *fakeRepo) FindByPhone(_ context.Context, phone string) (*Record, error) {
	return r.find("phone", func(row *Record) bool { return row.Phone == phone })
}

func (r *fakeRepo) callCount(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

func (r *fakeRepo) totalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.calls {
		total += n
	}
	return total
}

// downBackend simulates a remote tier whose circuit is open: every call
// reports unavailability without touching anything.
type downBackend struct{}

func (downBackend) Get(context.Context, string) ([]byte, error) { return nil, kv.ErrUnavailable }
func (downBackend) Set(context.Context, string, []byte, time.Duration) error {
	return kv.ErrUnavailable
}
func (downBackend) Delete(context.Context, ...string) error { return kv.ErrUnavailable }
func (downBackend) Ping(context.Context) error              { return kv.ErrUnavailable }

func aliceRecord() *Record {
	return &Record{
		ID:           42,
		Email:        "alice@example.com",
		Username:     "alice",
		Phone:        "+12425550100",
		FirstName:    "Alice",
		AccountType:  AccountSeeker,
		Active:       true,
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdHNhbHQ$aGFzaGhhc2g",
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func newCacheTest(t *testing.T, repo Repository) (*Cache, *Stats, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	stats := NewStats()
	cache, err := New(kv.NewRedis(rdb, kv.RedisConfig{}, nil), kv.NewLocal(64), repo, stats, nil, Config{})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return cache, stats, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestGetByUsernameWriteThroughBudget(t *testing.T) {
	repo := newFakeRepo(aliceRecord())
	cache, _, mr, done := newCacheTest(t, repo)
	defer done()
	ctx := context.Background()

	user, err := cache.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if user.ID != 42 {
		t.Fatalf("expected id 42, got %d", user.ID)
	}
	if got := repo.totalCalls(); got != 1 {
		t.Fatalf("first lookup: expected exactly 1 origin query, got %d", got)
	}

	// Exactly the canonical entry and the username pointer were written:
	// the email and phone pointers were not on the lookup path.
	if !mr.Exists("user:id:42") {
		t.Fatal("expected canonical entry written through")
	}
	if !mr.Exists("user:username:alice") {
		t.Fatal("expected username pointer written through")
	}
	if mr.Exists("user:email:alice@example.com") || mr.Exists("user:phone:+12425550100") {
		t.Fatal("unconfirmed pointers must not be populated speculatively")
	}

	if _, err := cache.GetByUsername(ctx, "alice"); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if got := repo.totalCalls(); got != 1 {
		t.Fatalf("second lookup must not query the origin, total queries: %d", got)
	}
}

func TestPointerAndCanonicalTTLsDiffer(t *testing.T) {
	repo := newFakeRepo(aliceRecord())
	cache, _, mr, done := newCacheTest(t, repo)
	defer done()

	if _, err := cache.GetByUsername(context.Background(), "alice"); err != nil {
		t.Fatalf("lookup: %v", err)
	}

	canonicalTTL := mr.TTL("user:id:42")
	pointerTTL := mr.TTL("user:username:alice")
	if canonicalTTL != DefaultProfileTTL {
		t.Fatalf("expected canonical TTL %v, got %v", DefaultProfileTTL, canonicalTTL)
	}
	if pointerTTL != DefaultLookupTTL {
		t.Fatalf("expected pointer TTL %v, got %v", DefaultLookupTTL, pointerTTL)
	}
}

func TestGetByEmailMatchesGetByID(t *testing.T) {
	repo := newFakeRepo(aliceRecord())
	cache, _, _, done := newCacheTest(t, repo)
	defer done()
	ctx := context.Background()

	byEmail, err := cache.GetByEmail(ctx, "Alice@Example.COM")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	byID, err := cache.GetByID(ctx, 42)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byEmail.ID != byID.ID {
		t.Fatalf("email and id lookups disagree: %d vs %d", byEmail.ID, byID.ID)
	}
	if byEmail.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", byEmail.Email)
	}
}

func TestCachedEntryStructurallyOmitsPasswordHash(t *testing.T) {
	rec := aliceRecord()
	repo := newFakeRepo(rec)
	cache, _, mr, done := newCacheTest(t, repo)
	defer done()

	if _, err := cache.GetByID(context.Background(), 42); err != nil {
		t.Fatalf("get by id: %v", err)
	}

	raw, err := mr.Get("user:id:42")
	if err != nil {
		t.Fatalf("read raw canonical entry: %v", err)
	}
	if strings.Contains(raw, rec.PasswordHash) {
		t.Fatal("cached entry contains the credential hash")
	}
	if strings.Contains(raw, "password") || strings.Contains(raw, "hash") {
		t.Fatalf("cached entry leaks a credential field: %s", raw)
	}
}

func TestInvalidateOldEmailNeverServesStaleAssociation(t *testing.T) {
	rec := aliceRecord()
	repo := newFakeRepo(rec)
	cache, _, _, done := newCacheTest(t, repo)
	defer done()
	ctx := context.Background()

	if _, err := cache.GetByEmail(ctx, "alice@example.com"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	// Mutation commits in the origin, then invalidates before acking.
	repo.mu.Lock()
	repo.rows[42].Email = "alice@new.example.com"
	repo.mu.Unlock()
	if err := cache.Invalidate(ctx, 42, Lookups{Email: "alice@example.com", Username: "alice", Phone: rec.Phone}); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	if _, err := cache.GetByEmail(ctx, "alice@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old email must not resolve, got %v", err)
	}
	updated, err := cache.GetByEmail(ctx, "alice@new.example.com")
	if err != nil {
		t.Fatalf("new email lookup: %v", err)
	}
	if updated.Email != "alice@new.example.com" {
		t.Fatalf("expected updated record, got %q", updated.Email)
	}
}

func TestInvalidateIdempotent(t *testing.T) {
	repo := newFakeRepo(aliceRecord())
	cache, stats, mr, done := newCacheTest(t, repo)
	defer done()
	ctx := context.Background()

	if _, err := cache.GetByUsername(ctx, "alice"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	lookups := Lookups{Username: "alice"}
	if err := cache.Invalidate(ctx, 42, lookups); err != nil {
		t.Fatalf("first invalidate: %v", err)
	}
	if err := cache.Invalidate(ctx, 42, lookups); err != nil {
		t.Fatalf("second invalidate: %v", err)
	}
	if mr.Exists("user:id:42") || mr.Exists("user:username:alice") {
		t.Fatal("expected keys gone after invalidate")
	}
	if got := stats.Value(CounterInvalidation); got != 2 {
		t.Fatalf("expected 2 invalidations counted, got %d", got)
	}
}

func TestInvalidateWithPartialLookupSet(t *testing.T) {
	repo := newFakeRepo(aliceRecord())
	cache, _, mr, done := newCacheTest(t, repo)
	defer done()
	ctx := context.Background()

	if _, err := cache.GetByUsername(ctx, "alice"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	// Only the id is known at the call site; the username pointer stays
	// behind and ages out via its own shorter TTL.
	if err := cache.Invalidate(ctx, 42, Lookups{}); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("user:id:42") {
		t.Fatal("expected canonical entry gone")
	}
	if !mr.Exists("user:username:alice") {
		t.Fatal("unsupplied pointer should be untouched")
	}
}

func TestFallbackContinuityWithRemoteDown(t *testing.T) {
	repo := newFakeRepo(aliceRecord())
	stats := NewStats()
	cache, err := New(downBackend{}, kv.NewLocal(64), repo, stats, nil, Config{})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	ctx := context.Background()

	first, err := cache.GetByID(ctx, 42)
	if err != nil {
		t.Fatalf("first lookup with remote down: %v", err)
	}
	if first.ID != 42 {
		t.Fatalf("expected id 42, got %d", first.ID)
	}

	second, err := cache.GetByID(ctx, 42)
	if err != nil {
		t.Fatalf("second lookup with remote down: %v", err)
	}
	if second.ID != 42 {
		t.Fatalf("expected id 42, got %d", second.ID)
	}
	if got := repo.callCount("id"); got != 1 {
		t.Fatalf("expected second lookup served from fallback, origin queries: %d", got)
	}
	if got := stats.Value(CounterFallbackServe); got != 1 {
		t.Fatalf("expected 1 fallback serve counted, got %d", got)
	}
}

func TestInvalidateReachesFallbackTier(t *testing.T) {
	repo := newFakeRepo(aliceRecord())
	c, err := New(downBackend{}, kv.NewLocal(64), repo, NewStats(), nil, Config{})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	ctx := context.Background()

	if _, err := c.GetByID(ctx, 42); err != nil {
		t.Fatalf("warm fallback: %v", err)
	}
	if err := c.Invalidate(ctx, 42, Lookups{}); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := c.GetByID(ctx, 42); err != nil {
		t.Fatalf("lookup after invalidate: %v", err)
	}
	if got := repo.callCount("id"); got != 2 {
		t.Fatalf("expected origin re-read after invalidate, queries: %d", got)
	}
}

func TestOriginErrorPropagatesVerbatim(t *testing.T) {
	repo := newFakeRepo(aliceRecord())
	originDown := errors.New("origin connection refused")
	repo.fail = originDown

	cache, _, _, done := newCacheTest(t, repo)
	defer done()

	if _, err := cache.GetByID(context.Background(), 42); !errors.Is(err, originDown) {
		t.Fatalf("expected origin error passed through, got %v", err)
	}
}

func TestNotFoundIsNotCached(t *testing.T) {
	repo := newFakeRepo()
	cache, _, mr, done := newCacheTest(t, repo)
	defer done()
	ctx := context.Background()

	if _, err := cache.GetByID(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if mr.Exists("user:id:99") {
		t.Fatal("absence must not be cached")
	}
}

func TestStalePointerToDeletedUserIsDropped(t *testing.T) {
	repo := newFakeRepo()
	cache, _, mr, done := newCacheTest(t, repo)
	defer done()
	ctx := context.Background()

	// A pointer left behind by a deleted user.
	if err := mr.Set("user:email:ghost@example.com", "77"); err != nil {
		t.Fatalf("seed pointer: %v", err)
	}

	if _, err := cache.GetByEmail(ctx, "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if mr.Exists("user:email:ghost@example.com") {
		t.Fatal("expected stale pointer dropped")
	}
}

func TestCorruptCanonicalEntryFallsThroughToOrigin(t *testing.T) {
	repo := newFakeRepo(aliceRecord())
	cache, _, mr, done := newCacheTest(t, repo)
	defer done()
	ctx := context.Background()

	if err := mr.Set("user:id:42", "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	user, err := cache.GetByID(ctx, 42)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("expected origin record, got %+v", user)
	}
	if got := repo.callCount("id"); got != 1 {
		t.Fatalf("expected 1 origin query, got %d", got)
	}
}

func TestStatsCountHitsAndMisses(t *testing.T) {
	repo := newFakeRepo(aliceRecord())
	cache, stats, _, done := newCacheTest(t, repo)
	defer done()
	ctx := context.Background()

	if _, err := cache.GetByID(ctx, 42); err != nil {
		t.Fatalf("miss lookup: %v", err)
	}
	if _, err := cache.GetByID(ctx, 42); err != nil {
		t.Fatalf("hit lookup: %v", err)
	}

	snap := stats.Snapshot()
	if snap.Misses != 1 || snap.Hits != 1 || snap.OriginReads != 1 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
}
