package identity

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cliffcho242/identity/kv"
	"github.com/cliffcho242/identity/password"
	"github.com/cliffcho242/identity/token"
	"github.com/cliffcho242/identity/usercache"
)

// Builder assembles a [Service] from explicit dependencies at process
// start. There is no lazy global state anywhere in the subsystem: the Redis
// client, the fallback map, and the stats block are all constructed here
// and injected into the components that need them.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	repo   usercache.Repository
	logger *zap.Logger
	clock  func() time.Time

	built bool
}

// New returns a [Builder] seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis injects an existing Redis client. When omitted, Build dials
// Config.Cache.RedisAddr itself.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRepository injects the origin repository. Required.
func (b *Builder) WithRepository(repo usercache.Repository) *Builder {
	b.repo = repo
	return b
}

// WithLogger injects the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the token codec's clock. Test-only knob; defaults to
// time.Now.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration, wires the components, and returns the
// ready [Service]. A Builder can only be used once.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.repo == nil {
		return nil, errors.New("origin repository is required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := b.redis
	if client == nil {
		client = redis.NewClient(&redis.Options{Addr: b.config.Cache.RedisAddr})
	}

	tokens, err := token.NewManager(token.Config{
		Secret:     b.config.Token.Secret,
		Issuer:     b.config.Token.Issuer,
		DefaultTTL: b.config.Token.AccessTTL,
		Clock:      b.clock,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      b.config.Password.Memory,
		Time:        b.config.Password.Time,
		Parallelism: b.config.Password.Parallelism,
		SaltLength:  b.config.Password.SaltLength,
		KeyLength:   b.config.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	remote := kv.NewRedis(client, kv.RedisConfig{
		CallTimeout:      b.config.Cache.CallTimeout,
		FailureThreshold: b.config.Breaker.FailureThreshold,
		Cooldown:         b.config.Breaker.Cooldown,
		Window:           b.config.Breaker.Window,
	}, logger)
	fallback := kv.NewLocal(b.config.Fallback.MaxEntries)

	stats := usercache.NewStats()
	users, err := usercache.New(remote, fallback, b.repo, stats, logger, usercache.Config{
		ProfileTTL: b.config.Cache.ProfileTTL,
		LookupTTL:  b.config.Cache.LookupTTL,
	})
	if err != nil {
		return nil, err
	}

	return &Service{
		config: b.config,
		tokens: tokens,
		hasher: hasher,
		users:  users,
		repo:   b.repo,
		remote: remote,
		stats:  stats,
		logger: logger,
	}, nil
}
