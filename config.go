package identity

import (
	"errors"
	"time"
)

// Config is the full configuration surface of the subsystem. Construct it
// with [DefaultConfig] (or [ConfigFromEnv]) and override fields as needed;
// treat it as immutable after [Builder.Build].
type Config struct {
	Token    TokenConfig
	Cache    CacheConfig
	Breaker  BreakerConfig
	Fallback FallbackConfig
	Password PasswordConfig
}

// TokenConfig configures the bearer-token codec. Secret signs every token
// and must be at least 32 bytes.
type TokenConfig struct {
	Secret    []byte
	Issuer    string
	AccessTTL time.Duration
}

// CacheConfig configures the remote cache tier. ProfileTTL bounds staleness
// of the canonical user entry; LookupTTL bounds the indirection pointers
// and is intentionally shorter. CallTimeout is the fixed per-command Redis
// deadline, independent of any request deadline.
type CacheConfig struct {
	RedisAddr   string
	ProfileTTL  time.Duration
	LookupTTL   time.Duration
	CallTimeout time.Duration
}

// BreakerConfig configures the circuit breaker around the remote tier.
// FailureThreshold consecutive failures within Window trip the circuit
// open; after Cooldown a single probe call is allowed.
type BreakerConfig struct {
	FailureThreshold uint32
	Cooldown         time.Duration
	Window           time.Duration
}

// FallbackConfig bounds the in-process continuity cache.
type FallbackConfig struct {
	MaxEntries int
}

// PasswordConfig tunes the argon2id hasher used by the login path. Memory
// is in KB.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the production defaults. The signing secret has no
// default and must always be supplied.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Issuer:    "identity",
			AccessTTL: 15 * time.Minute,
		},
		Cache: CacheConfig{
			RedisAddr:   "127.0.0.1:6379",
			ProfileTTL:  300 * time.Second,
			LookupTTL:   180 * time.Second,
			CallTimeout: 50 * time.Millisecond,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
			Window:           time.Minute,
		},
		Fallback: FallbackConfig{
			MaxEntries: 4096,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
	}
}

// Validate checks the invariants [Builder.Build] relies on.
func (c Config) Validate() error {
	if len(c.Token.Secret) < 32 {
		return errors.New("token secret must be at least 32 bytes")
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("token access TTL must be positive")
	}
	if c.Cache.ProfileTTL <= 0 || c.Cache.LookupTTL <= 0 {
		return errors.New("cache TTLs must be positive")
	}
	if c.Cache.LookupTTL > c.Cache.ProfileTTL {
		return errors.New("lookup TTL must not exceed profile TTL")
	}
	if c.Cache.CallTimeout <= 0 || c.Cache.CallTimeout > time.Second {
		return errors.New("cache call timeout must be within (0s, 1s]")
	}
	if c.Breaker.FailureThreshold == 0 {
		return errors.New("breaker failure threshold must be positive")
	}
	if c.Breaker.Cooldown <= 0 {
		return errors.New("breaker cooldown must be positive")
	}
	if c.Fallback.MaxEntries <= 0 {
		return errors.New("fallback capacity must be positive")
	}
	return nil
}
