package identity

import (
	"errors"

	"github.com/spf13/viper"
)

// ConfigFromEnv loads [Config] from IDENTITY_-prefixed environment
// variables, starting from [DefaultConfig]:
//
//	IDENTITY_TOKEN_SECRET       signing secret (required, >= 32 bytes)
//	IDENTITY_TOKEN_ISSUER       token issuer
//	IDENTITY_ACCESS_TTL         token lifetime (e.g. "15m")
//	IDENTITY_REDIS_ADDR         cache backend address
//	IDENTITY_PROFILE_TTL        canonical-entry TTL (e.g. "300s")
//	IDENTITY_LOOKUP_TTL         indirection-pointer TTL (e.g. "180s")
//	IDENTITY_CACHE_TIMEOUT      per-command Redis deadline (e.g. "50ms")
//	IDENTITY_BREAKER_THRESHOLD  consecutive failures before the circuit opens
//	IDENTITY_BREAKER_COOLDOWN   open-state duration before a probe
//	IDENTITY_FALLBACK_MAX       in-process fallback capacity
func ConfigFromEnv() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("IDENTITY")
	v.AutomaticEnv()

	cfg := DefaultConfig()

	secret := v.GetString("TOKEN_SECRET")
	if secret == "" {
		return Config{}, errors.New("IDENTITY_TOKEN_SECRET is required")
	}
	cfg.Token.Secret = []byte(secret)

	if issuer := v.GetString("TOKEN_ISSUER"); issuer != "" {
		cfg.Token.Issuer = issuer
	}
	if d := v.GetDuration("ACCESS_TTL"); d > 0 {
		cfg.Token.AccessTTL = d
	}
	if addr := v.GetString("REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}
	if d := v.GetDuration("PROFILE_TTL"); d > 0 {
		cfg.Cache.ProfileTTL = d
	}
	if d := v.GetDuration("LOOKUP_TTL"); d > 0 {
		cfg.Cache.LookupTTL = d
	}
	if d := v.GetDuration("CACHE_TIMEOUT"); d > 0 {
		cfg.Cache.CallTimeout = d
	}
	if n := v.GetUint32("BREAKER_THRESHOLD"); n > 0 {
		cfg.Breaker.FailureThreshold = n
	}
	if d := v.GetDuration("BREAKER_COOLDOWN"); d > 0 {
		cfg.Breaker.Cooldown = d
	}
	if n := v.GetInt("FALLBACK_MAX"); n > 0 {
		cfg.Fallback.MaxEntries = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
