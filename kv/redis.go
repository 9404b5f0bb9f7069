package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	defaultCallTimeout      = 50 * time.Millisecond
	defaultFailureThreshold = 5
	defaultCooldown         = 30 * time.Second
	defaultWindow           = time.Minute
)

// RedisConfig tunes the remote tier. CallTimeout is the fixed per-call
// deadline applied to every Redis command, independent of the caller's own
// deadline, so a slow cache node cannot inflate request tail latency.
// FailureThreshold consecutive failures within the sliding Window trip the
// breaker; Cooldown is how long it stays open before allowing a single
// half-open probe.
type RedisConfig struct {
	CallTimeout      time.Duration
	FailureThreshold uint32
	Cooldown         time.Duration
	Window           time.Duration
}

// Redis is the remote cache tier: a pooled go-redis client wrapped in a
// circuit breaker. Once the backend is known to be down, calls short-circuit
// to [ErrUnavailable] without touching the network.
type Redis struct {
	client  redis.UniversalClient
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedis wraps client in a breaker-guarded [Backend]. Zero-valued config
// fields fall back to defaults. logger may be nil.
func NewRedis(client redis.UniversalClient, cfg RedisConfig, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cache-redis",
		MaxRequests: 1, // single probe in half-open
		Interval:    cfg.Window,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("cache breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// A key miss is a healthy response, not a backend failure.
			return err == nil || errors.Is(err, redis.Nil)
		},
	})

	return &Redis{
		client:  client,
		breaker: breaker,
		timeout: cfg.CallTimeout,
		logger:  logger,
	}
}

// Get fetches key. Returns [ErrMiss] when absent and [ErrUnavailable] when
// the backend is down or the circuit is open.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := r.execute(ctx, func(ctx context.Context) error {
		b, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, wrapUnavailable(err)
	}
	return data, nil
}

// Set stores value under key with the given TTL.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := r.execute(ctx, func(ctx context.Context) error {
		return r.client.Set(ctx, key, value, ttl).Err()
	})
	if err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Delete removes the given keys. Deleting an absent key is not an error.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := r.execute(ctx, func(ctx context.Context) error {
		return r.client.Del(ctx, keys...).Err()
	})
	if err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Ping reports point-in-time backend health. With the circuit open it fails
// fast without a network round trip.
func (r *Redis) Ping(ctx context.Context) error {
	err := r.execute(ctx, func(ctx context.Context) error {
		return r.client.Ping(ctx).Err()
	})
	if err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// State returns the current breaker state ("closed", "half-open", "open")
// for health reporting.
func (r *Redis) State() string {
	return r.breaker.State().String()
}

func (r *Redis) execute(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := r.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return nil, op(callCtx)
	})
	return err
}

func wrapUnavailable(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit open", ErrUnavailable)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
