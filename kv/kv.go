package kv

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by [Backend.Get] when the key is absent. A miss is a
// legitimate outcome, not a backend failure.
var ErrMiss = errors.New("cache key absent")

// ErrUnavailable is returned when the backend cannot serve the call: network
// failure, call timeout, or an open circuit. Callers are expected to degrade
// to another tier or to the origin store, never to surface it.
var ErrUnavailable = errors.New("cache backend unavailable")

// Backend is the tier-agnostic key/value contract shared by the remote and
// in-process cache tiers. Implementations must be safe for concurrent use
// and must bound the latency of every call.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}
