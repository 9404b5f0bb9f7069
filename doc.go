// Package identity provides stateless bearer-token verification and a
// multi-key, write-through cache for user records in front of the origin
// data store.
//
// The package is designed for concurrent server workloads: [Service]
// methods are safe to call from multiple goroutines after initialization
// through [Builder.Build]. The only shared mutable state behind a Service
// is the Redis connection pool and the in-process fallback map, both of
// which are concurrency-safe without per-request locking.
//
// # Architecture boundaries
//
// identity is the public surface. It exposes [Service], [Builder],
// [Config], and value types (Identity, Health). Token encoding, the cache
// tiers, and the user-cache algorithm live in the token, kv, and usercache
// subpackages; request-handling glue lives in middleware.
//
// # What this package must NOT do
//
//   - Cache secret material: the credential hash never enters any cache
//     tier, in any representation.
//   - Surface cache-tier failures: a Redis outage degrades lookups to the
//     in-process tier and then to origin round trips, never to an error.
//   - Retry origin-repository calls: origin errors pass through verbatim so
//     the caller's existing retry policy applies uniformly.
//
// # Performance contract
//
// Authenticate is the hot path. It verifies signature, structure, and
// expiry in a single pass with zero I/O. Every remote cache command carries
// its own fixed timeout and a circuit breaker, so a degraded cache node
// adds at most a small constant to tail latency before the breaker opens.
package identity
