// Package kv defines the tier-agnostic cache backend contract and its two
// implementations: a Redis-backed remote client guarded by a circuit breaker
// ([Redis]) and a bounded in-process fallback map ([Local]).
//
// Both implement [Backend], so the layer above selects a tier by interface
// value, never by runtime type inspection. Backend calls never panic on an
// unreachable store: unavailability is reported through the [ErrUnavailable]
// sentinel and absence through [ErrMiss].
package kv
