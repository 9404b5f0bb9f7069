// Package usercache implements the multi-key, write-through cache for user
// records that sits in front of the origin repository.
//
// The cache holds one canonical entry per user, keyed by the immutable
// identifier, plus lazily populated indirection pointers keyed by email,
// username, and phone that resolve to the canonical identifier. Mutations
// invalidate all keys before the mutating caller is acknowledged; reads
// repopulate on the next lookup.
//
// Two invariants are load-bearing:
//
//   - The credential hash is structurally absent from every cached
//     representation: [User], the only serialized type, has no field for it.
//   - Cache-tier failures never escape this package. A broken or open
//     remote tier degrades a lookup to the in-process fallback and then to
//     an origin round trip; only origin errors propagate to callers.
package usercache
