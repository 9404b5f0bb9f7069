// Package token implements the signed bearer-token codec used for stateless
// identity verification.
//
// A [Manager] is a pure function of a signing secret, a claims payload, and
// wall-clock time: Issue and Verify never touch the network or disk, which is
// what keeps per-request authentication sub-millisecond under load.
//
// Expiry is checked with a zero-tolerance, closed-open boundary: a token
// issued at T with TTL t verifies at any instant before T+t and fails at or
// after T+t. There is no leeway window; callers that need clock-skew
// tolerance must issue longer-lived tokens instead.
package token
