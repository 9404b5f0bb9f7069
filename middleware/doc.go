// Package middleware provides net/http glue for the identity service: a
// required-auth guard, an optional-auth guard, and context accessors for
// the verified identity.
//
// Neither guard touches the cache or the origin store — they only verify
// the bearer token. Handlers that need the full user record call
// Service.ResolveUser themselves, so endpoints that only need an
// identifier never pay for a record fetch.
package middleware
