package identity

import (
	"errors"

	"github.com/cliffcho242/identity/kv"
	"github.com/cliffcho242/identity/usercache"
)

var (
	// ErrUnauthenticated is returned for any bad, expired, or missing
	// token and for logins against inactive accounts. The malformed /
	// signature / expired distinction is logged internally but never
	// exposed to callers.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials is returned by Login when the identifier or
	// password does not match. It deliberately does not reveal which.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound is returned when no user record exists for the given
	// key. It aliases the usercache sentinel so callers can match either.
	ErrNotFound = usercache.ErrNotFound
	// ErrBackendUnavailable reports a cache-tier failure. It is internal
	// to the subsystem: lookups absorb it, only Health ever reflects it.
	ErrBackendUnavailable = kv.ErrUnavailable
)
