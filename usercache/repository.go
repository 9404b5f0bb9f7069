package usercache

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookups when no record exists for the given
// key. It is a legitimate outcome, not a failure, and is never retried.
var ErrNotFound = errors.New("user not found")

// Repository is the origin data store collaborator. Implementations return
// [ErrNotFound] when no row matches; any other error is treated as an origin
// failure and propagated verbatim to the caller — retry policy for the
// source of truth belongs to the repository, not to the cache layer.
//
// FindByEmail receives an already-normalized email.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Record, error)
	FindByEmail(ctx context.Context, email string) (*Record, error)
	FindByUsername(ctx context.Context, username string) (*Record, error)
	FindByPhone(ctx context.Context, phone string) (*Record, error)
}
