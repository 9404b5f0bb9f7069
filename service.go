package identity

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cliffcho242/identity/kv"
	"github.com/cliffcho242/identity/password"
	"github.com/cliffcho242/identity/token"
	"github.com/cliffcho242/identity/usercache"
)

// Identity is the verified claim produced by the edge auth check. It is
// derived from the token alone — producing one performs no cache or
// database read, so high-traffic endpoints that only need an identifier
// never pay for a user-record fetch.
type Identity struct {
	// Subject is the string-encoded user identifier from the token.
	Subject string
	// UserID is Subject decoded.
	UserID int64
	// Role is the account type carried in the token, if any.
	Role string
	// Anonymous marks the explicit "no identity" value returned by
	// AuthenticateOptional.
	Anonymous bool
	// ExpiresAt is the token's expiry instant.
	ExpiresAt time.Time
}

// Service is the subsystem facade handed to request-handling code. All
// methods are safe for concurrent use.
type Service struct {
	config Config
	tokens *token.Manager
	hasher *password.Argon2
	users  *usercache.Cache
	repo   usercache.Repository
	remote *kv.Redis
	stats  *usercache.Stats
	logger *zap.Logger
}

// Authenticate is the required-auth entry point: it verifies the bearer
// token with zero I/O and returns the identity claim, or
// [ErrUnauthenticated]. All verification failures collapse to that single
// outcome; the internal distinction is logged at debug level only.
func (s *Service) Authenticate(tok string) (*Identity, error) {
	if tok == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := s.tokens.Verify(tok)
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		return nil, ErrUnauthenticated
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		s.logger.Debug("token subject is not a user id", zap.String("subject", claims.Subject))
		return nil, ErrUnauthenticated
	}

	return &Identity{
		Subject:   claims.Subject,
		UserID:    id,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// AuthenticateOptional is the optional-auth entry point for endpoints that
// personalize output without requiring login. It never fails: a missing or
// invalid token yields the explicit anonymous identity.
func (s *Service) AuthenticateOptional(tok string) *Identity {
	ident, err := s.Authenticate(tok)
	if err != nil {
		return &Identity{Anonymous: true}
	}
	return ident
}

// IssueToken signs a bearer token for the given user with the configured
// access TTL.
func (s *Service) IssueToken(userID int64, role string) (string, error) {
	return s.tokens.IssueWithRole(strconv.FormatInt(userID, 10), role, 0)
}

// Login checks a credential pair against the origin repository and, on
// success, issues a token and returns the cache-safe user record.
// Identifiers containing "@" are treated as emails, others as usernames.
//
// The credential hash is read straight from the origin and never passes
// through a cache tier. Unknown identifiers and wrong passwords both
// surface as [ErrInvalidCredentials]; inactive accounts as
// [ErrUnauthenticated].
func (s *Service) Login(ctx context.Context, identifier, pass string) (string, *usercache.User, error) {
	var (
		rec *usercache.Record
		err error
	)
	if strings.Contains(identifier, "@") {
		rec, err = s.repo.FindByEmail(ctx, usercache.NormalizeEmail(identifier))
	} else {
		rec, err = s.repo.FindByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	ok, err := s.hasher.Verify(pass, rec.PasswordHash)
	if err != nil {
		s.logger.Warn("stored credential hash unreadable", zap.Int64("user_id", rec.ID), zap.Error(err))
		return "", nil, ErrInvalidCredentials
	}
	if !ok {
		return "", nil, ErrInvalidCredentials
	}
	if !rec.Active {
		return "", nil, ErrUnauthenticated
	}

	tok, err := s.IssueToken(rec.ID, string(rec.AccountType))
	if err != nil {
		return "", nil, err
	}
	return tok, usercache.Sanitize(rec), nil
}

// UserByID resolves a full user record through the cache layer.
func (s *Service) UserByID(ctx context.Context, id int64) (*usercache.User, error) {
	return s.users.GetByID(ctx, id)
}

// UserByEmail resolves a user by email, case-insensitively.
func (s *Service) UserByEmail(ctx context.Context, email string) (*usercache.User, error) {
	return s.users.GetByEmail(ctx, email)
}

// UserByUsername resolves a user by username.
func (s *Service) UserByUsername(ctx context.Context, username string) (*usercache.User, error) {
	return s.users.GetByUsername(ctx, username)
}

// UserByPhone resolves a user by phone number.
func (s *Service) UserByPhone(ctx context.Context, phone string) (*usercache.User, error) {
	return s.users.GetByPhone(ctx, phone)
}

// ResolveUser turns a verified identity claim into the full user record via
// the cache layer. Anonymous identities resolve to [ErrNotFound].
func (s *Service) ResolveUser(ctx context.Context, ident *Identity) (*usercache.User, error) {
	if ident == nil || ident.Anonymous {
		return nil, ErrNotFound
	}
	return s.users.GetByID(ctx, ident.UserID)
}

// InvalidateUser removes the user's canonical cache entry and the pointers
// for all supplied lookup fields from both cache tiers. Mutation paths must
// call this after committing to the origin and before acknowledging success
// to their own caller.
func (s *Service) InvalidateUser(ctx context.Context, id int64, lookups usercache.Lookups) error {
	return s.users.Invalidate(ctx, id, lookups)
}
