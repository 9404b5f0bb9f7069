package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const minSecretBytes = 32

// Verification failures are split into three sentinels so that callers can
// log the distinction. Callers facing the outside world are expected to
// collapse all three into a single unauthenticated outcome.
var (
	// ErrMalformed is returned when the token is not a structurally valid
	// three-segment JWT.
	ErrMalformed = errors.New("token malformed")
	// ErrSignature is returned when the token signature does not verify
	// against the configured secret.
	ErrSignature = errors.New("token signature mismatch")
	// ErrExpired is returned when the token is past its expiry instant.
	ErrExpired = errors.New("token expired")
)

// Config holds the immutable inputs of a [Manager]. Secret must be at least
// 32 bytes. Clock is optional and exists for deterministic boundary tests;
// it defaults to time.Now.
type Config struct {
	Secret     []byte
	Issuer     string
	DefaultTTL time.Duration
	Clock      func() time.Time
}

// Claims is the payload carried by every issued token. Subject is the
// string-encoded user identifier. Role is optional and lets handlers branch
// on account type without a user-record fetch.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256-signed bearer tokens. It performs no I/O
// and is safe for concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a ready [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", minSecretBytes)
	}
	if cfg.DefaultTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Manager{config: cfg, now: now}, nil
}

// Issue signs a token for subject with the given ttl. A non-positive ttl
// falls back to the configured default. Each token carries a unique jti so
// that two tokens for the same subject are never byte-identical.
func (m *Manager) Issue(subject string, ttl time.Duration) (string, error) {
	return m.IssueWithRole(subject, "", ttl)
}

// IssueWithRole is [Manager.Issue] with an additional role claim.
func (m *Manager) IssueWithRole(subject, role string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("empty token subject")
	}
	if ttl <= 0 {
		ttl = m.config.DefaultTTL
	}

	now := m.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// Verify checks structure, signature, and expiry in a single pass and
// returns the decoded claims. The expiry comparison uses UTC epoch seconds
// with no grace window: a check at exactly issued-at+ttl fails.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid claims", ErrMalformed)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}

	return claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
