package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/cliffcho242/identity"
)

type identityContextKey struct{}

// FromContext returns the identity injected by [Require] or [Optional].
func FromContext(ctx context.Context) (*identity.Identity, bool) {
	ident, ok := ctx.Value(identityContextKey{}).(*identity.Identity)
	return ident, ok
}

// Require rejects requests without a valid bearer token with 401. On
// success the verified identity is available via [FromContext].
func Require(svc *identity.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if svc == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			tok, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ident, err := svc.Authenticate(tok)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Optional always calls the next handler. With a valid token it injects the
// verified identity; otherwise it injects the explicit anonymous identity,
// never an error — endpoints personalize output without requiring login.
func Optional(svc *identity.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := &identity.Identity{Anonymous: true}
			if svc != nil {
				if tok, ok := bearerToken(r.Header.Get("Authorization")); ok {
					ident = svc.AuthenticateOptional(tok)
				}
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
