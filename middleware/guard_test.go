package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cliffcho242/identity"
	"github.com/cliffcho242/identity/usercache"
)

type singleUserRepo struct {
	rec usercache.Record
}

func (r singleUserRepo) clone() *usercache.Record {
	rec := r.rec
	return &rec
}

func (r singleUserRepo) FindByID(_ context.Context, id int64) (*usercache.Record, error) {
	if id == r.rec.ID {
		return r.clone(), nil
	}
	return nil, usercache.ErrNotFound
}

func (r singleUserRepo) FindByEmail(_ context.Context, email string) (*usercache.Record, error) {
	if email == usercache.NormalizeEmail(r.rec.Email) {
		return r.clone(), nil
	}
	return nil, usercache.ErrNotFound
}

func (r singleUserRepo) FindByUsername(_ context.Context, username string) (*usercache.Record, error) {
	if username == r.rec.Username {
		return r.clone(), nil
	}
	return nil, usercache.ErrNotFound
}

func (r singleUserRepo) FindByPhone(_ context.Context, phone string) (*usercache.Record, error) {
	if phone == r.rec.Phone {
		return r.clone(), nil
	}
	return nil, usercache.ErrNotFound
}

func newGuardService(t *testing.T) *identity.Service {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := identity.DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")

	svc, err := identity.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithRepository(singleUserRepo{rec: usercache.Record{
			ID:          7,
			Email:       "guard@example.com",
			Username:    "guard",
			AccountType: usercache.AccountSeeker,
			Active:      true,
		}}).
		Build()
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func identityEcho(t *testing.T, got **identity.Identity) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := FromContext(r.Context())
		if !ok {
			t.Error("identity missing from request context")
		}
		*got = ident
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireRejectsMissingAndBadTokens(t *testing.T) {
	svc := newGuardService(t)
	handler := Require(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without a valid token")
	}))

	cases := map[string]string{
		"no header":      "",
		"wrong scheme":   "Basic abc123",
		"empty bearer":   "Bearer ",
		"garbage token":  "Bearer not-a-token",
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", name, rec.Code)
		}
	}
}

func TestRequirePassesVerifiedIdentity(t *testing.T) {
	svc := newGuardService(t)
	tok, err := svc.IssueToken(7, "job_seeker")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	var got *identity.Identity
	handler := Require(svc)(identityEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got == nil || got.UserID != 7 || got.Anonymous {
		t.Fatalf("unexpected identity: %+v", got)
	}
	if got.Role != "job_seeker" {
		t.Fatalf("expected role claim to pass through, got %q", got.Role)
	}
}

func TestOptionalInjectsAnonymous(t *testing.T) {
	svc := newGuardService(t)

	for name, header := range map[string]string{
		"no header": "",
		"bad token": "Bearer nope",
	} {
		var got *identity.Identity
		handler := Optional(svc)(identityEcho(t, &got))

		req := httptest.NewRequest(http.MethodGet, "/feed", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", name, rec.Code)
		}
		if got == nil || !got.Anonymous {
			t.Fatalf("%s: expected anonymous identity, got %+v", name, got)
		}
	}
}

func TestOptionalInjectsVerifiedIdentity(t *testing.T) {
	svc := newGuardService(t)
	tok, err := svc.IssueToken(7, "")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	var got *identity.Identity
	handler := Optional(svc)(identityEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got == nil || got.Anonymous || got.UserID != 7 {
		t.Fatalf("expected verified identity, got %+v", got)
	}
}

func TestFromContextMissing(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("expected no identity in an empty context")
	}
}
