package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	authport "github.com/quvio/authport"
	"github.com/quvio/authport/store/memstore"
)

func newTestEngine(t *testing.T) *authport.Engine {
	t.Helper()

	cfg := authport.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := authport.New().
		WithConfig(cfg).
		WithStore(memstore.New()).
		WithLogger(zap.NewNop()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	if err := engine.InitStore(context.Background()); err != nil {
		t.Fatalf("InitStore failed: %v", err)
	}
	return engine
}

func adminToken(t *testing.T, engine *authport.Engine) string {
	t.Helper()
	cfg := authport.DefaultConfig()
	outcome, err := engine.LoginFlow(context.Background(), authport.LoginRequest{
		Username: cfg.Bootstrap.DefaultUsername,
		Password: cfg.Bootstrap.DefaultPassword,
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return outcome.Token
}

func TestGuardRejectsMissingToken(t *testing.T) {
	engine := newTestEngine(t)
	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without a token")
	}))

	for _, header := range []string{"", "Bearer ", "Token abc", "garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestGuardRejectsBadToken(t *testing.T) {
	engine := newTestEngine(t)
	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached with a bad token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestGuardPassesVerifiedRequest(t *testing.T) {
	engine := newTestEngine(t)
	token := adminToken(t, engine)

	var seen *authport.AuthResult
	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = authport.AuthResultFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.RemoteAddr = "192.0.2.7:51234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if seen == nil {
		t.Fatal("no auth result on the request context")
	}
	if seen.User == nil || seen.User.Email != authport.DefaultConfig().Bootstrap.DefaultUsername {
		t.Errorf("unexpected user: %+v", seen.User)
	}
}

func TestRequireRoles(t *testing.T) {
	engine := newTestEngine(t)
	token := adminToken(t, engine)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	allowed := Guard(engine)(RequireRoles(engine, authport.RoleAdmin)(next))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	allowed.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("admin role: status = %d, want 204", rec.Code)
	}

	denied := Guard(engine)(RequireRoles(engine, "auditor")(next))
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	denied.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("missing role: status = %d, want 403", rec.Code)
	}

	// Without Guard there is no auth result, so the check must deny.
	bare := RequireRoles(engine, authport.RoleAdmin)(next)
	rec = httptest.NewRecorder()
	bare.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("no guard: status = %d, want 403", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"Bearer ", "", false},
		{"bearer abc", "", false},
		{"", "", false},
		{"abc", "", false},
	}
	for _, tc := range cases {
		token, ok := bearerToken(tc.header)
		if token != tc.token || ok != tc.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tc.header, token, ok, tc.token, tc.ok)
		}
	}
}

func TestRequestIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:51234"
	if got := requestIP(req); got != "192.0.2.7" {
		t.Errorf("requestIP = %q", got)
	}

	req.RemoteAddr = "192.0.2.8"
	if got := requestIP(req); got != "192.0.2.8" {
		t.Errorf("requestIP without port = %q", got)
	}
}
