package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func mintToken(t *testing.T, role string, expiresIn time.Duration) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "tester",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func wrapped(t *testing.T) http.Handler {
	t.Helper()
	policy := NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	middleware := NewMiddleware(testSecret, policy)
	return middleware.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestMiddleware_ExemptPathSkipsAuth(t *testing.T) {
	handler := wrapped(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMiddleware_MissingTokenIsUnauthorized(t *testing.T) {
	handler := wrapped(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/alarms", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMiddleware_ViewerCannotTransitionAlarms(t *testing.T) {
	handler := wrapped(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alarms/some-id/acknowledge", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "viewer", time.Hour))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestMiddleware_OperatorCanTransitionAlarms(t *testing.T) {
	handler := wrapped(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alarms/some-id/acknowledge", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "operator", time.Hour))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMiddleware_ViewerCanRead(t *testing.T) {
	handler := wrapped(t)
	for _, path := range []string{"/api/v1/alarms", "/api/v1/metrics", "/api/v1/devices", "/api/v1/alarms/export.xlsx"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, "viewer", time.Hour))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestMiddleware_ExpiredTokenIsUnauthorized(t *testing.T) {
	handler := wrapped(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/alarms", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "viewer", -time.Minute))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestParseJWT_RejectsBadRole(t *testing.T) {
	if _, err := ParseJWT(mintToken(t, "superuser", time.Hour), testSecret); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
