package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ExemptIngest(t *testing.T) {
	policy := NewDefaultPolicy([]string{"/ingest", "/healthz", "/metrics"}, nil)
	handler := NewMiddleware([]byte("test-secret"), policy).Wrap(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 without token on exempt path, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ViewerCanReadAlerts(t *testing.T) {
	secret := []byte("test-secret")
	handler := NewMiddleware(secret, NewDefaultPolicy(nil, nil)).Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, secret, "viewer"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ViewerForbiddenExport(t *testing.T) {
	secret := []byte("test-secret")
	handler := NewMiddleware(secret, NewDefaultPolicy(nil, nil)).Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts/export.xlsx", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, secret, "viewer"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_OperatorCanExport(t *testing.T) {
	secret := []byte("test-secret")
	handler := NewMiddleware(secret, NewDefaultPolicy(nil, nil)).Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts/export.pdf", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, secret, "operator"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestParseJWT_RejectsUnknownRole(t *testing.T) {
	secret := []byte("test-secret")
	if _, err := ParseJWT(mustToken(t, secret, "superuser"), secret); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestParseJWT_RejectsExpired(t *testing.T) {
	secret := []byte("test-secret")
	claims := Claims{
		Role: "viewer",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := ParseJWT(signed, secret); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func mustToken(t *testing.T, secret []byte, role string) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
