package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gestor/internal/domain/auth"
)

func TestAuthMiddlewareSetsUser(t *testing.T) {
	secret := "test-secret"
	token, err := auth.GenerateToken(secret, auth.Claims{UserID: "u1", Role: auth.RoleHR}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	handler := Auth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		if !ok {
			t.Fatal("expected user in context")
		}
		if user.UserID != "u1" || user.Role != auth.RoleHR {
			t.Fatalf("unexpected user: %+v", user)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
}

func TestAuthMiddlewareMissingToken(t *testing.T) {
	handler := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); ok {
			t.Fatal("did not expect user in context")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
}

func TestRequirePermission(t *testing.T) {
	protected := RequirePermission(auth.PermFiscalAdmin)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	anonymous := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, anonymous)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous request, got %d", rec.Code)
	}

	asHR := anonymous.WithContext(WithUser(anonymous.Context(), auth.UserContext{UserID: "u1", Role: auth.RoleHR}))
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, asHR)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for hr role, got %d", rec.Code)
	}

	asAccountant := anonymous.WithContext(WithUser(anonymous.Context(), auth.UserContext{UserID: "u2", Role: auth.RoleAccountant}))
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, asAccountant)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected accountant to pass, got %d", rec.Code)
	}
}
