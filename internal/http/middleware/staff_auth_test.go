package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medloop/clinic-ops/internal/identity"
)

func TestStaffJWTMissingSecret(t *testing.T) {
	mw := StaffJWT("")
	req := httptest.NewRequest(http.MethodGet, "/queue", nil)
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestStaffJWTMissingHeader(t *testing.T) {
	mw := StaffJWT("secret")
	req := httptest.NewRequest(http.MethodGet, "/queue", nil)
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestStaffJWTInvalidToken(t *testing.T) {
	mw := StaffJWT("secret")
	req := httptest.NewRequest(http.MethodGet, "/queue", nil)
	req.Header.Set("Authorization", "Bearer "+signedStaffToken(t, "wrong", "nurse"))
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestStaffJWTValidTokenAttachesActor(t *testing.T) {
	mw := StaffJWT("secret")
	req := httptest.NewRequest(http.MethodGet, "/queue", nil)
	req.Header.Set("Authorization", "Bearer "+signedStaffToken(t, "secret", "front-desk"))
	rec := httptest.NewRecorder()

	called := false
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		actor, ok := identity.ActorFromContext(r.Context())
		if !ok {
			t.Fatalf("expected actor in context")
		}
		if actor.UserID != "staff-7" || actor.Role != "front-desk" {
			t.Fatalf("unexpected actor: %+v", actor)
		}
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func signedStaffToken(t *testing.T, secret, role string) string {
	t.Helper()
	claims := staffClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "staff-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
		Role: role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
