package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var adminTestSecret = []byte("test-admin-secret")

const adminTestIssuer = "institute-onboarding"

func signAdminToken(t *testing.T, secret []byte, claims AdminClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func adminTestClaims() AdminClaims {
	return AdminClaims{
		Email: "root@platform.example",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin-1",
			Issuer:    adminTestIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}
}

func TestAdminAuth(t *testing.T) {
	var gotPrincipal Principal
	handler := AdminAuth(adminTestSecret, adminTestIssuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrincipal, _ = GetPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/v1/admin/onboarding", nil)
	req.Header.Set("Authorization", "Bearer "+signAdminToken(t, adminTestSecret, adminTestClaims()))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if gotPrincipal.Subject != "admin-1" {
		t.Errorf("principal subject = %q, want admin-1", gotPrincipal.Subject)
	}
	if gotPrincipal.Email != "root@platform.example" {
		t.Errorf("principal email = %q", gotPrincipal.Email)
	}
}

func TestAdminAuthRejects(t *testing.T) {
	handler := AdminAuth(adminTestSecret, adminTestIssuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	expired := adminTestClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := adminTestClaims()
	wrongIssuer.Issuer = "someone-else"

	tests := []struct {
		name  string
		token string
	}{
		{"missing header", ""},
		{"garbage token", "not-a-jwt"},
		{"wrong secret", signAdminToken(t, []byte("other-secret"), adminTestClaims())},
		{"expired", signAdminToken(t, adminTestSecret, expired)},
		{"wrong issuer", signAdminToken(t, adminTestSecret, wrongIssuer)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/v1/admin/onboarding", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("got status %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}
