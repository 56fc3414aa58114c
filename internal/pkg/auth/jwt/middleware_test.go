package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// claimsProbe runs a request through the middleware and reports the claims
// the downstream handler observed.
func claimsProbe(t *testing.T, authHeader string) *Claims {
	t.Helper()

	var seen *Claims
	handler := IdentityExtractorMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetClaimsFromContext(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("middleware interrupted the request with status %d", rec.Code)
	}
	return seen
}

func TestIdentityExtractorInjectsClaims(t *testing.T) {
	tokenString, err := GenerateToken("user-1", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims := claimsProbe(t, "Bearer "+tokenString)
	if claims == nil {
		t.Fatal("no claims injected for a valid token")
	}
	if got := claims.UserID(); got != "user-1" {
		t.Errorf("UserID = %q, want user-1", got)
	}
}

func TestIdentityExtractorTreatsFailuresAsAnonymous(t *testing.T) {
	expired, err := GenerateToken("user-1", testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"malformed header", "Token abc"},
		{"garbage token", "Bearer not-a-jwt"},
		{"expired token", "Bearer " + expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if claims := claimsProbe(t, tt.header); claims != nil {
				t.Errorf("claims injected for %s", tt.name)
			}
		})
	}
}
