package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
)

const testSecret = "test-secret"

func TestGenerateAndParseToken(t *testing.T) {
	tokenString, err := GenerateToken("user-1", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseToken(tokenString, testSecret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if got := claims.UserID(); got != "user-1" {
		t.Errorf("UserID = %q, want user-1", got)
	}
	if claims.Issuer != TokenIssuer {
		t.Errorf("issuer = %q, want %q", claims.Issuer, TokenIssuer)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	tokenString, err := GenerateToken("user-1", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ParseToken(tokenString, "other-secret"); err == nil {
		t.Fatal("token signed with a different secret was accepted")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	tokenString, err := GenerateToken("user-1", testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ParseToken(tokenString, testSecret); err == nil {
		t.Fatal("expired token was accepted")
	}
}

func TestParseTokenRejectsNonHMAC(t *testing.T) {
	// "none" algorithm tokens must never pass the signing method check.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{ID: "user-1"})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ParseToken(tokenString, testSecret); err == nil {
		t.Fatal("unsigned token was accepted")
	}
}

func TestUserIDResolvesBothShapes(t *testing.T) {
	tests := []struct {
		name   string
		claims Claims
		want   string
	}{
		{"top level id", Claims{ID: "user-1"}, "user-1"},
		{"nested id", Claims{Data: &ClaimsData{User: &ClaimsUser{ID: "user-2"}}}, "user-2"},
		{"top level wins when both set", Claims{ID: "user-1", Data: &ClaimsData{User: &ClaimsUser{ID: "user-2"}}}, "user-1"},
		{"empty", Claims{}, ""},
		{"nested without user", Claims{Data: &ClaimsData{}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.claims.UserID(); got != tt.want {
				t.Errorf("UserID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNestedShapeTokenRoundTrip(t *testing.T) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Data: &ClaimsData{User: &ClaimsUser{ID: "user-9"}},
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(time.Hour).Unix(),
			IssuedAt:  now.Unix(),
		},
	})
	tokenString, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := ParseToken(tokenString, testSecret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := claims.UserID(); got != "user-9" {
		t.Errorf("UserID = %q, want user-9", got)
	}
}
