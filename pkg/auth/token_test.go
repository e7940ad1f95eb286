package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestInspectExtractsSubjectAndExpiry(t *testing.T) {
	expiry := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	token := signedToken(t, jwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(expiry),
	})

	info, err := Inspect(token)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if info.Subject != "42" {
		t.Fatalf("unexpected subject %q", info.Subject)
	}
	if !info.ExpiresAt.Equal(expiry) {
		t.Fatalf("unexpected expiry %s", info.ExpiresAt)
	}
}

func TestInspectRejectsEmptyAndMalformedTokens(t *testing.T) {
	if _, err := Inspect("  "); err == nil {
		t.Fatal("expected an error for an empty token")
	}
	if _, err := Inspect("not-a-jwt"); err == nil {
		t.Fatal("expected an error for a malformed token")
	}
}

func TestExpiresWithin(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	soon := &TokenInfo{ExpiresAt: now.Add(2 * time.Minute)}
	if !soon.ExpiresWithin(now, 5*time.Minute) {
		t.Fatal("token expiring in 2m is within a 5m window")
	}

	later := &TokenInfo{ExpiresAt: now.Add(time.Hour)}
	if later.ExpiresWithin(now, 5*time.Minute) {
		t.Fatal("token expiring in 1h is not within a 5m window")
	}

	noExpiry := &TokenInfo{}
	if noExpiry.ExpiresWithin(now, 5*time.Minute) {
		t.Fatal("tokens without exp never report as expiring")
	}

	var nilInfo *TokenInfo
	if nilInfo.ExpiresWithin(now, 5*time.Minute) {
		t.Fatal("nil info never reports as expiring")
	}
}
