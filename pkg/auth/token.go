package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo holds the claims the daemon cares about from the bearer token.
// The token is inspected, not verified: the remote API is the verifier and
// the daemon never holds the signing secret.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// Inspect parses the bearer token without signature verification and
// extracts subject and expiry.
func Inspect(token string) (*TokenInfo, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, fmt.Errorf("token is empty")
	}

	parser := jwt.NewParser()
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(trimmed, &claims); err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	info := &TokenInfo{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// ExpiresWithin reports whether the token expires before now+window. Tokens
// without an exp claim never report as expiring.
func (t *TokenInfo) ExpiresWithin(now time.Time, window time.Duration) bool {
	if t == nil || t.ExpiresAt.IsZero() {
		return false
	}
	return t.ExpiresAt.Before(now.Add(window))
}
