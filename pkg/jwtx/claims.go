package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants.
// Access tokens are deliberately short so a stolen one has a bounded
// blast radius; the refresh token carries the long-lived session.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims are access-token claims. Keep changes additive to preserve
// compatibility with tokens already in flight.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the authenticated user, for display only.
	Email string `json:"email,omitempty"`

	// Role is a coarse role flag ("user", "admin").
	Role string `json:"role,omitempty"`

	// SID is the server-side session this token was minted for. The guard
	// rejects tokens without one; every access token is session-bound.
	SID string `json:"sid,omitempty"`
}

// NewAccessClaims builds minimally-correct claims.
func NewAccessClaims(
	subject, email, role, sid string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Email: email,
		Role:  role,
		SID:   sid,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// TimeToExpiry returns how long the token remains naturally valid from now.
// A blacklist entry only needs to live this long.
func (c *Claims) TimeToExpiry(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}
