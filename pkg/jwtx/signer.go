package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Leeway tolerated when validating exp/nbf, to absorb clock skew between
// instances.
const Leeway = 30 * time.Second

// Signer signs and verifies HS256 access tokens with a shared secret.
// The zero value is not usable; construct with NewSigner.
type Signer struct {
	secret []byte
	issuer string
}

func NewSigner(secret []byte, issuer string) (*Signer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwtx: signing secret must be at least 32 bytes, got %d", len(secret))
	}
	return &Signer{secret: secret, issuer: issuer}, nil
}

// Issuer reports the issuer this signer stamps and validates.
func (s *Signer) Issuer() string { return s.issuer }

// Sign produces a compact signed token for the given claims.
func (s *Signer) Sign(c Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a compact token. It returns ErrExpired for a
// correctly signed token past its exp, and ErrInvalid for everything else,
// so callers can distinguish the one retriable failure mode without leaking
// parser internals to clients.
func (s *Signer) Verify(raw string) (Claims, error) {
	var claims Claims

	parsed, err := jwt.ParseWithClaims(
		raw,
		&claims,
		func(t *jwt.Token) (any, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, ErrInvalid
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(Leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrInvalid
	}

	if parsed == nil || !parsed.Valid || claims.Subject == "" {
		return Claims{}, ErrInvalid
	}

	return claims, nil
}

// DecodeUnverified extracts claims without checking the signature. The
// server uses it on logout to read exp off an already-authenticated token;
// it must never gate an authorization decision.
func DecodeUnverified(raw string) (Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return Claims{}, ErrInvalid
	}
	return claims, nil
}
