package jwtx_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/quizforge/quizauth/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testIssuer = "quizauth-test"

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestSigner(t *testing.T) *jwtx.Signer {
	t.Helper()
	s, err := jwtx.NewSigner(testSecret, testIssuer)
	require.NoError(t, err)
	return s
}

func TestNewSignerRejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := jwtx.NewSigner([]byte("too short"), testIssuer)
	require.Error(t, err)
}

func TestSignAndVerify(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)

	claims := jwtx.NewAccessClaims(
		"user-1", "alice@example.com", "user", "sess-1",
		jwtx.DefaultAccessTokenTTL, testIssuer, time.Now(),
	)

	raw, err := s.Sign(claims)
	require.NoError(t, err)

	got, err := s.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, "alice@example.com", got.Email)
	require.Equal(t, "user", got.Role)
	require.Equal(t, "sess-1", got.SID)
	require.NotEmpty(t, got.ID)
}

func TestVerifyExpiredToken(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)

	// Minted far enough in the past that leeway cannot save it.
	claims := jwtx.NewAccessClaims(
		"user-1", "alice@example.com", "user", "sess-1",
		time.Minute, testIssuer, time.Now().Add(-time.Hour),
	)
	raw, err := s.Sign(claims)
	require.NoError(t, err)

	_, err = s.Verify(raw)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestVerifyRejectsInvalidTokens(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)

	t.Run("garbage", func(t *testing.T) {
		_, err := s.Verify("not.a.token")
		require.ErrorIs(t, err, jwtx.ErrInvalid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := jwtx.NewSigner([]byte("ffffffffffffffffffffffffffffffff"), testIssuer)
		require.NoError(t, err)
		raw, err := other.Sign(jwtx.NewAccessClaims(
			"user-1", "", "user", "", time.Minute, testIssuer, time.Now(),
		))
		require.NoError(t, err)

		_, err = s.Verify(raw)
		require.ErrorIs(t, err, jwtx.ErrInvalid)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := jwtx.NewSigner(testSecret, "someone-else")
		require.NoError(t, err)
		raw, err := other.Sign(jwtx.NewAccessClaims(
			"user-1", "", "user", "", time.Minute, "someone-else", time.Now(),
		))
		require.NoError(t, err)

		_, err = s.Verify(raw)
		require.ErrorIs(t, err, jwtx.ErrInvalid)
	})

	t.Run("alg none", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		})
		raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = s.Verify(raw)
		require.ErrorIs(t, err, jwtx.ErrInvalid)
	})

	t.Run("missing exp", func(t *testing.T) {
		noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "user-1",
			Issuer:  testIssuer,
		})
		raw, err := noExp.SignedString(testSecret)
		require.NoError(t, err)

		_, err = s.Verify(raw)
		require.ErrorIs(t, err, jwtx.ErrInvalid)
	})
}

func TestDecodeUnverified(t *testing.T) {
	t.Parallel()
	s := newTestSigner(t)

	raw, err := s.Sign(jwtx.NewAccessClaims(
		"user-1", "alice@example.com", "admin", "sess-9",
		time.Minute, testIssuer, time.Now(),
	))
	require.NoError(t, err)

	claims, err := jwtx.DecodeUnverified(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "sess-9", claims.SID)

	_, err = jwtx.DecodeUnverified("garbage")
	require.ErrorIs(t, err, jwtx.ErrInvalid)
}
