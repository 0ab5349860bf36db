package service

import (
	"context"
	"fmt"
	"time"

	"github.com/quizforge/quizauth/internal/authd/store"
	"github.com/quizforge/quizauth/pkg/cryptox"
	"github.com/quizforge/quizauth/pkg/jwtx"
	"github.com/quizforge/quizauth/pkg/slogx"
)

// Logout ends a single session: the presented access token is blacklisted
// for the remainder of its natural lifetime, the session is invalidated,
// and its refresh tokens are revoked. Idempotent; logging out an already
// dead session is not an error.
func (s *AuthService) Logout(ctx context.Context, rawAccess, sessionID string) error {
	if err := s.blacklistAccessToken(ctx, rawAccess); err != nil {
		return err
	}

	if err := s.teardownSession(ctx, sessionID); err != nil {
		return fmt.Errorf("teardown session: %w", err)
	}

	slogx.FromContext(ctx).Info("session logged out", "session_id", sessionID)
	return nil
}

// LogoutAll ends every session the user holds, on every device. The current
// access token is blacklisted; other outstanding access tokens die when
// their sessions fail the guard's session check.
func (s *AuthService) LogoutAll(ctx context.Context, rawAccess, userID string) error {
	if err := s.blacklistAccessToken(ctx, rawAccess); err != nil {
		return err
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().InvalidateUserSessions(ctx, userID); err != nil {
			return err
		}
		return tx.RefreshTokens().RevokeUserRefreshTokens(ctx, userID)
	})
	if err != nil {
		return fmt.Errorf("invalidate user sessions: %w", err)
	}

	slogx.FromContext(ctx).Info("all sessions logged out", "user_id", userID)
	return nil
}

// blacklistAccessToken lists the token fingerprint until the token's own
// exp, after which the signature check rejects it anyway. The token was
// already verified upstream, so an unverified decode is fine here.
func (s *AuthService) blacklistAccessToken(ctx context.Context, rawAccess string) error {
	claims, err := jwtx.DecodeUnverified(rawAccess)
	if err != nil {
		return fmt.Errorf("decode access token: %w", err)
	}

	now := time.Now().UTC()
	ttl := claims.TimeToExpiry(now)
	if ttl <= 0 {
		// Already expired, nothing to list.
		return nil
	}
	expiresAt := now.Add(ttl)

	hash := cryptox.FingerprintToken(rawAccess)
	if err := s.Store.Blacklist().InvalidateToken(ctx, hash, expiresAt); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}
