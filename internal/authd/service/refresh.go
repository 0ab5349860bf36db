package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quizforge/quizauth/internal/authd/domain"
	"github.com/quizforge/quizauth/internal/authd/store"
	"github.com/quizforge/quizauth/pkg/cryptox"
	"github.com/quizforge/quizauth/pkg/httpx"
	"github.com/quizforge/quizauth/pkg/idx"
	"github.com/quizforge/quizauth/pkg/slogx"
)

// Refresh exchanges a valid refresh token for a rotated token pair. The old
// refresh token is revoked in the same transaction that creates its
// replacement, and the session CSRF token rotates with it.
//
// Presenting an already-revoked token is treated as theft: the whole session
// is torn down before the caller gets an error.
func (s *AuthService) Refresh(ctx context.Context, opaque string, origin httpx.Origin) (*domain.TokenPair, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	current, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(opaque))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, httpx.ErrInvalidToken
		}
		return nil, fmt.Errorf("load refresh token: %w", err)
	}

	if current.Revoked {
		// Reuse of a rotated-out token. Either the client replayed an old
		// token or someone else holds a stolen copy; both sides lose the
		// session.
		log.Warn("revoked refresh token presented, invalidating session",
			"session_id", current.SessionID,
			"user_id", current.UserID,
		)
		if err := s.teardownSession(ctx, current.SessionID); err != nil {
			log.Error("session teardown failed", "error", err, "session_id", current.SessionID)
		}
		return nil, httpx.ErrInvalidToken
	}

	if now.After(current.ExpiresAt) {
		return nil, httpx.ErrSessionExpired
	}

	session, err := s.Store.Sessions().GetSessionByID(ctx, current.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, httpx.ErrSessionExpired
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if !session.Valid || session.IdleSince(now) > s.IdleTTL {
		return nil, httpx.ErrSessionExpired
	}

	if s.originSuspicious(ctx, session, origin) {
		if err := s.teardownSession(ctx, session.ID); err != nil {
			log.Error("session teardown failed", "error", err, "session_id", session.ID)
		}
		return nil, httpx.ErrSuspiciousActivity
	}

	user, err := s.Store.Users().GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	nextOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}
	nextCSRF, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, err
	}

	next := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    current.UserID,
		SessionID: current.SessionID,
		TokenHash: cryptox.FingerprintToken(nextOpaque),
		ExpiresAt: now.Add(s.RefreshTTL),
		CreatedAt: now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, current.TokenHash); err != nil {
			return err
		}
		if err := tx.RefreshTokens().CreateRefreshToken(ctx, next); err != nil {
			return err
		}
		if err := tx.Sessions().RotateCSRFToken(ctx, session.ID, nextCSRF); err != nil {
			return err
		}
		return tx.Sessions().TouchSession(ctx, session.ID, now)
	})
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	accessToken, err := s.signAccess(user, session.ID, now)
	if err != nil {
		return nil, err
	}

	log.Debug("refresh token rotated", "session_id", session.ID, "user_id", user.ID)

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: nextOpaque,
		CSRFToken:    nextCSRF,
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// teardownSession invalidates a session and revokes every refresh token
// bound to it.
func (s *AuthService) teardownSession(ctx context.Context, sessionID string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().InvalidateSession(ctx, sessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return tx.RefreshTokens().RevokeSessionRefreshTokens(ctx, sessionID)
	})
}
