package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quizforge/quizauth/internal/authd/store"
	"github.com/quizforge/quizauth/pkg/cryptox"
	"github.com/quizforge/quizauth/pkg/httpx"
	"github.com/quizforge/quizauth/pkg/jwtx"
	"github.com/quizforge/quizauth/pkg/slogx"
)

// TouchInterval bounds how often a busy session writes its activity
// timestamp. One write a minute is plenty for a 30-minute idle window.
const TouchInterval = time.Minute

// GuardService authenticates individual requests. It runs the checks in a
// fixed order so every failure maps to exactly one 401 code:
//
//  1. signature/expiry   -> INVALID_TOKEN / TOKEN_EXPIRED
//  2. blacklist          -> TOKEN_INVALIDATED
//  3. session valid      -> SESSION_EXPIRED
//  4. idle timeout       -> SESSION_EXPIRED (and invalidates the session)
//  5. origin anomaly     -> SUSPICIOUS_ACTIVITY (and invalidates the session)
//
// It satisfies httpx.Authenticator and httpx.CSRFTokenSource.
type GuardService struct {
	Store   store.Store
	Signer  *jwtx.Signer
	IdleTTL time.Duration

	// Auth supplies the anomaly rules and tears sessions down on anomaly
	// or idle timeout.
	Auth *AuthService

	mu        sync.Mutex
	lastTouch map[string]time.Time
	lastEvict time.Time
}

var _ httpx.Authenticator = (*GuardService)(nil)
var _ httpx.CSRFTokenSource = (*GuardService)(nil)

func (g *GuardService) Authenticate(ctx context.Context, rawToken string, origin httpx.Origin) (httpx.Principal, error) {
	now := time.Now().UTC()

	claims, err := g.Signer.Verify(rawToken)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return httpx.Principal{}, httpx.ErrTokenExpired
		}
		return httpx.Principal{}, httpx.ErrInvalidToken
	}

	principal := httpx.Principal{
		ID:        claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: claims.SID,
	}

	listed, err := g.Store.Blacklist().IsTokenInvalidated(ctx, cryptox.FingerprintToken(rawToken))
	if err != nil {
		return principal, fmt.Errorf("blacklist lookup: %w", err)
	}
	if listed {
		return principal, httpx.ErrTokenInvalidated
	}

	if claims.SID == "" {
		return principal, httpx.ErrInvalidToken
	}

	session, err := g.Store.Sessions().GetSessionByID(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return principal, httpx.ErrSessionExpired
		}
		return principal, fmt.Errorf("session lookup: %w", err)
	}

	if !session.Valid {
		return principal, httpx.ErrSessionExpired
	}

	if session.IdleSince(now) > g.IdleTTL {
		if err := g.Auth.teardownSession(ctx, session.ID); err != nil {
			slogx.FromContext(ctx).Error("idle session teardown failed", "error", err, "session_id", session.ID)
		}
		return principal, httpx.ErrSessionExpired
	}

	if g.Auth.originSuspicious(ctx, session, origin) {
		if err := g.Auth.teardownSession(ctx, session.ID); err != nil {
			slogx.FromContext(ctx).Error("anomaly session teardown failed", "error", err, "session_id", session.ID)
		}
		return principal, httpx.ErrSuspiciousActivity
	}

	g.touchSession(ctx, session.ID, now)

	return principal, nil
}

// SessionCSRFToken returns the CSRF token bound to the session, for the
// CSRF middleware's comparison.
func (g *GuardService) SessionCSRFToken(ctx context.Context, sessionID string) (string, error) {
	session, err := g.Store.Sessions().GetSessionByID(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return session.CSRFToken, nil
}

// touchSession bumps last_activity_at off the request path. At most one
// write per session per TouchInterval; a lost write just shortens the idle
// window by a minute, which is harmless.
func (g *GuardService) touchSession(ctx context.Context, sessionID string, now time.Time) {
	g.mu.Lock()
	last, ok := g.lastTouch[sessionID]
	if ok && now.Sub(last) < TouchInterval {
		g.mu.Unlock()
		return
	}
	if g.lastTouch == nil {
		g.lastTouch = make(map[string]time.Time)
	}
	g.lastTouch[sessionID] = now

	// Sessions stop being touched when they end, so entries past the idle
	// window are dead weight. One sweep per idle window keeps the map
	// proportional to live sessions.
	if now.Sub(g.lastEvict) >= g.IdleTTL {
		g.lastEvict = now
		for id, ts := range g.lastTouch {
			if now.Sub(ts) > g.IdleTTL {
				delete(g.lastTouch, id)
			}
		}
	}
	g.mu.Unlock()

	// Detached from the request: the response must not wait on this write,
	// and a client disconnect must not cancel it.
	bg := context.WithoutCancel(ctx)
	go func() {
		if err := g.Store.Sessions().TouchSession(bg, sessionID, now); err != nil {
			slogx.FromContext(bg).Warn("session touch failed", "error", err, "session_id", sessionID)
		}
	}()
}
