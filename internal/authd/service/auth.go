package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quizforge/quizauth/internal/authd/domain"
	"github.com/quizforge/quizauth/internal/authd/store"
	"github.com/quizforge/quizauth/pkg/cryptox"
	"github.com/quizforge/quizauth/pkg/httpx"
	"github.com/quizforge/quizauth/pkg/idx"
	"github.com/quizforge/quizauth/pkg/jwtx"
	"github.com/quizforge/quizauth/pkg/slogx"
)

const minPasswordLength = 8

// AuthService owns the session lifecycle: login, registration, refresh
// rotation, and the two logout flavours. Per-request authentication lives
// in GuardService.
type AuthService struct {
	Store      store.Store
	Signer     *jwtx.Signer
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// IdleTTL is the server-side idle timeout: a session whose last
	// activity predates it no longer refreshes or authenticates.
	IdleTTL time.Duration

	// StrictIPCheck makes an origin IP change alone invalidate the session.
	// Default is to log it and only act on user-agent changes.
	StrictIPCheck bool
}

// LoginResult carries everything the login/register handlers return.
type LoginResult struct {
	User domain.User
	Pair domain.TokenPair
}

// Login verifies credentials and issues a fresh session.
// Credential failures have no session side effects.
func (s *AuthService) Login(ctx context.Context, email, password string, origin httpx.Origin) (*LoginResult, error) {
	email = normalizeEmail(email)

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		slogx.FromContext(ctx).Info("login password mismatch", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issueSession(ctx, user, origin)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Pair: *pair}, nil
}

// Register creates a user and logs them straight in.
func (s *AuthService) Register(ctx context.Context, email, password string, origin httpx.Origin) (*LoginResult, error) {
	email = normalizeEmail(email)
	if err := validateRegistration(email, password); err != nil {
		return nil, err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	pair, err := s.issueSession(ctx, user, origin)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Pair: *pair}, nil
}

// issueSession creates a session with a bound CSRF token, one refresh
// token, and a signed access token. Session and refresh token are inserted
// atomically.
func (s *AuthService) issueSession(ctx context.Context, user domain.User, origin httpx.Origin) (*domain.TokenPair, error) {
	now := time.Now().UTC()

	csrfToken, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, err
	}
	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	session := domain.Session{
		ID:             idx.New().String(),
		UserID:         user.ID,
		CSRFToken:      csrfToken,
		OriginIP:       origin.IP,
		UserAgent:      origin.UserAgent,
		Valid:          true,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	refresh := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    user.ID,
		SessionID: session.ID,
		TokenHash: cryptox.FingerprintToken(refreshOpaque),
		ExpiresAt: now.Add(s.RefreshTTL),
		Revoked:   false,
		CreatedAt: now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().CreateSession(ctx, session); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, refresh)
	})
	if err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	accessToken, err := s.signAccess(user, session.ID, now)
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("session issued",
		"user_id", user.ID,
		"session_id", session.ID,
	)

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshOpaque,
		CSRFToken:    csrfToken,
		ExpiresIn:    s.AccessTTL,
	}, nil
}

func (s *AuthService) signAccess(user domain.User, sessionID string, now time.Time) (string, error) {
	claims := jwtx.NewAccessClaims(
		user.ID, user.Email, user.Role, sessionID,
		s.AccessTTL, s.Signer.Issuer(), now,
	)
	return s.Signer.Sign(claims)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(email, password string) error {
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	return nil
}
