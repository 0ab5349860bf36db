package store

import (
	"context"
	"errors"
	"time"

	"github.com/quizforge/quizauth/internal/authd/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, the
// in-memory fake) implement this. It exposes sub-repositories to keep
// concerns tidy and testable.
type Store interface {
	Users() Users
	Sessions() Sessions
	RefreshTokens() RefreshTokens
	Blacklist() Blacklist

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., refresh
	// rotation). The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction; rollback on error, commit on
	// nil. This is the recommended way to handle transactions.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing store is still reachable.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login; email lookups are
	// case-insensitive at the driver level.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	// Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error

	GetSessionByID(ctx context.Context, id string) (domain.Session, error)

	// InvalidateSession flips Valid to false. One-way: drivers never set it
	// back to true.
	InvalidateSession(ctx context.Context, id string) error

	// InvalidateUserSessions invalidates every session for a user (logout-all).
	InvalidateUserSessions(ctx context.Context, userID string) error

	// TouchSession bumps last_activity_at. Callers rate-limit this; drivers
	// only ever move the timestamp forward.
	TouchSession(ctx context.Context, id string, at time.Time) error

	// RotateCSRFToken replaces the session-bound CSRF token (refresh flow).
	RotateCSRFToken(ctx context.Context, id, csrfToken string) error

	// DeleteInactiveSessions removes invalidated sessions and sessions whose
	// last activity predates cutoff.
	DeleteInactiveSessions(ctx context.Context, cutoff time.Time) error
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash looks a token up by its SHA-256 fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	RevokeRefreshToken(ctx context.Context, hash string) error

	// RevokeSessionRefreshTokens revokes every token minted for a session.
	RevokeSessionRefreshTokens(ctx context.Context, sessionID string) error

	// RevokeUserRefreshTokens revokes every token for a user (logout-all).
	RevokeUserRefreshTokens(ctx context.Context, userID string) error

	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) error
}

// Blacklist records access tokens revoked before natural expiry. Implemented
// by the sqlite driver and by a Redis driver for multi-instance deployments.
type Blacklist interface {
	// InvalidateToken marks a token fingerprint unusable until expiresAt.
	InvalidateToken(ctx context.Context, tokenHash string, expiresAt time.Time) error

	// IsTokenInvalidated reports whether the fingerprint is currently listed.
	IsTokenInvalidated(ctx context.Context, tokenHash string) (bool, error)

	// DeleteExpiredEntries drops entries whose token would fail expiry anyway.
	DeleteExpiredEntries(ctx context.Context, now time.Time) error
}
