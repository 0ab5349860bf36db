// Package memory provides an in-process Store used by tests and by
// single-binary development setups. Data does not survive a restart.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/quizforge/quizauth/internal/authd/domain"
	"github.com/quizforge/quizauth/internal/authd/store"
)

// Store implements store.Store over plain maps behind one RWMutex.
//
// Transactions are coarse: Tx takes the write lock for its whole lifetime,
// which gives the same atomicity the sqlite driver provides, minus rollback
// (mutations apply immediately). Good enough for tests; not for production.
type Store struct {
	mu sync.RWMutex

	users         map[string]domain.User // keyed by id
	sessions      map[string]domain.Session
	refreshTokens map[string]domain.RefreshToken // keyed by token hash
	blacklist     map[string]time.Time           // token hash -> expiry
}

func NewStore() *Store {
	return &Store{
		users:         make(map[string]domain.User),
		sessions:      make(map[string]domain.Session),
		refreshTokens: make(map[string]domain.RefreshToken),
		blacklist:     make(map[string]time.Time),
	}
}

func (s *Store) Users() store.Users                 { return &usersRepo{s: s} }
func (s *Store) Sessions() store.Sessions           { return &sessionsRepo{s: s} }
func (s *Store) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{s: s} }
func (s *Store) Blacklist() store.Blacklist         { return &blacklistRepo{s: s} }

func (s *Store) ApplyMigrations() error             { return nil }
func (s *Store) Close() error                       { return nil }
func (s *Store) Ping(ctx context.Context) error     { return nil }

// Tx locks the store for the duration of the transaction. The returned Tx
// reuses the store's repos with locking disabled (the outer lock is held).
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	s.mu.Lock()
	return &memTx{s: s}, nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// memTx is a Tx view over the already-locked store.
type memTx struct {
	s    *Store
	done bool
}

func (t *memTx) Users() store.Users                 { return &usersRepo{s: t.s, locked: true} }
func (t *memTx) Sessions() store.Sessions           { return &sessionsRepo{s: t.s, locked: true} }
func (t *memTx) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{s: t.s, locked: true} }
func (t *memTx) Blacklist() store.Blacklist         { return &blacklistRepo{s: t.s, locked: true} }

func (t *memTx) ApplyMigrations() error         { return nil }
func (t *memTx) Close() error                   { return nil }
func (t *memTx) Ping(ctx context.Context) error { return nil }

func (t *memTx) Tx(ctx context.Context) (store.Tx, error) { return t, nil }
func (t *memTx) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return fn(t)
}

func (t *memTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	// No rollback of applied mutations; just release the lock once.
	return t.Commit()
}

// repos hold a locked flag so the same code serves both direct calls (which
// take the lock) and Tx-scoped calls (where the Tx already holds it).

type usersRepo struct {
	s      *Store
	locked bool
}

func (r *usersRepo) lock() func() {
	if r.locked {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	defer r.lock()()
	u, ok := r.s.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	defer r.lock()()
	email = strings.ToLower(email)
	for _, u := range r.s.users {
		if strings.ToLower(u.Email) == email {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	defer r.lock()()
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrAlreadyExists
		}
	}
	r.s.users[u.ID] = u
	return nil
}

type sessionsRepo struct {
	s      *Store
	locked bool
}

func (r *sessionsRepo) lock() func() {
	if r.locked {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *sessionsRepo) CreateSession(ctx context.Context, sess domain.Session) error {
	defer r.lock()()
	r.s.sessions[sess.ID] = sess
	return nil
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	defer r.lock()()
	sess, ok := r.s.sessions[id]
	if !ok {
		return domain.Session{}, store.ErrNotFound
	}
	return sess, nil
}

func (r *sessionsRepo) InvalidateSession(ctx context.Context, id string) error {
	defer r.lock()()
	sess, ok := r.s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	sess.Valid = false
	r.s.sessions[id] = sess
	return nil
}

func (r *sessionsRepo) InvalidateUserSessions(ctx context.Context, userID string) error {
	defer r.lock()()
	for id, sess := range r.s.sessions {
		if sess.UserID == userID {
			sess.Valid = false
			r.s.sessions[id] = sess
		}
	}
	return nil
}

func (r *sessionsRepo) TouchSession(ctx context.Context, id string, at time.Time) error {
	defer r.lock()()
	sess, ok := r.s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	if at.After(sess.LastActivityAt) {
		sess.LastActivityAt = at
		r.s.sessions[id] = sess
	}
	return nil
}

func (r *sessionsRepo) RotateCSRFToken(ctx context.Context, id, csrfToken string) error {
	defer r.lock()()
	sess, ok := r.s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	sess.CSRFToken = csrfToken
	r.s.sessions[id] = sess
	return nil
}

func (r *sessionsRepo) DeleteInactiveSessions(ctx context.Context, cutoff time.Time) error {
	defer r.lock()()
	for id, sess := range r.s.sessions {
		if !sess.Valid || sess.LastActivityAt.Before(cutoff) {
			delete(r.s.sessions, id)
		}
	}
	return nil
}

type refreshTokensRepo struct {
	s      *Store
	locked bool
}

func (r *refreshTokensRepo) lock() func() {
	if r.locked {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	defer r.lock()()
	r.s.refreshTokens[t.TokenHash] = t
	return nil
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	defer r.lock()()
	t, ok := r.s.refreshTokens[hash]
	if !ok {
		return domain.RefreshToken{}, store.ErrNotFound
	}
	return t, nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	defer r.lock()()
	t, ok := r.s.refreshTokens[hash]
	if !ok {
		return store.ErrNotFound
	}
	t.Revoked = true
	r.s.refreshTokens[hash] = t
	return nil
}

func (r *refreshTokensRepo) RevokeSessionRefreshTokens(ctx context.Context, sessionID string) error {
	defer r.lock()()
	for hash, t := range r.s.refreshTokens {
		if t.SessionID == sessionID {
			t.Revoked = true
			r.s.refreshTokens[hash] = t
		}
	}
	return nil
}

func (r *refreshTokensRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	defer r.lock()()
	for hash, t := range r.s.refreshTokens {
		if t.UserID == userID {
			t.Revoked = true
			r.s.refreshTokens[hash] = t
		}
	}
	return nil
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) error {
	defer r.lock()()
	for hash, t := range r.s.refreshTokens {
		if now.After(t.ExpiresAt) {
			delete(r.s.refreshTokens, hash)
		}
	}
	return nil
}

type blacklistRepo struct {
	s      *Store
	locked bool
}

func (r *blacklistRepo) lock() func() {
	if r.locked {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *blacklistRepo) InvalidateToken(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	defer r.lock()()
	r.s.blacklist[tokenHash] = expiresAt
	return nil
}

func (r *blacklistRepo) IsTokenInvalidated(ctx context.Context, tokenHash string) (bool, error) {
	defer r.lock()()
	exp, ok := r.s.blacklist[tokenHash]
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		// Entry outlived the token; the expiry check rejects it regardless.
		return false, nil
	}
	return true, nil
}

func (r *blacklistRepo) DeleteExpiredEntries(ctx context.Context, now time.Time) error {
	defer r.lock()()
	for hash, exp := range r.s.blacklist {
		if now.After(exp) {
			delete(r.s.blacklist, hash)
		}
	}
	return nil
}
