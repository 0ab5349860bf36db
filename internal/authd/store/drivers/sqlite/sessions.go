package sqlite

import (
	"context"
	"time"

	"github.com/quizforge/quizauth/internal/authd/domain"
)

type sessionsRepo struct {
	db dbtx
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, csrf_token, origin_ip, user_agent, valid, created_at, last_activity_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.CSRFToken, s.OriginIP, s.UserAgent, boolToInt(s.Valid), s.CreatedAt, s.LastActivityAt)
	return err
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, csrf_token, origin_ip, user_agent, valid, created_at, last_activity_at
		FROM sessions WHERE id = ?`, id)

	var s domain.Session
	var valid int
	if err := row.Scan(&s.ID, &s.UserID, &s.CSRFToken, &s.OriginIP, &s.UserAgent, &valid, &s.CreatedAt, &s.LastActivityAt); err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.Valid = valid != 0
	return s, nil
}

func (r *sessionsRepo) InvalidateSession(ctx context.Context, id string) error {
	// One-way: never flips valid back to 1.
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET valid = 0 WHERE id = ?`, id)
	return err
}

func (r *sessionsRepo) InvalidateUserSessions(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET valid = 0 WHERE user_id = ?`, userID)
	return err
}

func (r *sessionsRepo) TouchSession(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET last_activity_at = ?
		WHERE id = ? AND last_activity_at < ?`, at, id, at)
	return err
}

func (r *sessionsRepo) RotateCSRFToken(ctx context.Context, id, csrfToken string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET csrf_token = ? WHERE id = ?`, csrfToken, id)
	return err
}

func (r *sessionsRepo) DeleteInactiveSessions(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE valid = 0 OR last_activity_at < ?`, cutoff)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
