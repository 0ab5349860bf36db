package sqlite

import (
	"context"
	"time"

	"github.com/quizforge/quizauth/internal/authd/domain"
)

type refreshTokensRepo struct {
	db dbtx
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, session_id, token_hash, expires_at, revoked, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.SessionID, t.TokenHash, t.ExpiresAt, boolToInt(t.Revoked), t.CreatedAt)
	return err
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, session_id, token_hash, expires_at, revoked, created_at
		FROM refresh_tokens WHERE token_hash = ?`, hash)

	var t domain.RefreshToken
	var revoked int
	if err := row.Scan(&t.ID, &t.UserID, &t.SessionID, &t.TokenHash, &t.ExpiresAt, &revoked, &t.CreatedAt); err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.Revoked = revoked != 0
	return t, nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = 1 WHERE token_hash = ?`, hash)
	return err
}

func (r *refreshTokensRepo) RevokeSessionRefreshTokens(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = 1 WHERE session_id = ?`, sessionID)
	return err
}

func (r *refreshTokensRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ?`, userID)
	return err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at < ?`, now)
	return err
}
