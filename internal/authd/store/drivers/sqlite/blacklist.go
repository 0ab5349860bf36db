package sqlite

import (
	"context"
	"time"
)

type blacklistRepo struct {
	db dbtx
}

func (r *blacklistRepo) InvalidateToken(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO token_blacklist (token_hash, expires_at) VALUES (?, ?)
		ON CONFLICT (token_hash) DO UPDATE SET expires_at = excluded.expires_at`,
		tokenHash, expiresAt)
	return err
}

func (r *blacklistRepo) IsTokenInvalidated(ctx context.Context, tokenHash string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM token_blacklist
		WHERE token_hash = ? AND expires_at > ?`, tokenHash, time.Now())

	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *blacklistRepo) DeleteExpiredEntries(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM token_blacklist WHERE expires_at < ?`, now)
	return err
}
