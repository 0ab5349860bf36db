package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quizforge/quizauth/internal/authd/domain"
	"github.com/quizforge/quizauth/internal/authd/store"
	"github.com/quizforge/quizauth/internal/authd/store/memory"
)

func seedHousekeepingState(t *testing.T, st store.Store, now time.Time) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.Sessions().CreateSession(ctx, domain.Session{
		ID: "sess-fresh", UserID: "u1", Valid: true,
		CreatedAt: now, LastActivityAt: now,
	}))
	require.NoError(t, st.Sessions().CreateSession(ctx, domain.Session{
		ID: "sess-idle", UserID: "u1", Valid: true,
		CreatedAt: now.Add(-2 * time.Hour), LastActivityAt: now.Add(-2 * time.Hour),
	}))
	require.NoError(t, st.Sessions().CreateSession(ctx, domain.Session{
		ID: "sess-dead", UserID: "u1", Valid: false,
		CreatedAt: now, LastActivityAt: now,
	}))

	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
		ID: "rt-live", UserID: "u1", SessionID: "sess-fresh",
		TokenHash: "hash-live", ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	}))
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
		ID: "rt-expired", UserID: "u1", SessionID: "sess-idle",
		TokenHash: "hash-expired", ExpiresAt: now.Add(-time.Hour), CreatedAt: now.Add(-2 * time.Hour),
	}))

	require.NoError(t, st.Blacklist().InvalidateToken(ctx, "bl-live", now.Add(time.Hour)))
	require.NoError(t, st.Blacklist().InvalidateToken(ctx, "bl-expired", now.Add(-time.Hour)))
}

func TestHousekeepingSweep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()

	st := memory.NewStore()
	t.Cleanup(func() { _ = st.Close() })
	seedHousekeepingState(t, st, now)

	h := &Housekeeping{
		Store:   st,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		IdleTTL: 30 * time.Minute,
	}
	h.sweep(ctx)

	_, err := st.Sessions().GetSessionByID(ctx, "sess-fresh")
	require.NoError(t, err, "active session survives the sweep")

	_, err = st.Sessions().GetSessionByID(ctx, "sess-idle")
	require.ErrorIs(t, err, store.ErrNotFound, "session idle past the window is removed")

	_, err = st.Sessions().GetSessionByID(ctx, "sess-dead")
	require.ErrorIs(t, err, store.ErrNotFound, "invalidated session is removed")

	_, err = st.RefreshTokens().GetRefreshTokenByHash(ctx, "hash-live")
	require.NoError(t, err)

	_, err = st.RefreshTokens().GetRefreshTokenByHash(ctx, "hash-expired")
	require.ErrorIs(t, err, store.ErrNotFound)

	invalidated, err := st.Blacklist().IsTokenInvalidated(ctx, "bl-live")
	require.NoError(t, err)
	require.True(t, invalidated, "unexpired blacklist entry still blocks its token")
}

func TestHousekeepingStartStop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()

	st := memory.NewStore()
	t.Cleanup(func() { _ = st.Close() })
	seedHousekeepingState(t, st, now)

	h := &Housekeeping{
		Store:    st,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Interval: 10 * time.Millisecond,
		IdleTTL:  30 * time.Minute,
	}
	h.Start(ctx)

	require.Eventually(t, func() bool {
		_, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, "hash-expired")
		return err != nil
	}, time.Second, 5*time.Millisecond, "ticker sweep removes the expired token")

	h.Stop()

	_, err := st.Sessions().GetSessionByID(ctx, "sess-fresh")
	require.NoError(t, err)
}
