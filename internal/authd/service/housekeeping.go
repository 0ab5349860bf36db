package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quizforge/quizauth/internal/authd/store"
)

// DefaultSweepInterval is how often housekeeping runs its sweeps.
const DefaultSweepInterval = 10 * time.Minute

// Housekeeping periodically removes rows nothing will read again: expired
// refresh tokens, spent blacklist entries, and sessions past the idle
// window. It is correctness-neutral; every read path already checks expiry
// itself.
type Housekeeping struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	IdleTTL  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches the sweep loop. Call Stop to end it.
func (h *Housekeeping) Start(ctx context.Context) {
	if h.Interval <= 0 {
		h.Interval = DefaultSweepInterval
	}

	ctx, h.cancel = context.WithCancel(ctx)
	h.done = make(chan struct{})

	go h.run(ctx)
}

// Stop ends the sweep loop and waits for an in-flight sweep to finish.
func (h *Housekeeping) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.done
}

func (h *Housekeeping) run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep(ctx)
		}
	}
}

// sweep runs the three deletions concurrently; they touch disjoint tables.
func (h *Housekeeping) sweep(ctx context.Context) {
	now := time.Now().UTC()
	cutoff := now.Add(-h.IdleTTL)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx, now)
	})
	g.Go(func() error {
		return h.Store.Blacklist().DeleteExpiredEntries(ctx, now)
	})
	g.Go(func() error {
		return h.Store.Sessions().DeleteInactiveSessions(ctx, cutoff)
	})

	if err := g.Wait(); err != nil {
		h.Logger.Warn("housekeeping sweep failed", "error", err)
		return
	}
	h.Logger.Debug("housekeeping sweep completed")
}
