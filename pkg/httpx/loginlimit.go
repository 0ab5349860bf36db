package httpx

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/quizforge/quizauth/pkg/slogx"
)

// LoginLimitConfig defines the windowed login throttle. Defaults allow 5
// attempts per (email, origin IP) pair in a 15 minute window; the 6th
// attempt inside an active window is rejected with a retry hint before any
// credential check runs.
type LoginLimitConfig struct {
	Limit  int
	Window time.Duration
}

var DefaultLoginLimit = LoginLimitConfig{
	Limit:  5,
	Window: 15 * time.Minute,
}

// Attempt is the state of one counting window.
type Attempt struct {
	Count   int
	ResetAt time.Time
}

// AttemptStore tracks login attempt windows per key. The memory
// implementation is process-local only; deployments running multiple
// instances behind a balancer should use the Redis implementation so the
// window is counted once, not once per instance.
type AttemptStore interface {
	// Touch records one attempt for key and returns the updated window.
	// A window that has passed its ResetAt is replaced, not extended.
	Touch(ctx context.Context, key string, window time.Duration) (Attempt, error)
}

// MemoryAttemptStore is the in-process AttemptStore. A janitor goroutine
// sweeps expired windows so abandoned keys do not accumulate.
type MemoryAttemptStore struct {
	mu       sync.Mutex
	attempts map[string]Attempt

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewMemoryAttemptStore(sweepInterval time.Duration) *MemoryAttemptStore {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}

	s := &MemoryAttemptStore{
		attempts: make(map[string]Attempt),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go s.janitor(sweepInterval)
	return s
}

func (s *MemoryAttemptStore) Touch(ctx context.Context, key string, window time.Duration) (Attempt, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[key]
	if !ok || now.After(a.ResetAt) {
		a = Attempt{Count: 0, ResetAt: now.Add(window)}
	}
	a.Count++
	s.attempts[key] = a
	return a, nil
}

// Close stops the janitor. Safe to call once.
func (s *MemoryAttemptStore) Close() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *MemoryAttemptStore) janitor(interval time.Duration) {
	defer close(s.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(time.Now())
		case <-s.stopCh:
			return
		}
	}
}

func (s *MemoryAttemptStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, a := range s.attempts {
		if now.After(a.ResetAt) {
			delete(s.attempts, key)
		}
	}
}

// LoginLimitMiddleware throttles authentication attempts keyed by the
// submitted email plus the origin IP, so one account cannot be stuffed from
// many addresses without tripping per-address limits, and one address
// cannot scan many accounts, while unrelated accounts behind a shared NAT
// IP stay independent.
func LoginLimitMiddleware(store AttemptStore, cfg LoginLimitConfig) Middleware {
	if cfg.Limit <= 0 {
		cfg = DefaultLoginLimit
	}

	keyExtractor := CompositeKeyExtractor(":",
		JSONFieldKeyExtractor("email"),
		IPKeyExtractor,
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			key := keyExtractor(r)
			if key == "" {
				// Without a key there is nothing to count against; let the
				// handler reject the malformed request itself.
				next.ServeHTTP(w, r)
				return
			}

			attempt, err := store.Touch(ctx, key, cfg.Window)
			if err != nil {
				// Counting is best-effort; an unavailable attempt store must
				// not lock every user out.
				log.Error("login limiter unavailable, allowing request", "err", err)
				next.ServeHTTP(w, r)
				return
			}

			if attempt.Count > cfg.Limit {
				retryAfter := max(int(time.Until(attempt.ResetAt).Seconds()), 1)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				log.Warn("login rate limit exceeded",
					"key", key,
					"attempts", attempt.Count,
					"retry_after", retryAfter,
				)

				WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{
					Error:      "too many login attempts, please try again later",
					RetryAfter: retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
