package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/quizforge/quizauth/pkg/httpx"
	"github.com/redis/go-redis/v9"
)

const attemptKeyPrefix = "quizauth:login_attempts:"

// AttemptStore implements httpx.AttemptStore on Redis, giving every server
// instance the same view of a login window. INCR starts the window on the
// first attempt; the key's TTL is the window reset time.
type AttemptStore struct {
	client redis.UniversalClient
}

func NewAttemptStore(client redis.UniversalClient) *AttemptStore {
	return &AttemptStore{client: client}
}

func (s *AttemptStore) Touch(ctx context.Context, key string, window time.Duration) (httpx.Attempt, error) {
	redisKey := attemptKeyPrefix + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return httpx.Attempt{}, fmt.Errorf("redis incr: %w", err)
	}

	if count == 1 {
		// First attempt opens the window.
		if err := s.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return httpx.Attempt{}, fmt.Errorf("redis expire: %w", err)
		}
		return httpx.Attempt{Count: 1, ResetAt: time.Now().Add(window)}, nil
	}

	ttl, err := s.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return httpx.Attempt{}, fmt.Errorf("redis ttl: %w", err)
	}
	if ttl < 0 {
		// Key lost its TTL (e.g. Redis restarted mid-window); re-arm it so
		// the window cannot become permanent.
		_ = s.client.Expire(ctx, redisKey, window).Err()
		ttl = window
	}

	return httpx.Attempt{Count: int(count), ResetAt: time.Now().Add(ttl)}, nil
}
