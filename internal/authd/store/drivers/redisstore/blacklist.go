// Package redisstore provides Redis-backed implementations of the pieces of
// session state that benefit from being shared across server instances: the
// access-token blacklist and the login attempt windows. The relational store
// keeps everything else.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistKeyPrefix = "quizauth:blacklist:"

// Blacklist implements store.Blacklist on Redis. Entries carry a TTL equal
// to the token's remaining natural lifetime, so Redis expiry does the
// garbage collection and DeleteExpiredEntries is a no-op.
type Blacklist struct {
	client redis.UniversalClient
}

func NewBlacklist(client redis.UniversalClient) *Blacklist {
	return &Blacklist{client: client}
}

func (b *Blacklist) InvalidateToken(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Token already past natural expiry; nothing to blacklist.
		return nil
	}
	if err := b.client.Set(ctx, blacklistKeyPrefix+tokenHash, "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *Blacklist) IsTokenInvalidated(ctx context.Context, tokenHash string) (bool, error) {
	result, err := b.client.Get(ctx, blacklistKeyPrefix+tokenHash).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get: %w", err)
	}
	return result == "revoked", nil
}

func (b *Blacklist) DeleteExpiredEntries(ctx context.Context, now time.Time) error {
	// Redis TTLs expire entries on their own.
	return nil
}
