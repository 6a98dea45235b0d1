// Package redis caches service-key lookups so authenticated prompt calls do
// not hit the database on every request. A cache failure is never fatal;
// authentication falls back to the store.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/promptroute/promptroute/internal/config"
	"github.com/promptroute/promptroute/internal/observability"
)

const keyPrefix = "svc-key:"

// KeyCache maps service-key lookup hashes to user IDs.
type KeyCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewKeyCache creates a key cache. Returns nil when no Redis address is
// configured; callers treat a nil cache as disabled.
func NewKeyCache(cfg *config.RedisConfig) *KeyCache {
	if cfg == nil || cfg.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &KeyCache{
		client: client,
		ttl:    time.Duration(cfg.TTL) * time.Second,
	}
}

// GetUserID returns the cached user for a key hash, if present.
func (c *KeyCache) GetUserID(ctx context.Context, keyHash string) (string, bool) {
	if c == nil {
		return "", false
	}

	userID, err := c.client.Get(ctx, keyPrefix+keyHash).Result()
	if err != nil {
		if err != redis.Nil {
			observability.FromContext(ctx).Warn("key cache get failed, continuing without cache",
				zap.Error(err))
		}
		return "", false
	}

	return userID, true
}

// SetUserID caches a key-hash-to-user mapping.
func (c *KeyCache) SetUserID(ctx context.Context, keyHash, userID string) {
	if c == nil {
		return
	}

	if err := c.client.Set(ctx, keyPrefix+keyHash, userID, c.ttl).Err(); err != nil {
		observability.FromContext(ctx).Warn("key cache set failed", zap.Error(err))
	}
}

// Invalidate drops a cached mapping after key deletion.
func (c *KeyCache) Invalidate(ctx context.Context, keyHash string) {
	if c == nil {
		return
	}

	if err := c.client.Del(ctx, keyPrefix+keyHash).Err(); err != nil {
		observability.FromContext(ctx).Warn("key cache invalidate failed", zap.Error(err))
	}
}
