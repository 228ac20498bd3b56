package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// BadgePrefix is the key prefix for per-user unread counters
	BadgePrefix = "badge:user:"

	// BadgeTTL bounds how long a counter lives without writes. Postgres stays
	// authoritative; a missing key is rebuilt from GetUnreadCount.
	BadgeTTL = 7 * 24 * time.Hour
)

// BadgeCache holds the unread notification count shown on the app icon.
type BadgeCache interface {
	// Incr bumps a user's counter and returns the new value.
	// Pipeline: INCR + EXPIRE (refresh TTL)
	Incr(ctx context.Context, userID string) (int64, error)

	// Get returns the cached count. found=false if the key is absent.
	Get(ctx context.Context, userID string) (count int64, found bool, err error)

	// Set overwrites the counter, used after a recount from Postgres.
	Set(ctx context.Context, userID string, count int64) error

	// Reset drops the counter.
	Reset(ctx context.Context, userID string) error
}

// RedisBadgeCache implements BadgeCache using Redis string counters.
type RedisBadgeCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewBadgeCache creates a new BadgeCache backed by Redis.
func NewBadgeCache(client *redis.Client, logger *zap.Logger) BadgeCache {
	return &RedisBadgeCache{client: client, logger: logger.Named("badge")}
}

func badgeKey(userID string) string {
	return BadgePrefix + userID
}

func (c *RedisBadgeCache) Incr(ctx context.Context, userID string) (int64, error) {
	key := badgeKey(userID)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, BadgeTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Incr FAILED", zap.String("user", userID), zap.Error(err))
		return 0, fmt.Errorf("incr badge: %w", err)
	}

	count := incr.Val()
	c.logger.Debug("Incr OK", zap.String("user", userID), zap.Int64("count", count))
	return count, nil
}

func (c *RedisBadgeCache) Get(ctx context.Context, userID string) (int64, bool, error) {
	count, err := c.client.Get(ctx, badgeKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get badge: %w", err)
	}
	return count, true, nil
}

func (c *RedisBadgeCache) Set(ctx context.Context, userID string, count int64) error {
	if err := c.client.Set(ctx, badgeKey(userID), count, BadgeTTL).Err(); err != nil {
		return fmt.Errorf("set badge: %w", err)
	}
	return nil
}

func (c *RedisBadgeCache) Reset(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, badgeKey(userID)).Err(); err != nil {
		return fmt.Errorf("reset badge: %w", err)
	}
	return nil
}
