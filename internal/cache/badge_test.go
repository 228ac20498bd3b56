package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shaka/internal/cache"
)

func setupTestRedis(t *testing.T) *redis.Client {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	opts.DB = 1

	client := redis.NewClient(opts)
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	client.FlushDB(ctx)

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestBadgeCache_Lifecycle(t *testing.T) {
	client := setupTestRedis(t)
	badges := cache.NewBadgeCache(client, zap.NewNop())
	ctx := context.Background()

	_, found, err := badges.Get(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, badges.Set(ctx, "bob", 4))
	count, err := badges.Incr(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	count, found, err = badges.Get(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(5), count)

	ttl, err := client.TTL(ctx, cache.BadgePrefix+"bob").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, badges.Reset(ctx, "bob"))
	_, found, err = badges.Get(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBadgeCache_IncrFromMissing(t *testing.T) {
	client := setupTestRedis(t)
	badges := cache.NewBadgeCache(client, zap.NewNop())

	count, err := badges.Incr(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
