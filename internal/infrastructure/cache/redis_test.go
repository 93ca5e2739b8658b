package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfcheck/backend/internal/domain"
)

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "not a url", nil)
	assert.Error(t, err)
}

func TestRedisCache_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewRedisCacheFromClient(client, nil)
	defer c.Close()
	ctx := context.Background()

	_, err := c.Get(ctx, "key")
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)

	_, err = c.Add(ctx, "msg:1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
}

// TestRedisCache_Live runs against a real server when SHELFCHECK_TEST_REDIS_URL is set.
func TestRedisCache_Live(t *testing.T) {
	url := os.Getenv("SHELFCHECK_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SHELFCHECK_TEST_REDIS_URL not set")
	}
	ctx := context.Background()

	c, err := NewRedisCache(ctx, url, nil)
	require.NoError(t, err)
	defer c.Close()

	key := "test:" + uuid.NewString()
	t.Cleanup(func() { _ = c.Delete(ctx, key) })

	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, key, map[string]any{"name": "HARINA PAN"}, time.Minute))
	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "HARINA PAN"}, got)

	require.NoError(t, c.Delete(ctx, key))

	added, err := c.Add(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = c.Add(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, added)

	seen, err := c.Contains(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)
}
