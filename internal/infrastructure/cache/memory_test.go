package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfcheck/backend/internal/domain"
)

func newTestCache(t *testing.T) *MemoryCache {
	t.Helper()
	c := NewMemoryCache(nil)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value interface{}
		want  interface{}
	}{
		{
			name:  "string",
			key:   "k1",
			value: "HARINA PAN",
			want:  "HARINA PAN",
		},
		{
			name:  "number becomes float64",
			key:   "k2",
			value: 3,
			want:  float64(3),
		},
		{
			name: "struct becomes generic map",
			key:  "k3",
			value: domain.CatalogMatch{
				Name:  "ACEITE DIANA",
				Score: 0.9,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, cache.Set(ctx, tt.key, tt.value, time.Minute))

			got, err := cache.Get(ctx, tt.key)
			require.NoError(t, err)

			if tt.want != nil {
				assert.Equal(t, tt.want, got)
				return
			}
			m, ok := got.(map[string]interface{})
			require.True(t, ok, "expected map, got %T", got)
			assert.Equal(t, "ACEITE DIANA", m["name"])
		})
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "short", "value", time.Millisecond))
	time.Sleep(10 * time.Millisecond)

	_, err := cache.Get(ctx, "short")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	exists, err := cache.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryCache_Get_CacheMiss(t *testing.T) {
	cache := newTestCache(t)

	_, err := cache.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestMemoryCache_Set_Unencodable(t *testing.T) {
	cache := newTestCache(t)

	err := cache.Set(context.Background(), "bad", make(chan int), time.Minute)
	assert.Error(t, err)
	assert.Equal(t, 0, cache.Size())
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	require.NoError(t, cache.Delete(ctx, "key"))

	_, err := cache.Get(ctx, "key")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestMemoryCache_Add(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	added, err := cache.Add(ctx, "msg:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = cache.Add(ctx, "msg:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, added, "second add of the same key must report a duplicate")

	seen, err := cache.Contains(ctx, "msg:1")
	require.NoError(t, err)
	assert.True(t, seen)

	t.Run("expired key can be added again", func(t *testing.T) {
		added, err := cache.Add(ctx, "msg:2", time.Millisecond)
		require.NoError(t, err)
		require.True(t, added)

		time.Sleep(10 * time.Millisecond)

		added, err = cache.Add(ctx, "msg:2", time.Minute)
		require.NoError(t, err)
		assert.True(t, added)
	})
}

func TestMemoryCache_Add_Concurrent(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := cache.Add(ctx, "msg:race", time.Minute)
			assert.NoError(t, err)
			if added {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestMemoryCache_Janitor(t *testing.T) {
	cache := newMemoryCache(5*time.Millisecond, nil)
	defer cache.Close()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "gone", "v", time.Millisecond))
	require.NoError(t, cache.Set(ctx, "kept", "v", time.Minute))

	assert.Eventually(t, func() bool { return cache.Size() == 1 }, time.Second, 5*time.Millisecond)
}

func TestMemoryCache_Close_Idempotent(t *testing.T) {
	cache := NewMemoryCache(nil)
	assert.NoError(t, cache.Close())
	assert.NoError(t, cache.Close())
}

func TestMemoryCache_Clear(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, cache.Set(ctx, fmt.Sprintf("k%d", i), i, time.Minute))
	}
	require.Equal(t, 5, cache.Size())

	cache.Clear()

	assert.Equal(t, 0, cache.Size())
	_, err := cache.Get(ctx, "k0")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}
