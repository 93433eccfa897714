package di

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMetrics struct{ hits, misses int }

func (m *countingMetrics) CacheHit()  { m.hits++ }
func (m *countingMetrics) CacheMiss() { m.misses++ }

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored values until they expire", func(t *testing.T) {
		metrics := &countingMetrics{}
		cache := NewInMemoryCache(metrics)
		defer cache.Close()

		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		cache.now = func() time.Time { return now }

		require.NoError(t, cache.Set(ctx, "k", "v", 30))
		v, ok := cache.Get(ctx, "k")
		assert.True(t, ok)
		assert.Equal(t, "v", v)

		now = now.Add(31 * time.Second)
		_, ok = cache.Get(ctx, "k")
		assert.False(t, ok)

		cache.removeExpired()
		assert.Equal(t, 0, cache.Len())
		assert.Equal(t, 1, metrics.hits)
		assert.Equal(t, 1, metrics.misses)
	})

	t.Run("DeletePrefix only drops matching keys", func(t *testing.T) {
		cache := NewInMemoryCache(nil)
		defer cache.Close()

		require.NoError(t, cache.Set(ctx, "user:1:trees", 1, 60))
		require.NoError(t, cache.Set(ctx, "user:1:tree:5", 2, 60))
		require.NoError(t, cache.Set(ctx, "user:12:trees", 3, 60))

		require.NoError(t, cache.DeletePrefix(ctx, "user:1:"))

		_, ok := cache.Get(ctx, "user:1:trees")
		assert.False(t, ok)
		_, ok = cache.Get(ctx, "user:12:trees")
		assert.True(t, ok)
	})

	t.Run("SetIfFresh drops a load that raced an invalidation", func(t *testing.T) {
		cache := NewInMemoryCache(nil)
		defer cache.Close()

		gen := cache.Generation(ctx)
		require.NoError(t, cache.DeletePrefix(ctx, "user:1:"))

		stored, err := cache.SetIfFresh(ctx, "user:1:tree:5", "stale", 60, gen)
		require.NoError(t, err)
		assert.False(t, stored)
		_, ok := cache.Get(ctx, "user:1:tree:5")
		assert.False(t, ok)

		stored, err = cache.SetIfFresh(ctx, "user:2:tree:9", "other user", 60, gen)
		require.NoError(t, err)
		assert.True(t, stored)

		stored, err = cache.SetIfFresh(ctx, "user:1:tree:5", "fresh", 60, cache.Generation(ctx))
		require.NoError(t, err)
		assert.True(t, stored)
	})

	t.Run("forgotten invalidations still block older loads", func(t *testing.T) {
		cache := NewInMemoryCache(nil)
		defer cache.Close()

		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		cache.now = func() time.Time { return now }

		gen := cache.Generation(ctx)
		require.NoError(t, cache.Clear(ctx))
		now = now.Add(2 * invalidationHorizon)
		cache.removeExpired()
		assert.Empty(t, cache.invalidated)

		stored, err := cache.SetIfFresh(ctx, "user:1:trees", "stale", 60, gen)
		require.NoError(t, err)
		assert.False(t, stored)

		stored, err = cache.SetIfFresh(ctx, "user:1:trees", "fresh", 60, cache.Generation(ctx))
		require.NoError(t, err)
		assert.True(t, stored)
	})

	t.Run("Close is idempotent", func(t *testing.T) {
		cache := NewInMemoryCache(nil)
		cache.Close()
		cache.Close()
	})
}
