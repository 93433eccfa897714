package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	l := NewTokenBucketLimiter(60)
	l.now = func() time.Time { return now }
	require.Equal(t, 6, l.burst)

	t.Run("allows a burst then refuses", func(t *testing.T) {
		for i := 0; i < 6; i++ {
			ok, err := l.Allow(ctx, "ip:1")
			require.NoError(t, err)
			assert.True(t, ok, "request %d", i)
		}
		ok, _ := l.Allow(ctx, "ip:1")
		assert.False(t, ok)
	})

	t.Run("keys are independent", func(t *testing.T) {
		ok, _ := l.Allow(ctx, "ip:2")
		assert.True(t, ok)
	})

	t.Run("refills over time", func(t *testing.T) {
		now = now.Add(2 * time.Second)
		ok, _ := l.Allow(ctx, "ip:1")
		assert.True(t, ok)
	})

	t.Run("reset restores the burst", func(t *testing.T) {
		l.Reset("ip:1")
		for i := 0; i < 6; i++ {
			ok, _ := l.Allow(ctx, "ip:1")
			assert.True(t, ok)
		}
	})
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewTokenBucketLimiter(60)
	l.now = func() time.Time { return now }

	_, _ = l.Allow(context.Background(), "old")
	now = now.Add(l.idleTTL + time.Second)
	_, _ = l.Allow(context.Background(), "fresh")

	l.sweep()
	assert.Equal(t, 1, l.size())
}
