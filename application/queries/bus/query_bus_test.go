package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countQuery struct {
	User int
}

func (q countQuery) Validate() error  { return nil }
func (q countQuery) CacheKey() string { return "user:1:count" }

type mapCache map[string]interface{}

func (c mapCache) Get(_ context.Context, key string) (interface{}, bool) {
	v, ok := c[key]
	return v, ok
}

func (c mapCache) Set(_ context.Context, key string, value interface{}, _ int) error {
	c[key] = value
	return nil
}

// generationCache drops writes whose generation predates an invalidation
type generationCache struct {
	mapCache
	gen uint64
}

func (c *generationCache) invalidate(key string) {
	delete(c.mapCache, key)
	c.gen++
}

func (c *generationCache) Generation(context.Context) uint64 { return c.gen }

func (c *generationCache) SetIfFresh(ctx context.Context, key string, value interface{}, ttl int, gen uint64) (bool, error) {
	if gen != c.gen {
		return false, nil
	}
	return true, c.Set(ctx, key, value, ttl)
}

type recordingMetrics struct {
	calls []string
	errs  int
}

func (m *recordingMetrics) RecordQuery(queryType string, _ time.Duration, err error) {
	m.calls = append(m.calls, queryType)
	if err != nil {
		m.errs++
	}
}

func TestCachingMiddleware(t *testing.T) {
	cache := mapCache{}
	calls := 0
	handler := NewCachingMiddleware(cache, 60).Wrap(QueryHandlerFunc(func(context.Context, Query) (interface{}, error) {
		calls++
		return calls, nil
	}))

	b := NewQueryBus()
	require.NoError(t, b.Register(countQuery{}, handler))

	first, err := b.Ask(context.Background(), countQuery{User: 1})
	require.NoError(t, err)
	second, err := b.Ask(context.Background(), countQuery{User: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
	assert.Contains(t, cache, "user:1:count")

	delete(cache, "user:1:count")
	third, err := b.Ask(context.Background(), countQuery{User: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, third)
}

func TestCachingMiddlewareDropsViewsInvalidatedDuringLoad(t *testing.T) {
	cache := &generationCache{mapCache: mapCache{}}
	calls := 0
	handler := NewCachingMiddleware(cache, 60).Wrap(QueryHandlerFunc(func(context.Context, Query) (interface{}, error) {
		calls++
		if calls == 1 {
			// a command saves while the first load is in flight
			cache.invalidate("user:1:count")
		}
		return calls, nil
	}))

	first, err := handler.Handle(context.Background(), countQuery{User: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, first)
	assert.NotContains(t, cache.mapCache, "user:1:count")

	second, err := handler.Handle(context.Background(), countQuery{User: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, second)
	assert.Equal(t, 2, cache.mapCache["user:1:count"])
}

func TestCachingMiddlewareSkipsErrors(t *testing.T) {
	cache := mapCache{}
	handler := NewCachingMiddleware(cache, 60).Wrap(QueryHandlerFunc(func(context.Context, Query) (interface{}, error) {
		return nil, errors.New("boom")
	}))

	_, err := handler.Handle(context.Background(), countQuery{})
	assert.Error(t, err)
	assert.Empty(t, cache)
}

func TestMetricsMiddleware(t *testing.T) {
	metrics := &recordingMetrics{}
	fail := true
	handler := NewMetricsMiddleware(metrics).Wrap(QueryHandlerFunc(func(context.Context, Query) (interface{}, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return "ok", nil
	}))

	_, _ = handler.Handle(context.Background(), countQuery{})
	fail = false
	_, _ = handler.Handle(context.Background(), countQuery{})

	assert.Equal(t, []string{"countQuery", "countQuery"}, metrics.calls)
	assert.Equal(t, 1, metrics.errs)
}

func TestAskUnknownQuery(t *testing.T) {
	_, err := NewQueryBus().Ask(context.Background(), countQuery{})
	assert.ErrorContains(t, err, "no handler registered")
}
