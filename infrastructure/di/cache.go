package di

import (
	"context"
	"strings"
	"sync"
	"time"
)

// CacheMetrics counts lookups
type CacheMetrics interface {
	CacheHit()
	CacheMiss()
}

// InMemoryCache provides a simple in-memory cache implementation
type InMemoryCache struct {
	mu      sync.RWMutex
	items   map[string]cacheItem
	metrics CacheMetrics
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once

	// seq counts invalidations. invalidated keeps the latest one per
	// prefix until it ages out; floor is the newest seq pruned so far.
	seq         uint64
	invalidated map[string]invalidation
	floor       uint64
}

type cacheItem struct {
	value     interface{}
	expiresAt time.Time
}

type invalidation struct {
	seq uint64
	at  time.Time
}

// invalidationHorizon bounds how long an invalidation is remembered.
// Loads that began before a forgotten invalidation are not cached.
const invalidationHorizon = time.Minute

// NewInMemoryCache creates a new in-memory cache. metrics may be nil.
func NewInMemoryCache(metrics CacheMetrics) *InMemoryCache {
	cache := &InMemoryCache{
		items:       make(map[string]cacheItem),
		metrics:     metrics,
		now:         time.Now,
		stop:        make(chan struct{}),
		invalidated: make(map[string]invalidation),
	}

	go cache.cleanupExpired(time.Minute)

	return cache
}

// Get retrieves a value from cache
func (c *InMemoryCache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists || c.now().After(item.expiresAt) {
		if c.metrics != nil {
			c.metrics.CacheMiss()
		}
		return nil, false
	}

	if c.metrics != nil {
		c.metrics.CacheHit()
	}
	return item.value, true
}

// Set stores a value in cache with TTL in seconds
func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}, ttl int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = cacheItem{
		value:     value,
		expiresAt: c.now().Add(time.Duration(ttl) * time.Second),
	}

	return nil
}

// Generation returns a token to pass to SetIfFresh. It changes with
// every Delete, DeletePrefix and Clear.
func (c *InMemoryCache) Generation(ctx context.Context) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seq
}

// SetIfFresh stores value unless key was invalidated after gen was
// taken. It reports whether the value was stored.
func (c *InMemoryCache) SetIfFresh(ctx context.Context, key string, value interface{}, ttl int, gen uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen < c.floor {
		return false, nil
	}
	for prefix, inv := range c.invalidated {
		if inv.seq > gen && strings.HasPrefix(key, prefix) {
			return false, nil
		}
	}

	c.items[key] = cacheItem{
		value:     value,
		expiresAt: c.now().Add(time.Duration(ttl) * time.Second),
	}
	return true, nil
}

// invalidate records that keys under prefix were dropped. Callers hold mu.
func (c *InMemoryCache) invalidate(prefix string) {
	c.seq++
	c.invalidated[prefix] = invalidation{seq: c.seq, at: c.now()}
}

// Delete removes a value from cache
func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	c.invalidate(key)
	return nil
}

// DeletePrefix removes every key that starts with prefix
func (c *InMemoryCache) DeletePrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
	c.invalidate(prefix)
	return nil
}

// Clear removes all values from cache
func (c *InMemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]cacheItem)
	c.invalidate("")
	return nil
}

// Len returns the number of stored items, expired ones included
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the cleanup goroutine. Idempotent.
func (c *InMemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// cleanupExpired periodically removes expired items
func (c *InMemoryCache) cleanupExpired(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *InMemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
		}
	}
	for prefix, inv := range c.invalidated {
		if now.Sub(inv.at) > invalidationHorizon {
			delete(c.invalidated, prefix)
			if inv.seq > c.floor {
				c.floor = inv.seq
			}
		}
	}
}
