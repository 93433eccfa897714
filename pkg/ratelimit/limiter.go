package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether a request identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// TokenBucketLimiter keeps one token bucket per key in process memory.
// Buckets idle for longer than idleTTL are swept by Run.
type TokenBucketLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTokenBucketLimiter allows requestsPerMinute on average with bursts of
// up to a tenth of that
func NewTokenBucketLimiter(requestsPerMinute int) *TokenBucketLimiter {
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &TokenBucketLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(float64(requestsPerMinute) / 60),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

// Allow takes a token from the key's bucket
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	return b.limiter.AllowN(now, 1), nil
}

// Reset forgets the bucket of a key
func (l *TokenBucketLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Run sweeps idle buckets until ctx ends
func (l *TokenBucketLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *TokenBucketLimiter) sweep() {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

func (l *TokenBucketLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
