package scraper

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TTLCache caches scrape results per key for a fixed TTL and collapses
// concurrent misses for the same key into one call.
type TTLCache[T any] struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]ttlEntry[T]
}

type ttlEntry[T any] struct {
	value   T
	expires time.Time
}

// NewTTLCache creates a cache. A ttl of zero disables caching but keeps
// deduplication.
func NewTTLCache[T any](ttl time.Duration) *TTLCache[T] {
	return &TTLCache[T]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]ttlEntry[T]),
	}
}

// Get returns a fresh cached value.
func (c *TTLCache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Do returns the cached value for key or runs fn once across concurrent
// callers. hit reports a cache hit; shared reports a deduplicated call.
// Errors are not cached.
func (c *TTLCache[T]) Do(ctx context.Context, key string, fn func(context.Context) (T, error)) (v T, hit, shared bool, err error) {
	if v, ok := c.Get(key); ok {
		return v, true, false, nil
	}

	res, err, shared := c.group.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			return v, err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			c.entries[key] = ttlEntry[T]{value: v, expires: c.now().Add(c.ttl)}
			c.mu.Unlock()
		}
		return v, nil
	})
	v, _ = res.(T)
	return v, false, shared, err
}

// Forget drops a cached entry.
func (c *TTLCache[T]) Forget(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.group.Forget(key)
}
