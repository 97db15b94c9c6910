// Package derived memoizes facts that need a full scan of the raw snapshot.
//
// The feed never pushes a delta for "the set of expulsion ids" or "is the
// scheduled start in the past"; both have to be recomputed from the whole
// snapshot. They are read on every render, so they sit behind a small cache
// with a TTL and explicit invalidation tied to the delta kinds that can
// stale them.
package derived

import (
	"sync"
	"time"
)

// Default cache configuration constants.
const (
	defaultTTL = 30 * time.Second
)

// Cache memoizes a single computed value with a TTL and explicit
// invalidation. The zero value is not usable; use NewCache.
type Cache[T any] struct {
	mu      sync.Mutex
	value   T
	expiry  time.Time
	valid   bool
	ttl     time.Duration
	now     func() time.Time
	compute func() T
}

// NewCache creates a cache around compute with the given TTL. A non-positive
// ttl falls back to the default.
func NewCache[T any](ttl time.Duration, compute func() T) *Cache[T] {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache[T]{
		ttl:     ttl,
		now:     time.Now,
		compute: compute,
	}
}

// Get returns the cached value, recomputing it when the cache is invalid or
// the TTL has lapsed.
func (c *Cache[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.valid || now.After(c.expiry) {
		c.value = c.compute()
		c.expiry = now.Add(c.ttl)
		c.valid = true
	}
	return c.value
}

// Invalidate forces the next Get to recompute.
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}

// setClock overrides the time source. Test hook.
func (c *Cache[T]) setClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
