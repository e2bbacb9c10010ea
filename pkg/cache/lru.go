// Package cache provides a small in-memory cache with TTL and max-size
// eviction, used to memoize authorization decisions between store changes.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value      V
	expiresAt  time.Time
	insertedAt time.Time
}

// LRUCache is a thread-safe cache with TTL and max-size eviction. When full,
// the entry inserted first is evicted. Expired entries are dropped lazily on
// Get.
type LRUCache[V any] struct {
	mu      sync.Mutex
	items   map[string]*entry[V]
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	hits, misses uint64
}

// NewLRUCache creates a cache. maxSize below 1 becomes 1 and a non-positive
// ttl becomes ten seconds.
func NewLRUCache[V any](maxSize int, ttl time.Duration) *LRUCache[V] {
	if maxSize < 1 {
		maxSize = 1
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &LRUCache[V]{
		items:   make(map[string]*entry[V], maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the value stored under key unless it is missing or expired.
func (c *LRUCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.items, key)
		c.misses++
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Set stores value under key, evicting the oldest entry when full.
func (c *LRUCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, ok := c.items[key]; !ok && len(c.items) >= c.maxSize {
		c.evictOldest()
	}
	c.items[key] = &entry[V]{value: value, expiresAt: now.Add(c.ttl), insertedAt: now}
}

// Invalidate removes key.
func (c *LRUCache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// InvalidateAll empties the cache.
func (c *LRUCache[V]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*entry[V], c.maxSize)
}

// Size returns the number of entries, including expired ones not yet
// collected.
func (c *LRUCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns the hit and miss counters.
func (c *LRUCache[V]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// evictOldest must be called with c.mu held.
func (c *LRUCache[V]) evictOldest() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.items {
		if first || e.insertedAt.Before(oldest) {
			oldestKey, oldest, first = k, e.insertedAt, false
		}
	}
	if !first {
		delete(c.items, oldestKey)
	}
}
