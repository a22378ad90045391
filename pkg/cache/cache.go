// Package cache provides the bounded, time-aware LRU cache used for resolved
// slab-index metadata.
//
// The cache enforces two limits: a maximum entry count (size) with strict
// least-recently-used eviction, and a maximum entry age (validity). An entry
// older than the validity window is treated as absent on lookup even while
// still resident; it is removed lazily rather than swept eagerly.
//
// Edge-case policy: a validity of zero or less means every entry is always
// expired, so every read is a miss. A size of zero means the cache holds
// nothing and every put is a no-op. Both behaviours are fixed and tested.
//
// All operations take one short mutex around the recency list and key index;
// no I/O ever runs under the lock.
//
// Usage:
//
//	c := cache.New[*storage.SlabIndex](100, 300*time.Second)
//
//	if idx, ok := c.Get(key); ok {
//		return idx // hit, promoted to most-recently-used
//	}
//	idx := resolve(key) // caller-owned resolution
//	c.Put(key, idx)
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a thread-safe LRU cache with a validity window. The value type is
// opaque to the cache; it never computes values itself.
type Cache[V any] struct {
	mu sync.Mutex

	size     int
	validity time.Duration
	now      func() time.Time

	order *list.List // front = most-recently-used
	index map[string]*list.Element

	stats Stats
}

// entry is a resident cache entry with its insertion timestamp.
type entry[V any] struct {
	key      string
	value    V
	storedAt time.Time
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	Expirations int64 `json:"expirations"`
}

// Option customises cache construction.
type Option[V any] func(*Cache[V])

// WithClock replaces the cache's time source. Tests use this to pin entry
// ages at the validity boundary.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		c.now = now
	}
}

// New creates a cache holding at most size entries, each valid for the given
// window after its insertion or last overwrite. A size below one yields a
// cache that stores nothing.
func New[V any](size int, validity time.Duration, opts ...Option[V]) *Cache[V] {
	if size < 0 {
		size = 0
	}
	c := &Cache[V]{
		size:     size,
		validity: validity,
		now:      time.Now,
		order:    list.New(),
		index:    make(map[string]*list.Element, size),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key if present and not expired, promoting
// it to most-recently-used. An expired entry is removed and reported as a
// miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}

	ent := el.Value.(*entry[V])
	if c.expired(ent) {
		c.remove(el, ent)
		c.stats.Expirations++
		c.stats.Misses++
		return zero, false
	}

	c.order.MoveToFront(el)
	c.stats.Hits++
	return ent.value, true
}

// Put inserts or replaces the entry for key with a fresh timestamp and marks
// it most-recently-used. If inserting a new key would exceed the configured
// size, the least-recently-used entry is evicted first, so the cache never
// holds more than size entries.
func (c *Cache[V]) Put(key string, value V) {
	if c.size == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		ent := el.Value.(*entry[V])
		ent.value = value
		ent.storedAt = c.now()
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.size {
		oldest := c.order.Back()
		if oldest != nil {
			c.remove(oldest, oldest.Value.(*entry[V]))
			c.stats.Evictions++
		}
	}

	el := c.order.PushFront(&entry[V]{key: key, value: value, storedAt: c.now()})
	c.index[key] = el
}

// Invalidate removes the entry for key unconditionally.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		c.remove(el, el.Value.(*entry[V]))
	}
}

// Clear removes all entries. Used on configuration reload.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.index = make(map[string]*list.Element, c.size)
}

// Len returns the number of resident entries, expired entries included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// expired reports whether ent has outlived the validity window. Holds under
// c.mu.
func (c *Cache[V]) expired(ent *entry[V]) bool {
	if c.validity <= 0 {
		return true
	}
	return c.now().Sub(ent.storedAt) > c.validity
}

// remove unlinks an entry. Holds under c.mu.
func (c *Cache[V]) remove(el *list.Element, ent *entry[V]) {
	c.order.Remove(el)
	delete(c.index, ent.key)
}
