package resolver

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry holds a cached value with expiration and LRU tracking.
type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
	elem      *list.Element
}

// TTLCache is a thread-safe TTL cache with LRU eviction. Expired
// entries are removed on read; only successful lookups are ever stored,
// so there is no negative-entry handling.
type TTLCache[K comparable, V any] struct {
	mu sync.Mutex

	maxEntries int
	lru        *list.List // front = oldest, back = newest
	data       map[K]*cacheEntry[V]

	hits   int
	misses int
}

// NewTTLCache creates a cache bounded to maxEntries (minimum 1).
func NewTTLCache[K comparable, V any](maxEntries int) *TTLCache[K, V] {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &TTLCache[K, V]{
		maxEntries: maxEntries,
		lru:        list.New(),
		data:       map[K]*cacheEntry[V]{},
	}
}

// Get returns the cached value and whether it was present and fresh.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	var zero V
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.data[key]
	if e == nil {
		c.misses++
		return zero, false
	}
	if !e.expiresAt.After(now) {
		c.lru.Remove(e.elem)
		delete(c.data, key)
		c.misses++
		return zero, false
	}
	c.lru.MoveToBack(e.elem)
	c.hits++
	return e.value, true
}

// Set stores a value for ttl. Non-positive TTLs are not stored.
func (c *TTLCache[K, V]) Set(key K, val V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	expires := time.Now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing := c.data[key]; existing != nil {
		existing.value = val
		existing.expiresAt = expires
		c.lru.MoveToBack(existing.elem)
		return
	}

	e := &cacheEntry[V]{value: val, expiresAt: expires}
	e.elem = c.lru.PushBack(key)
	c.data[key] = e

	for len(c.data) > c.maxEntries {
		front := c.lru.Front()
		if front == nil {
			break
		}
		k := front.Value.(K)
		c.lru.Remove(front)
		delete(c.data, k)
	}
}

// Stats returns hit and miss counters.
func (c *TTLCache[K, V]) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
