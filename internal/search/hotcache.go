// Package search holds the query-side ranking machinery: the hot-query
// cache, the multi-signal rescorer, and the top-K shard merger.
package search

import (
	"sync"
	"time"
)

// DefaultHotTTL is deliberately short; the cache only absorbs repeat
// queries in quick succession.
const DefaultHotTTL = 20 * time.Second

type hotEntry struct {
	at      time.Time
	payload []byte
}

// HotCache memoizes fully serialized query responses under the
// normalized query key. Stale entries are evicted on read; writes
// overwrite unconditionally.
type HotCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]hotEntry
}

func NewHotCache(ttl time.Duration) *HotCache {
	if ttl <= 0 {
		ttl = DefaultHotTTL
	}
	return &HotCache{ttl: ttl, entries: map[string]hotEntry{}}
}

// Get returns the cached response for key when present and fresh.
func (c *HotCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(e.at) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.payload, true
}

// Put stores the response for key, overwriting any previous entry.
func (c *HotCache) Put(key string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = hotEntry{at: time.Now(), payload: payload}
}

// Len reports the current entry count, stale entries included.
func (c *HotCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
