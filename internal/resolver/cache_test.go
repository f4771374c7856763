package resolver

import (
	"testing"
	"time"
)

func TestNewTTLCache(t *testing.T) {
	cache := NewTTLCache[string, int](100)
	if cache == nil {
		t.Fatal("expected non-nil cache")
	}
	if cache.maxEntries != 100 {
		t.Errorf("expected maxEntries 100, got %d", cache.maxEntries)
	}

	cache = NewTTLCache[string, int](0)
	if cache.maxEntries != 1 {
		t.Errorf("expected maxEntries 1 (minimum), got %d", cache.maxEntries)
	}
}

func TestCacheSetGet(t *testing.T) {
	cache := NewTTLCache[string, string](10)

	cache.Set("key1", "value1", time.Hour)
	val, found := cache.Get("key1")
	if !found {
		t.Fatal("expected to find key1")
	}
	if val != "value1" {
		t.Errorf("expected value1, got %s", val)
	}

	_, found = cache.Get("nonexistent")
	if found {
		t.Error("expected not found for nonexistent key")
	}
}

func TestCacheExpiration(t *testing.T) {
	cache := NewTTLCache[string, string](10)

	cache.Set("key1", "value1", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, found := cache.Get("key1")
	if found {
		t.Error("expected expired entry to not be found")
	}
}

func TestCacheZeroTTLNotStored(t *testing.T) {
	cache := NewTTLCache[string, string](10)

	cache.Set("key1", "value1", 0)
	if _, found := cache.Get("key1"); found {
		t.Error("expected zero TTL entry to not be stored")
	}

	cache.Set("key2", "value2", -time.Second)
	if _, found := cache.Get("key2"); found {
		t.Error("expected negative TTL entry to not be stored")
	}
}

func TestCacheLRUEviction(t *testing.T) {
	cache := NewTTLCache[string, string](3)

	cache.Set("key1", "value1", time.Hour)
	cache.Set("key2", "value2", time.Hour)
	cache.Set("key3", "value3", time.Hour)

	// Touch key1 so key2 becomes the eviction candidate.
	cache.Get("key1")
	cache.Set("key4", "value4", time.Hour)

	if _, found := cache.Get("key1"); !found {
		t.Error("expected key1 to still exist (recently used)")
	}
	if _, found := cache.Get("key2"); found {
		t.Error("expected key2 to be evicted")
	}
	if _, found := cache.Get("key3"); !found {
		t.Error("expected key3 to exist")
	}
	if _, found := cache.Get("key4"); !found {
		t.Error("expected key4 to exist")
	}
}

func TestCacheUpdate(t *testing.T) {
	cache := NewTTLCache[string, string](10)

	cache.Set("key1", "value1", time.Hour)
	cache.Set("key1", "value2", time.Hour)

	val, found := cache.Get("key1")
	if !found {
		t.Fatal("expected to find key1")
	}
	if val != "value2" {
		t.Errorf("expected updated value2, got %s", val)
	}
}

func TestCacheStatistics(t *testing.T) {
	cache := NewTTLCache[string, string](10)

	cache.Get("nonexistent")
	cache.Set("key1", "value1", time.Hour)
	cache.Get("key1")

	hits, misses := cache.Stats()
	if hits != 1 {
		t.Errorf("expected 1 hit, got %d", hits)
	}
	if misses != 1 {
		t.Errorf("expected 1 miss, got %d", misses)
	}
}
