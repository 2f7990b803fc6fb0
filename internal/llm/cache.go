package llm

import (
	"sync"
	"time"
)

type cacheEntry struct {
	expiry time.Time
	value  ClassifyResponse
}

// responseCache is a TTL cache of classifier answers. Expired entries are
// dropped lazily on lookup.
type responseCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *responseCache) get(key string) (ClassifyResponse, bool) {
	if c.ttl <= 0 {
		return ClassifyResponse{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return ClassifyResponse{}, false
	}
	if c.now().After(entry.expiry) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return ClassifyResponse{}, false
	}
	return entry.value, true
}

func (c *responseCache) set(key string, v ClassifyResponse) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: v, expiry: c.now().Add(c.ttl)}
}

func (c *responseCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
