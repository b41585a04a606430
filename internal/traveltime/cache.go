package traveltime

import (
	"sync"
	"time"
)

// Cache is a tiny in-memory TTL cache wrapping another Provider. Lookup
// failures are never cached.
type Cache struct {
	next Provider
	ttl  time.Duration

	mu    sync.RWMutex
	store map[string]cacheEntry
}

type cacheEntry struct {
	minutes int
	ts      time.Time
}

func NewCache(next Provider, ttl time.Duration) *Cache {
	return &Cache{next: next, ttl: ttl, store: make(map[string]cacheEntry)}
}

func cacheKey(from, to string) string { return from + "->" + to }

func (c *Cache) TravelTimeMinutes(from, to string) (int, error) {
	k := cacheKey(from, to)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if ok && time.Since(e.ts) <= c.ttl {
		return e.minutes, nil
	}

	minutes, err := c.next.TravelTimeMinutes(from, to)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.store[k] = cacheEntry{minutes: minutes, ts: time.Now()}
	c.mu.Unlock()
	return minutes, nil
}
