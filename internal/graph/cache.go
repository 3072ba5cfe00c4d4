package graph

import (
	"sync"
	"time"
)

// Clock lets tests control TTL expiry deterministically.
type Clock func() time.Time

type cacheEntry struct {
	value   interface{}
	expires time.Time
}

// TTLCache is the in-process read cache for follow status and stats. It is an
// optimization only, never the source of truth: every mutation eagerly
// invalidates the affected keys, so staleness is bounded by invalidation, not
// just the TTL.
type TTLCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	clock   Clock
	entries map[string]cacheEntry
	gens    map[string]uint64
}

// NewTTLCache creates a cache with the given TTL and clock. A nil clock uses
// wall time.
func NewTTLCache(ttl time.Duration, clock Clock) *TTLCache {
	if clock == nil {
		clock = time.Now
	}
	return &TTLCache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]cacheEntry),
		gens:    make(map[string]uint64),
	}
}

// Get returns the cached value for key if present and not expired.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.clock().After(entry.expires) {
		c.mu.Lock()
		// Re-check under the write lock; a Set may have refreshed it.
		if current, still := c.entries[key]; still && c.clock().After(current.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key with the cache TTL.
func (c *TTLCache) Set(key string, value interface{}) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, expires: c.clock().Add(c.ttl)}
	c.mu.Unlock()
}

// Generation returns the invalidation generation of key. Capture it before a
// slow load and pass it to SetIfGeneration so a value read before a
// concurrent Invalidate cannot be reinstated afterwards.
func (c *TTLCache) Generation(key string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[key]
}

// SetIfGeneration stores value under key only if no Invalidate has hit the
// key since gen was captured.
func (c *TTLCache) SetIfGeneration(key string, value interface{}, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return
	}
	c.entries[key] = cacheEntry{value: value, expires: c.clock().Add(c.ttl)}
}

// Invalidate removes the given keys immediately and bumps their generation.
func (c *TTLCache) Invalidate(keys ...string) {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.entries, key)
		c.gens[key]++
	}
	c.mu.Unlock()
}

// Len returns the number of entries, expired or not.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
