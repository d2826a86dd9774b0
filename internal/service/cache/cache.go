// Package cache is a keyed search-result cache with per-entry TTL, lazy expiry
// on read and an explicit Sweep.
package cache

import (
	"sync"
	"time"

	"github.com/zhouzirui/ticket-assistant/backend/internal/clock"
)

// DefaultTTL applies when Put is called without an explicit ttl.
const DefaultTTL = 5 * time.Minute

// Entry is a cached result set.
type Entry struct {
	Results   []any
	Timestamp time.Time
	TTL       time.Duration
}

// Valid reports whether the entry may still be served at now.
func (e Entry) Valid(now time.Time) bool {
	return now.Before(e.Timestamp.Add(e.TTL))
}

// Cache is safe for concurrent use. It has no size bound; entries leave only
// through expiry.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	clock      clock.Clock
	defaultTTL time.Duration
}

// New creates a cache. A nil clock uses the system clock; a non-positive
// defaultTTL falls back to DefaultTTL.
func New(clk clock.Clock, defaultTTL time.Duration) *Cache {
	if clk == nil {
		clk = clock.System{}
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Cache{
		entries:    make(map[string]Entry),
		clock:      clk,
		defaultTTL: defaultTTL,
	}
}

// Put stores results under key stamped with the current time. ttl overrides
// the default when positive.
func (c *Cache) Put(key string, results []any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	copied := append([]any(nil), results...)

	c.mu.Lock()
	c.entries[key] = Entry{Results: copied, Timestamp: c.clock.Now(), TTL: ttl}
	c.mu.Unlock()
}

// Get returns the cached results for key. A stale entry is removed and
// reported as a miss.
func (c *Cache) Get(key string) ([]any, bool) {
	now := c.clock.Now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !entry.Valid(now) {
		c.mu.Lock()
		// Re-check: a concurrent Put may have refreshed the key.
		if current, still := c.entries[key]; still && !current.Valid(now) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return append([]any(nil), entry.Results...), true
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()
}

// Sweep removes every expired entry and returns how many were dropped.
func (c *Cache) Sweep() int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if !entry.Valid(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len counts stored entries, including expired ones not yet swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
