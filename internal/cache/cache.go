// Package cache provides the in-process memoization used to avoid repeated
// insight generation for identical content. The cache is injectable so its
// lifetime and eviction policy stay explicit and testable.
package cache

import (
	"sync"
	"time"

	"notulio/internal/core"
)

// Cache memoizes generated insights per content key. Implementations must be
// safe for concurrent use; population races are benign (last write wins).
type Cache interface {
	Get(key string) (*core.Insights, bool)
	Set(key string, insights *core.Insights)
}

// Key derives the memoization key from the content identity: title,
// description, and the first 100 characters of the body. Near-identical
// content that truncates differently misses the cache; that is acceptable
// since this is a cost control, not a correctness requirement.
func Key(title, description, content string) string {
	prefix := content
	if len(prefix) > 100 {
		prefix = prefix[:100]
	}
	return title + "||" + description + "||" + prefix
}

type entry struct {
	key string
	ts  time.Time
}

// InsightCache is a bounded, TTL-evicting implementation of Cache.
type InsightCache struct {
	mu       sync.Mutex
	items    map[string]value
	order    []entry
	capacity int
	ttl      time.Duration
}

type value struct {
	insights *core.Insights
	ts       time.Time
}

// New creates a cache with the provided capacity and ttl.
func New(capacity int, ttl time.Duration) *InsightCache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &InsightCache{
		items:    make(map[string]value, capacity),
		order:    make([]entry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Get returns the cached insights for key when present and inside the ttl
// window.
func (c *InsightCache) Get(key string) (*core.Insights, bool) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.items[key]; ok {
		if now.Sub(v.ts) <= c.ttl {
			return v.insights, true
		}
	}
	return nil, false
}

// Set records the insights for key, evicting expired and over-capacity
// entries oldest-first.
func (c *InsightCache) Set(key string, insights *core.Insights) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = value{insights: insights, ts: now}
	c.order = append(c.order, entry{key: key, ts: now})
	c.compact(now)
}

// Len reports the number of live entries.
func (c *InsightCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *InsightCache) compact(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.items) > c.capacity || c.order[0].ts.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		if v, ok := c.items[oldest.key]; ok {
			if v.ts == oldest.ts {
				delete(c.items, oldest.key)
			}
		}
	}
}
