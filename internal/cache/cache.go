// Package cache holds recent analysis results in memory so repeated reads
// for the same pair do not hit the database.
package cache

import (
	"fmt"
	"sync"
	"time"

	"tradebot/models"
)

type entry struct {
	result    *models.AnalysisResult
	expiresAt time.Time
}

// Cache is a TTL map keyed by (symbol, timeframe). Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

// New creates a cache whose entries expire after ttl.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func key(symbol, timeframe string) string {
	return fmt.Sprintf("%s:%s", symbol, timeframe)
}

// Get returns the cached result for the pair, or nil when absent or expired.
// Expired entries are dropped on access.
func (c *Cache) Get(symbol, timeframe string) *models.AnalysisResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(symbol, timeframe)
	e, ok := c.entries[k]
	if !ok {
		return nil
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, k)
		return nil
	}
	return e.result
}

// Set stores the result for the pair, resetting its TTL.
func (c *Cache) Set(symbol, timeframe string, result *models.AnalysisResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key(symbol, timeframe)] = entry{
		result:    result,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Invalidate drops the cached result for the pair, if any.
func (c *Cache) Invalidate(symbol, timeframe string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key(symbol, timeframe))
}
