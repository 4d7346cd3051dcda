package forecasts

import (
	"sync"
	"time"

	"airsight/internal/types"
)

// cacheEntry records a cached series along with its expiry timestamp.
// Stale entries are trimmed lazily on access; with one entry per
// (location, horizon) pair the map stays small without a sweeper.
type cacheEntry struct {
	series  *types.ForecastSeries
	expires time.Time
}

// ResultCache keeps recently computed forecast series in memory so
// identical requests within the TTL skip recomputation (and remote model
// calls). It is an explicit collaborator passed into the Service rather
// than a package-level singleton, so tests can instantiate isolated
// caches. Safe for concurrent use.
type ResultCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewResultCache creates a cache with the given TTL. A non-positive TTL
// disables caching: Get always misses and Set is a no-op.
func NewResultCache(ttl time.Duration) *ResultCache {
	return &ResultCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached series for key, or (nil, false) when absent or
// expired.
func (c *ResultCache) Get(key string) (*types.ForecastSeries, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.series, true
}

// Set stores a series under key with the cache's TTL.
func (c *ResultCache) Set(key string, series *types.ForecastSeries) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		series:  series,
		expires: c.now().Add(c.ttl),
	}
}

// Clear drops all entries and returns how many were removed.
func (c *ResultCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]cacheEntry)
	return n
}

// Len returns the number of live entries. Expired-but-untrimmed entries
// count until their next access; the figure is operational visibility,
// not an invariant.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
