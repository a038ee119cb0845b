// Package similarity provides nearest-neighbor search over product
// embeddings with a bounded read-through cache in front of it.
package similarity

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
)

// Match is one neighbor in a similarity search response.
type Match struct {
	ProductKey string  `json:"product_key"`
	Score      float64 `json:"score"`
}

// Response is the result of a similarity search for one product.
type Response struct {
	ProductKey string  `json:"product_key"`
	Matches    []Match `json:"matches"`
}

// Cache is a concurrent-safe LRU cache of similarity responses. There
// is no TTL: staleness is bounded only by capacity-driven eviction and
// process lifetime.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*Response
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	hits       atomic.Int64
	misses     atomic.Int64
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// DefaultMaxEntries bounds the cache when no capacity is configured.
const DefaultMaxEntries = 256

// NewCache creates a Cache holding at most maxEntries responses.
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		entries:    make(map[string]*Response),
		maxEntries: maxEntries,
	}
}

// GetOrFetch returns the cached response for key, invoking fetch on a
// miss. The fetched result must be a *Response; anything else is a
// hard error and is not cached. The lock is held across the fetch so
// get/promote/insert/evict form one atomic unit and concurrent misses
// for the same key fetch once.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (any, error)) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		c.hits.Add(1)
		return entry, nil
	}
	c.misses.Add(1)

	result, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	resp, ok := result.(*Response)
	if !ok {
		return nil, eris.Errorf("similarity: fetch returned %T, want *Response", result)
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = resp
	c.order = append(c.order, key)
	return resp, nil
}

// Clear removes all entries unconditionally.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Response)
	c.order = nil
}

// Stats returns cache performance statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

// removeFromOrder removes a key from the LRU order slice.
func (c *Cache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
