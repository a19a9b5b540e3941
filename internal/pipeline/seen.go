package pipeline

import "sync"

// DefaultSeenCacheSize bounds the in-memory seen set.
const DefaultSeenCacheSize = 1000

// SeenCache is a bounded FIFO set of mints.
// It only saves store round-trips; the store existence check stays authoritative.
type SeenCache struct {
	mu    sync.Mutex
	limit int
	order []string
	set   map[string]struct{}
}

// NewSeenCache creates a cache holding at most limit mints.
func NewSeenCache(limit int) *SeenCache {
	if limit <= 0 {
		limit = DefaultSeenCacheSize
	}
	return &SeenCache{
		limit: limit,
		order: make([]string, 0, limit),
		set:   make(map[string]struct{}, limit),
	}
}

// Contains reports whether mint was added and not yet evicted.
func (c *SeenCache) Contains(mint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.set[mint]
	return ok
}

// Add remembers mint, evicting the oldest entry once the bound is exceeded.
func (c *SeenCache) Add(mint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.set[mint]; ok {
		return
	}
	c.set[mint] = struct{}{}
	c.order = append(c.order, mint)
	for len(c.order) > c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.set, oldest)
	}
}

// Len returns the number of cached mints.
func (c *SeenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.order)
}
