package sitemap

import (
	"slices"
	"sync"
)

// Cache maps a sitemap URL to its resolved leaf URLs.
type Cache struct {
	mu      sync.RWMutex
	entries map[string][]string
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string][]string)}
}

// Get returns the cached leaves for sitemapURL.
// The returned slice must not be modified.
func (c *Cache) Get(sitemapURL string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	leaves, ok := c.entries[sitemapURL]
	return leaves, ok
}

// Put stores leaves for sitemapURL, replacing any previous entry.
func (c *Cache) Put(sitemapURL string, leaves []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[sitemapURL] = slices.Clip(leaves)
}

// Len returns the number of cached sitemaps.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
