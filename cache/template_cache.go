// Package cache keeps parsed SQL templates so repeated statements skip the
// placeholder rewrite.
package cache

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Konsultn-Engineering/sqlflow/template"
)

// DefaultSize is the number of templates a default cache holds.
const DefaultSize = 512

// TemplateCache is a bounded LRU of parsed templates keyed by the fingerprint
// of their source text. It is safe for concurrent use.
type TemplateCache struct {
	cache  *lru.Cache[uint64, *template.Template]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewTemplateCache returns a cache holding at most size templates.
func NewTemplateCache(size int) (*TemplateCache, error) {
	c, err := lru.New[uint64, *template.Template](size)
	if err != nil {
		return nil, fmt.Errorf("create template cache: %w", err)
	}
	return &TemplateCache{cache: c}, nil
}

// Parse returns the cached template for src, parsing and caching it on a
// miss. A fingerprint collision parses src without displacing the entry.
func (c *TemplateCache) Parse(src string) *template.Template {
	if c == nil {
		return template.Parse(src)
	}
	key := Fingerprint(src)
	if t, ok := c.cache.Get(key); ok {
		if t.Source() == src {
			c.hits.Add(1)
			return t
		}
		c.misses.Add(1)
		return template.Parse(src)
	}
	c.misses.Add(1)
	t := template.Parse(src)
	c.cache.Add(key, t)
	return t
}

// Len returns the number of cached templates.
func (c *TemplateCache) Len() int {
	return c.cache.Len()
}

// Stats returns the hit and miss counts since the cache was created.
func (c *TemplateCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Purge drops every cached template.
func (c *TemplateCache) Purge() {
	c.cache.Purge()
}
