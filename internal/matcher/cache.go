package matcher

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of compiled patterns kept per process
const DefaultCacheSize = 64

// Cache keeps recently compiled matchers. A worker process serves many batches
// for the same pattern, so it compiles each pattern once.
type Cache struct {
	lru *lru.Cache[Pattern, *Matcher]
}

// NewCache creates a cache holding up to size matchers
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[Pattern, *Matcher](size)
	if err != nil {
		// only possible for a non-positive size
		panic(fmt.Sprintf("failed to create matcher cache: %v", err))
	}
	return &Cache{lru: c}
}

// Get returns the compiled matcher for p, compiling it on a miss
func (c *Cache) Get(p Pattern) (*Matcher, error) {
	if m, ok := c.lru.Get(p); ok {
		return m, nil
	}
	m, err := p.Compile()
	if err != nil {
		return nil, err
	}
	c.lru.Add(p, m)
	return m, nil
}

// Len returns the number of cached matchers
func (c *Cache) Len() int {
	return c.lru.Len()
}
