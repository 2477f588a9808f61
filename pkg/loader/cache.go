package loader

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/joeydtaylor/enroute/pkg/chain"
)

// DefaultCacheSize bounds a Cache created with size <= 0.
const DefaultCacheSize = 1024

// Cache memoizes a Loader by artifact path. It is what hot reload invalidates
// before every request. Concurrent Invalidate/Load calls on overlapping paths
// are not linearized: the last load to finish wins.
type Cache struct {
	next    Loader
	entries *lru.Cache[string, []chain.Step]
}

// NewCache wraps next with an LRU of at most size artifacts.
func NewCache(next Loader, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, []chain.Step](size)
	if err != nil {
		return nil, err
	}
	return &Cache{next: next, entries: entries}, nil
}

// Load returns the cached steps for path, loading them on a miss.
func (c *Cache) Load(ctx context.Context, path string) ([]chain.Step, error) {
	if steps, ok := c.entries.Get(path); ok {
		return steps, nil
	}
	return c.LoadFresh(ctx, path)
}

// LoadFresh bypasses the cache and stores the result. A failed load evicts
// whatever was cached for path.
func (c *Cache) LoadFresh(ctx context.Context, path string) ([]chain.Step, error) {
	steps, err := c.next.Load(ctx, path)
	if err != nil {
		c.entries.Remove(path)
		return nil, err
	}
	c.entries.Add(path, steps)
	return steps, nil
}

// Invalidate evicts every artifact under prefix except those under exclude
// and returns how many were dropped. An empty exclude excludes nothing.
func (c *Cache) Invalidate(prefix, exclude string) int {
	n := 0
	for _, k := range c.entries.Keys() {
		if !Within(k, prefix) || Within(k, exclude) {
			continue
		}
		if c.entries.Remove(k) {
			n++
		}
	}
	return n
}

// Stat asks the wrapped loader; cached artifacts exist.
func (c *Cache) Stat(path string) error {
	if c.entries.Contains(path) {
		return nil
	}
	return Stat(c.next, path)
}

// Len reports the number of cached artifacts.
func (c *Cache) Len() int { return c.entries.Len() }
