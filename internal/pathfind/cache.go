package pathfind

import (
	"slices"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"dronenav/internal/geo"
)

// Searcher is anything that can route between two positions.
type Searcher interface {
	FindPath(start, end geo.Position) []geo.Position
}

type legKey struct{ from, to geo.Position }

// CachedFinder memoizes FindPath results for one Finder. Searches are
// deterministic, so a cached path is the path a fresh search would return.
type CachedFinder struct {
	*Finder
	cache        *lru.Cache[legKey, []geo.Position]
	hits, misses atomic.Int64
}

// DefaultCacheSize bounds the number of remembered legs.
const DefaultCacheSize = 1024

func NewCachedFinder(f *Finder, size int) (*CachedFinder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[legKey, []geo.Position](size)
	if err != nil {
		return nil, err
	}
	return &CachedFinder{Finder: f, cache: c}, nil
}

// FindPath returns a copy of the cached path, searching on a miss.
func (c *CachedFinder) FindPath(start, end geo.Position) []geo.Position {
	k := legKey{start, end}
	if p, ok := c.cache.Get(k); ok {
		c.hits.Add(1)
		return slices.Clone(p)
	}
	c.misses.Add(1)
	p := c.Finder.FindPath(start, end)
	c.cache.Add(k, p)
	return slices.Clone(p)
}

// CacheStats returns hit and miss counts.
func (c *CachedFinder) CacheStats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
