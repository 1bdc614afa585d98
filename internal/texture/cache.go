package texture

import (
	"context"
	"sync"

	"dropview/internal/scene"
)

// Fetcher resolves and reads a reference found in a model file.
// *resolve.Resolver implements it.
type Fetcher interface {
	Resolve(requested string) string
	Fetch(ctx context.Context, requested string) ([]byte, error)
}

// Cache decodes each resolved texture once. It lives for a single load.
// Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	items   map[string]*cacheEntry
	fetcher Fetcher
}

type cacheEntry struct {
	tex *scene.Texture
	err error
}

// NewCache creates a texture cache reading through f.
func NewCache(f Fetcher) *Cache {
	return &Cache{
		items:   make(map[string]*cacheEntry),
		fetcher: f,
	}
}

// Load fetches and decodes the texture ref points at. Failures are cached too,
// so a missing texture is reported once per load.
func (c *Cache) Load(ctx context.Context, ref string) (*scene.Texture, error) {
	addr := c.fetcher.Resolve(ref)

	// Fast path: read lock
	c.mu.RLock()
	if e, ok := c.items[addr]; ok {
		c.mu.RUnlock()
		return e.tex, e.err
	}
	c.mu.RUnlock()

	e := &cacheEntry{}
	data, err := c.fetcher.Fetch(ctx, ref)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		e.err = err
	} else if img, err := Decode(ref, data); err != nil {
		e.err = err
	} else {
		e.tex = &scene.Texture{Ref: ref, Address: addr, Image: img}
	}

	// Write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.items[addr]; ok {
		return prev.tex, prev.err
	}
	c.items[addr] = e
	return e.tex, e.err
}

// Len returns the number of distinct textures attempted.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
