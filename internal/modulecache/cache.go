// Package modulecache implements the shared, concurrency-safe
// get-or-init cache keyed by configuration fingerprint that spec §8
// requires: "for any two concurrent get_or_init calls on the module
// cache with the same configuration fingerprint, exactly one
// initializer runs and both callers receive the same instance."
//
// Grounded on the teacher's sync.Map + singleflight-shaped idioms used
// throughout caddy.go/context.go for shared, reference-counted module
// instances, adapted to use golang.org/x/sync/singleflight directly
// rather than hand-rolling the dedup logic.
package modulecache

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes values of type any keyed by a string fingerprint
// (typically a hash of the owning ServerConfiguration's identity plus the
// module name). It is safe for concurrent use.
type Cache struct {
	group singleflight.Group
	mu    sync.RWMutex
	store map[string]any
}

func New() *Cache {
	return &Cache{store: map[string]any{}}
}

// GetOrInit returns the cached value for key, calling init exactly once
// across any number of concurrent callers racing on the same key.
func (c *Cache) GetOrInit(key string, init func() (any, error)) (any, error) {
	c.mu.RLock()
	if v, ok := c.store[key]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		if v, ok := c.store[key]; ok {
			c.mu.RUnlock()
			return v, nil
		}
		c.mu.RUnlock()

		v, err := init()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.store[key] = v
		c.mu.Unlock()
		return v, nil
	})
	return v, err
}

// Evict removes key from the cache, e.g. when its owning configuration
// is replaced by a hot reload.
func (c *Cache) Evict(key string) {
	c.mu.Lock()
	delete(c.store, key)
	c.mu.Unlock()
}
