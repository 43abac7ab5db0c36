package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheItem wraps a cached value with its expiration time
type cacheItem struct {
	value      interface{}
	expiration time.Time
}

// MemoryCache implements an in-memory LRU cache with TTL support
type MemoryCache struct {
	maxSize int
	items   *lru.Cache[string, cacheItem]
	stopCh  chan struct{}
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000 // default max size
	}

	// lru.New only fails on a non-positive size, which is clamped above
	items, _ := lru.New[string, cacheItem](maxSize)

	cache := &MemoryCache{
		maxSize: maxSize,
		items:   items,
		stopCh:  make(chan struct{}),
	}

	// Start cleanup goroutine
	go cache.cleanup()

	return cache
}

// Get retrieves a value from cache
func (c *MemoryCache) Get(ctx context.Context, key string) (interface{}, error) {
	item, exists := c.items.Get(key)
	if !exists {
		return nil, ErrNotFound
	}

	// Check if expired
	if time.Now().After(item.expiration) {
		c.items.Remove(key)
		return nil, ErrNotFound
	}

	return item.value, nil
}

// Set stores a value in cache with TTL
func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.items.Add(key, cacheItem{
		value:      value,
		expiration: time.Now().Add(ttl),
	})
	return nil
}

// Delete removes a key from cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.items.Remove(key)
	return nil
}

// Close closes the cache
func (c *MemoryCache) Close() error {
	close(c.stopCh)
	c.items.Purge()
	return nil
}

// cleanup periodically removes expired items
func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.stopCh:
			return
		}
	}
}

// cleanupExpired removes all expired items
func (c *MemoryCache) cleanupExpired() {
	now := time.Now()
	for _, key := range c.items.Keys() {
		// Peek avoids promoting items while scanning
		if item, ok := c.items.Peek(key); ok && now.After(item.expiration) {
			c.items.Remove(key)
		}
	}
}

// Stats returns cache statistics
func (c *MemoryCache) Stats() (size int, maxSize int) {
	return c.items.Len(), c.maxSize
}
