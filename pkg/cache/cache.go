package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a concurrency-safe map whose entries vanish at an absolute
// deadline. Expired entries are invisible to Get and reclaimed by Purge.
type Cache[V any] struct {
	mu    sync.RWMutex
	items map[string]entry[V]
	now   func() time.Time
}

func New[V any]() *Cache[V] {
	return &Cache[V]{items: map[string]entry[V]{}, now: time.Now}
}

// Set stores value for ttl from now.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.SetUntil(key, value, c.now().Add(ttl))
}

// SetUntil stores value until deadline. A deadline already in the past
// removes the key instead.
func (c *Cache[V]) SetUntil(key string, value V, deadline time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !deadline.After(c.now()) {
		delete(c.items, key)
		return
	}
	c.items[key] = entry[V]{value: value, expiresAt: deadline}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || !c.now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Purge drops expired entries and returns how many went.
func (c *Cache[V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for key, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Len counts stored entries, including expired ones not yet purged.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Janitor purges every interval until ctx is done.
func (c *Cache[V]) Janitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Purge()
		}
	}
}
