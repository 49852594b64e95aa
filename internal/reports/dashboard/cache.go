package dashboard

import (
	"strings"
	"sync"
	"time"
)

// Cache is an in-memory TTL cache for computed dashboards.
type Cache[V any] struct {
	data    map[string]cacheEntry[V]
	ttl     time.Duration
	mu      sync.RWMutex
	cleanup *time.Ticker
	done    chan struct{}
	stop    sync.Once

	hits   int64
	misses int64
}

type cacheEntry[V any] struct {
	value      V
	expiration time.Time
}

// CacheStats reports the cache size and its hit and miss counts.
type CacheStats struct {
	Size   int   `json:"size"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// NewCache starts a cache whose entries live for ttl. Expired entries are
// swept every sweep interval until Stop is called.
func NewCache[V any](ttl, sweep time.Duration) *Cache[V] {
	c := &Cache[V]{
		data:    make(map[string]cacheEntry[V]),
		ttl:     ttl,
		cleanup: time.NewTicker(sweep),
		done:    make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok || time.Now().After(entry.expiration) {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return entry.value, true
}

func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry[V]{value: value, expiration: time.Now().Add(c.ttl)}
}

// GetOrSet returns the cached value for key or computes and stores it.
// Errors are not cached.
func (c *Cache[V]) GetOrSet(key string, compute func() (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err := compute()
	if err != nil {
		return value, err
	}
	c.Set(key, value)
	return value, nil
}

// DeleteByPrefix drops every entry whose key starts with prefix.
func (c *Cache[V]) DeleteByPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
}

func (c *Cache[V]) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{Size: len(c.data), Hits: c.hits, Misses: c.misses}
}

func (c *Cache[V]) cleanupLoop() {
	for {
		select {
		case <-c.cleanup.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.After(entry.expiration) {
			delete(c.data, key)
		}
	}
}

// Stop ends the sweeper. It is safe to call more than once.
func (c *Cache[V]) Stop() {
	c.stop.Do(func() {
		c.cleanup.Stop()
		close(c.done)
	})
}
