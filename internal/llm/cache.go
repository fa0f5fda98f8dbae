package llm

import (
	"sync"
	"time"
)

// cacheEntry represents a cached embedding vector.
type cacheEntry struct {
	expiry time.Time
	vector []float32
}

// embeddingCache provides thread-safe caching for embeddings keyed by exact text.
type embeddingCache struct {
	entries map[string]cacheEntry
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
}

func newEmbeddingCache(ttl time.Duration) *embeddingCache {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	cache := &embeddingCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// get retrieves a vector if it exists and hasn't expired.
func (c *embeddingCache) get(text string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[text]
	if !exists || time.Now().After(entry.expiry) {
		return nil, false
	}
	return entry.vector, true
}

func (c *embeddingCache) set(text string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[text] = cacheEntry{
		vector: vector,
		expiry: time.Now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries.
func (c *embeddingCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *embeddingCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *embeddingCache) Close() {
	close(c.stopCh)
}
