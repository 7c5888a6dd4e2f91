package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/phish-detector/internal/core"
	"go.uber.org/zap"
)

// MemoryCache is an in-memory implementation of the ReputationCache interface
type MemoryCache struct {
	entries     map[string]*core.CacheEntry
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(logger *zap.Logger, cleanupFreq time.Duration) *MemoryCache {
	cache := &MemoryCache{
		entries:     make(map[string]*core.CacheEntry),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	if cleanupFreq > 0 {
		go cache.startCleanupTask()
	}

	return cache
}

// Get retrieves the cached verdict for a URL
func (c *MemoryCache) Get(ctx context.Context, url string) (*core.CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[url]
	if !ok {
		return nil, ErrNotFound
	}
	if c.now().After(entry.ExpiresAt) {
		return nil, ErrExpired
	}

	copied := *entry
	return &copied, nil
}

// Set stores a cache entry
func (c *MemoryCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := *entry
	c.entries[entry.URL] = &copied
	return nil
}

// Delete removes a cache entry
func (c *MemoryCache) Delete(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, url)
	return nil
}

// Cleanup removes expired entries
func (c *MemoryCache) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiredCount := 0

	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			expiredCount++
		}
	}

	c.logger.Debug("Cleaned up expired cache entries", zap.Int("expired_count", expiredCount))
	return nil
}

// Len returns the number of stored entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}
