package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/mikey/phish-detector/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// reputationKeyPrefix namespaces cache keys in a shared Redis
const reputationKeyPrefix = "phishdetect:reputation:"

// RedisCache is a Redis implementation of the ReputationCache interface.
// Expiry is delegated to Redis key TTLs.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache connects to Redis and creates a new cache
func NewRedisCache(addr, password string, db int, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, logger), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, logger *zap.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger}
}

// Get retrieves the cached verdict for a URL
func (c *RedisCache) Get(ctx context.Context, url string) (*core.CacheEntry, error) {
	data, err := c.client.Get(ctx, reputationKeyPrefix+url).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	var stored storedEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}

	return &core.CacheEntry{
		URL:       url,
		Verdict:   stored.Verdict,
		LastSeen:  stored.LastSeen,
		ExpiresAt: stored.ExpiresAt,
	}, nil
}

// Set stores a cache entry
func (c *RedisCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(storedEntry{
		Verdict:   entry.Verdict,
		LastSeen:  entry.LastSeen,
		ExpiresAt: entry.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err := c.client.Set(ctx, reputationKeyPrefix+entry.URL, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *RedisCache) Delete(ctx context.Context, url string) error {
	if err := c.client.Del(ctx, reputationKeyPrefix+url).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup is a no-op, Redis expires keys itself
func (c *RedisCache) Cleanup(ctx context.Context) error {
	return nil
}

// Stop closes the Redis client
func (c *RedisCache) Stop() {
	if err := c.client.Close(); err != nil {
		c.logger.Error("Failed to close Redis client", zap.Error(err))
	}
}
