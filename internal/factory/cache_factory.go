package factory

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mikey/phish-detector/internal/adapters/cache"
	"github.com/mikey/phish-detector/internal/config"
	"github.com/mikey/phish-detector/internal/ports"
	"go.uber.org/zap"
)

// CacheFactory creates reputation caches based on configuration
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateReputationCache creates the cache named by cache.type, or nil when
// caching is disabled
func (f *CacheFactory) CreateReputationCache() (ports.ReputationCache, error) {
	cacheCfg := f.cfg.GetCache()
	if !cacheCfg.Enabled {
		return nil, nil
	}

	switch cacheCfg.Type {
	case "memory":
		return cache.NewMemoryCache(f.logger, cacheCfg.CleanupFrequency), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cacheCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		c, err := cache.NewSQLiteCache(cacheCfg.SQLitePath, f.logger, cacheCfg.CleanupFrequency)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "mysql":
		c, err := cache.NewMySQLCache(cacheCfg.MySQLDSN, f.logger, cacheCfg.CleanupFrequency)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "redis":
		c, err := cache.NewRedisCache(cacheCfg.RedisAddr, cacheCfg.RedisPassword, cacheCfg.RedisDB, f.logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheCfg.Type)
	}
}

// GetCacheTTL returns the configured cache TTL
func (f *CacheFactory) GetCacheTTL() time.Duration {
	return f.cfg.GetCache().TTL
}

// IsCacheEnabled returns whether caching is enabled
func (f *CacheFactory) IsCacheEnabled() bool {
	return f.cfg.GetCache().Enabled
}
