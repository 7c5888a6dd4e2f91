package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/phish-detector/internal/core"
	"go.uber.org/zap"
)

// MySQLCache is a MySQL implementation of the ReputationCache interface
type MySQLCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMySQLCache creates a new MySQL cache
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	// url is capped at the index prefix limit of utf8mb4 keys
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS reputation_cache (
			url VARCHAR(768) PRIMARY KEY,
			verdict TEXT NOT NULL,
			last_seen BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			INDEX idx_reputation_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	cache := &MySQLCache{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go cache.startCleanupTask()
	}

	return cache, nil
}

// Get retrieves the cached verdict for a URL
func (c *MySQLCache) Get(ctx context.Context, url string) (*core.CacheEntry, error) {
	var verdict string
	var lastSeen, expiresAt int64

	err := c.db.QueryRowContext(ctx, `
		SELECT verdict, last_seen, expires_at
		FROM reputation_cache
		WHERE url = ? AND expires_at > ?
	`, url, time.Now().Unix()).Scan(&verdict, &lastSeen, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	v, err := decodeVerdict(verdict)
	if err != nil {
		return nil, err
	}

	return &core.CacheEntry{
		URL:       url,
		Verdict:   v,
		LastSeen:  time.Unix(lastSeen, 0),
		ExpiresAt: time.Unix(expiresAt, 0),
	}, nil
}

// Set stores a cache entry
func (c *MySQLCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	verdict, err := encodeVerdict(entry.Verdict)
	if err != nil {
		return err
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO reputation_cache (url, verdict, last_seen, expires_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			verdict = VALUES(verdict),
			last_seen = VALUES(last_seen),
			expires_at = VALUES(expires_at)
	`, entry.URL, verdict, entry.LastSeen.Unix(), entry.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}

	return nil
}

// Delete removes a cache entry
func (c *MySQLCache) Delete(ctx context.Context, url string) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM reputation_cache
		WHERE url = ?
	`, url)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	return nil
}

// Cleanup removes expired entries
func (c *MySQLCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM reputation_cache
		WHERE expires_at <= ?
	`, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

func (c *MySQLCache) startCleanupTask() {
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

// Stop stops the background cleanup task and closes the database connection
func (c *MySQLCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close MySQL database", zap.Error(err))
		}
	})
}
