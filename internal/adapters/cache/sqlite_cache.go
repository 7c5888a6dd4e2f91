package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/phish-detector/internal/core"
	"go.uber.org/zap"
)

// SQLiteCache is a SQLite implementation of the ReputationCache interface.
// Timestamps are stored as unix seconds.
type SQLiteCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewSQLiteCache creates a new SQLite cache
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS reputation_cache (
			url TEXT PRIMARY KEY,
			verdict TEXT NOT NULL,
			last_seen INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_reputation_expires_at ON reputation_cache(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	cache := &SQLiteCache{
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
func (c *SQLiteCache) Get(ctx context.Context, url string) (*core.CacheEntry, error) {
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
func (c *SQLiteCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	verdict, err := encodeVerdict(entry.Verdict)
	if err != nil {
		return err
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reputation_cache (url, verdict, last_seen, expires_at)
		VALUES (?, ?, ?, ?)
	`, entry.URL, verdict, entry.LastSeen.Unix(), entry.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}

	return nil
}

// Delete removes a cache entry
func (c *SQLiteCache) Delete(ctx context.Context, url string) error {
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
func (c *SQLiteCache) Cleanup(ctx context.Context) error {
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

func (c *SQLiteCache) startCleanupTask() {
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
func (c *SQLiteCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close SQLite database", zap.Error(err))
		}
	})
}
