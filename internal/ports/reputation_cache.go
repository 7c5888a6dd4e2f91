package ports

import (
	"context"

	"github.com/mikey/phish-detector/internal/core"
)

// ReputationCache stores URL reputation verdicts between lookups
type ReputationCache interface {
	// Get retrieves the cached verdict for a URL
	Get(ctx context.Context, url string) (*core.CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *core.CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, url string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
