// Package cache provides the reputation cache backends.
package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/mikey/phish-detector/internal/core"
)

var (
	// ErrNotFound is returned when a cache entry is not found
	ErrNotFound = errors.New("cache entry not found")
	// ErrExpired is returned when a cache entry has expired
	ErrExpired = errors.New("cache entry expired")
)

// encodeVerdict serializes a verdict for the SQL and Redis backends
func encodeVerdict(v core.URLVerdict) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode verdict: %w", err)
	}
	return string(data), nil
}

func decodeVerdict(data string) (core.URLVerdict, error) {
	var v core.URLVerdict
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return v, fmt.Errorf("failed to decode verdict: %w", err)
	}
	return v, nil
}

// storedEntry is the Redis representation of a cache entry
type storedEntry struct {
	Verdict   core.URLVerdict `json:"verdict"`
	LastSeen  time.Time       `json:"last_seen"`
	ExpiresAt time.Time       `json:"expires_at"`
}
