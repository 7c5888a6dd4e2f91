package enrichment

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/blocklist"
	"github.com/mikey/phish-detector/internal/core"
)

// OpenPhishSource names verdicts from the OpenPhish feed
const OpenPhishSource = "openphish"

// feedRetryDelay is the minimum wait between fetches after a failed refresh
const feedRetryDelay = time.Minute

// OpenPhish checks URLs against a periodically refreshed text feed
type OpenPhish struct {
	feedURL    string
	client     *http.Client
	refresh    time.Duration
	retryDelay time.Duration
	logger     *zap.Logger
	set        atomic.Pointer[blocklist.Set]
	fetchedAt  atomic.Int64
	failedAt   atomic.Int64
	refreshMu  sync.Mutex
}

// NewOpenPhish creates a feed checker. The feed is fetched lazily on first use.
func NewOpenPhish(feedURL string, timeout, refresh time.Duration, logger *zap.Logger) *OpenPhish {
	return &OpenPhish{
		feedURL:    feedURL,
		client:     &http.Client{Timeout: timeout},
		refresh:    refresh,
		retryDelay: feedRetryDelay,
		logger:     logger,
	}
}

// Name returns the source name
func (o *OpenPhish) Name() string {
	return OpenPhishSource
}

// Refresh downloads the feed and swaps it in
func (o *OpenPhish) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.feedURL, nil)
	if err != nil {
		return core.EnrichmentUnavailable("failed to build feed request", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return core.EnrichmentUnavailable("failed to fetch OpenPhish feed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.EnrichmentUnavailable(fmt.Sprintf("OpenPhish feed returned status %d", resp.StatusCode), nil)
	}

	set, err := blocklist.Read(resp.Body, o.logger)
	if err != nil {
		return core.EnrichmentUnavailable("failed to read OpenPhish feed", err)
	}

	o.set.Store(set)
	o.fetchedAt.Store(time.Now().UnixNano())
	o.logger.Info("Refreshed OpenPhish feed", zap.Int("entries", set.Len()))
	return nil
}

// stale reports whether the feed needs to be fetched again
func (o *OpenPhish) stale() bool {
	fetched := o.fetchedAt.Load()
	if fetched == 0 || o.set.Load() == nil {
		return true
	}
	return o.refresh > 0 && time.Since(time.Unix(0, fetched)) > o.refresh
}

// backingOff reports whether a refresh failed less than retryDelay ago
func (o *OpenPhish) backingOff() bool {
	failed := o.failedAt.Load()
	return failed != 0 && time.Since(time.Unix(0, failed)) < o.retryDelay
}

func (o *OpenPhish) ensureFresh(ctx context.Context) error {
	if !o.stale() {
		return nil
	}
	if o.backingOff() {
		return core.EnrichmentUnavailable("OpenPhish feed refresh recently failed", nil)
	}
	o.refreshMu.Lock()
	defer o.refreshMu.Unlock()
	if !o.stale() {
		return nil
	}
	if o.backingOff() {
		return core.EnrichmentUnavailable("OpenPhish feed refresh recently failed", nil)
	}
	if err := o.Refresh(ctx); err != nil {
		if ctx.Err() == nil {
			o.failedAt.Store(time.Now().UnixNano())
		}
		return err
	}
	o.failedAt.Store(0)
	return nil
}

// Check reports which URLs are listed. When the feed cannot be fetched and no
// earlier copy exists, every verdict is unknown.
func (o *OpenPhish) Check(ctx context.Context, urls []string) ([]core.URLVerdict, error) {
	refreshErr := o.ensureFresh(ctx)
	set := o.set.Load()

	now := time.Now()
	verdicts := make([]core.URLVerdict, len(urls))
	for i, u := range urls {
		v := core.URLVerdict{URL: u, Source: OpenPhishSource, Status: core.StatusUnknown, CheckedAt: now}
		if set != nil {
			v.Status = core.StatusOK
			v.Listed = set.Contains(u)
		}
		verdicts[i] = v
	}

	if refreshErr != nil {
		if set != nil {
			o.logger.Warn("Using previous OpenPhish feed", zap.Error(refreshErr))
			return verdicts, nil
		}
		return verdicts, refreshErr
	}
	return verdicts, nil
}
