package enrichment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/ports"
)

// VirusTotalSource names verdicts from the VirusTotal API
const VirusTotalSource = "virustotal"

// VirusTotalOptions configures the VirusTotal client
type VirusTotalOptions struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration
	MaxPolls     int
	MaxURLs      int
	CacheTTL     time.Duration
}

// VirusTotal submits URLs for analysis and polls for the result
type VirusTotal struct {
	opts    VirusTotalOptions
	client  *http.Client
	cache   ports.ReputationCache
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

type submitResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type analysisResponse struct {
	Data struct {
		Attributes struct {
			Status string `json:"status"`
			Stats  struct {
				Malicious  int `json:"malicious"`
				Suspicious int `json:"suspicious"`
				Harmless   int `json:"harmless"`
			} `json:"stats"`
		} `json:"attributes"`
	} `json:"data"`
}

// errPending marks an analysis that did not complete within the poll budget
var errPending = errors.New("analysis still pending")

// NewVirusTotal creates a VirusTotal client. cache may be nil.
func NewVirusTotal(opts VirusTotalOptions, cache ports.ReputationCache, logger *zap.Logger) *VirusTotal {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.virustotal.com"
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = 1
	}
	if opts.MaxURLs <= 0 {
		opts.MaxURLs = 4
	}

	settings := gobreaker.Settings{
		Name:        "virustotal-api",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, errPending) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &VirusTotal{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		cache:   cache,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Name returns the source name
func (v *VirusTotal) Name() string {
	return VirusTotalSource
}

// Check looks up at most MaxURLs URLs. URLs beyond the budget and failed
// lookups get an unknown verdict.
func (v *VirusTotal) Check(ctx context.Context, urls []string) ([]core.URLVerdict, error) {
	verdicts := make([]core.URLVerdict, len(urls))
	var failures []error

	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			// Lookups on a finished context only fail, leave the rest unknown
			for j := i; j < len(urls); j++ {
				verdicts[j] = unknownVerdict(urls[j], VirusTotalSource)
			}
			failures = append(failures, err)
			break
		}
		if i >= v.opts.MaxURLs {
			verdicts[i] = unknownVerdict(u, VirusTotalSource)
			continue
		}

		if cached := v.cached(ctx, u); cached != nil {
			verdicts[i] = *cached
			continue
		}

		verdict, err := v.lookup(ctx, u)
		if err != nil {
			v.logger.Debug("VirusTotal lookup failed", zap.String("url", u), zap.Error(err))
			failures = append(failures, err)
			verdicts[i] = unknownVerdict(u, VirusTotalSource)
			continue
		}
		verdicts[i] = verdict
		v.store(ctx, verdict)
	}

	if len(failures) > 0 {
		return verdicts, core.EnrichmentUnavailable(
			fmt.Sprintf("%d VirusTotal lookups failed", len(failures)), errors.Join(failures...))
	}
	return verdicts, nil
}

func (v *VirusTotal) cached(ctx context.Context, u string) *core.URLVerdict {
	if v.cache == nil {
		return nil
	}
	entry, err := v.cache.Get(ctx, u)
	if err != nil || entry == nil {
		return nil
	}
	verdict := entry.Verdict
	return &verdict
}

func (v *VirusTotal) store(ctx context.Context, verdict core.URLVerdict) {
	if v.cache == nil || v.opts.CacheTTL <= 0 {
		return
	}
	now := time.Now()
	entry := &core.CacheEntry{
		URL:       verdict.URL,
		Verdict:   verdict,
		LastSeen:  now,
		ExpiresAt: now.Add(v.opts.CacheTTL),
	}
	if err := v.cache.Set(ctx, entry); err != nil {
		v.logger.Error("Failed to update reputation cache", zap.Error(err))
	}
}

func (v *VirusTotal) lookup(ctx context.Context, u string) (core.URLVerdict, error) {
	out, err := v.breaker.Execute(func() (interface{}, error) {
		id, err := v.submit(ctx, u)
		if err != nil {
			return nil, err
		}
		return v.poll(ctx, id)
	})
	if err != nil {
		return core.URLVerdict{}, err
	}

	resp := out.(*analysisResponse)
	stats := resp.Data.Attributes.Stats
	return core.URLVerdict{
		URL:        u,
		Source:     VirusTotalSource,
		Status:     core.StatusOK,
		Listed:     stats.Malicious > 0,
		Malicious:  stats.Malicious,
		Suspicious: stats.Suspicious,
		Harmless:   stats.Harmless,
		CheckedAt:  time.Now(),
	}, nil
}

func (v *VirusTotal) submit(ctx context.Context, u string) (string, error) {
	form := url.Values{"url": {u}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		v.opts.BaseURL+"/api/v3/urls", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp submitResponse
	if err := v.do(req, &resp); err != nil {
		return "", fmt.Errorf("failed to submit url: %w", err)
	}
	if resp.Data.ID == "" {
		return "", errors.New("submit response has no analysis id")
	}
	return resp.Data.ID, nil
}

func (v *VirusTotal) poll(ctx context.Context, id string) (*analysisResponse, error) {
	endpoint := v.opts.BaseURL + "/api/v3/analyses/" + url.PathEscape(id)

	for attempt := 0; attempt < v.opts.MaxPolls; attempt++ {
		if v.opts.PollInterval > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(v.opts.PollInterval):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build analysis request: %w", err)
		}

		var resp analysisResponse
		if err := v.do(req, &resp); err != nil {
			return nil, fmt.Errorf("failed to fetch analysis: %w", err)
		}
		if status := resp.Data.Attributes.Status; status == "" || status == "completed" {
			return &resp, nil
		}
	}
	return nil, errPending
}

func (v *VirusTotal) do(req *http.Request, out interface{}) error {
	req.Header.Set("x-apikey", v.opts.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func unknownVerdict(u, source string) core.URLVerdict {
	return core.URLVerdict{URL: u, Source: source, Status: core.StatusUnknown, CheckedAt: time.Now()}
}
