// Package enrichment gathers best-effort signals about a message from
// external sources. Nothing here feeds the classifier, and no failure of a
// source ever fails a prediction.
package enrichment

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/features"
	"github.com/mikey/phish-detector/internal/ports"
)

// AdvisorSource names the language model entry in unavailable lists
const AdvisorSource = "advisor"

// Enricher runs every configured source concurrently under one timeout
type Enricher struct {
	checkers []ports.URLChecker
	advisor  ports.Advisor
	timeout  time.Duration
	logger   *zap.Logger
}

// NewEnricher creates an enricher. advisor may be nil.
func NewEnricher(checkers []ports.URLChecker, advisor ports.Advisor, timeout time.Duration, logger *zap.Logger) *Enricher {
	return &Enricher{
		checkers: checkers,
		advisor:  advisor,
		timeout:  timeout,
		logger:   logger,
	}
}

// Enrich collects header anomalies, per-URL verdicts and the optional model
// advisory. Sources that fail or time out are listed in Unavailable and
// their URLs keep an unknown verdict.
func (e *Enricher) Enrich(ctx context.Context, msg *core.ParsedMessage) *core.EnrichmentReport {
	report := &core.EnrichmentReport{
		HeaderAnomalies: HeaderAnomalies(msg),
	}

	urls := uniqueURLs(msg.Body)
	for _, u := range urls {
		report.URLs = append(report.URLs, URLRisk(u))
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var (
		mu          sync.Mutex
		wg          sync.WaitGroup
		verdicts    [][]core.URLVerdict
		unavailable []string
	)
	markUnavailable := func(source string, err error) {
		e.logger.Warn("Enrichment source unavailable", zap.String("source", source), zap.Error(err))
		mu.Lock()
		unavailable = append(unavailable, source)
		mu.Unlock()
	}

	if len(urls) > 0 {
		verdicts = make([][]core.URLVerdict, len(e.checkers))
		for i, c := range e.checkers {
			i, c := i, c
			wg.Add(1)
			go func() {
				defer wg.Done()
				vs, err := c.Check(ctx, urls)
				if err != nil {
					markUnavailable(c.Name(), err)
				}
				if len(vs) != len(urls) {
					vs = unknownVerdicts(urls, c.Name())
				}
				verdicts[i] = vs
			}()
		}
	}

	if e.advisor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			advisory, err := e.advisor.AnalyzeMessage(ctx, msg)
			if err != nil {
				markUnavailable(AdvisorSource, err)
				return
			}
			mu.Lock()
			report.Advisory = advisory
			mu.Unlock()
		}()
	}

	wg.Wait()

	for _, vs := range verdicts {
		report.URLs = append(report.URLs, vs...)
	}
	sort.Strings(unavailable)
	report.Unavailable = unavailable

	return report
}

func uniqueURLs(body string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range features.FindURLs(body) {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func unknownVerdicts(urls []string, source string) []core.URLVerdict {
	out := make([]core.URLVerdict, len(urls))
	for i, u := range urls {
		out[i] = unknownVerdict(u, source)
	}
	return out
}
