package factory

import (
	"github.com/mikey/phish-detector/internal/config"
	"github.com/mikey/phish-detector/internal/enrichment"
	"github.com/mikey/phish-detector/internal/ports"
	"go.uber.org/zap"
)

// EnrichmentFactory assembles the enrichment sources
type EnrichmentFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewEnrichmentFactory creates a new enrichment factory
func NewEnrichmentFactory(cfg *config.Config, logger *zap.Logger) *EnrichmentFactory {
	return &EnrichmentFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateEnricher returns the configured enricher, or nil when enrichment is
// disabled. cache and advisor may be nil.
func (f *EnrichmentFactory) CreateEnricher(cache ports.ReputationCache, advisor ports.Advisor) *enrichment.Enricher {
	enrichCfg := f.cfg.GetEnrichment()
	if !enrichCfg.Enabled {
		return nil
	}

	var checkers []ports.URLChecker

	if op := f.cfg.GetOpenPhish(); op.Enabled {
		checkers = append(checkers, enrichment.NewOpenPhish(op.FeedURL, op.Timeout, op.Refresh, f.logger))
	}

	if vt := f.cfg.GetVirusTotal(); vt.Enabled {
		if vt.APIKey == "" {
			f.logger.Warn("VirusTotal enabled without an API key, skipping")
		} else {
			checkers = append(checkers, enrichment.NewVirusTotal(enrichment.VirusTotalOptions{
				APIKey:       vt.APIKey,
				BaseURL:      vt.BaseURL,
				Timeout:      vt.Timeout,
				PollInterval: vt.PollInterval,
				MaxPolls:     vt.MaxPolls,
				MaxURLs:      vt.MaxURLs,
				CacheTTL:     f.cfg.GetCache().TTL,
			}, cache, f.logger))
		}
	}

	names := make([]string, 0, len(checkers))
	for _, c := range checkers {
		names = append(names, c.Name())
	}
	f.logger.Info("Enrichment enabled",
		zap.Strings("url_checkers", names),
		zap.Bool("advisor", advisor != nil),
		zap.Duration("timeout", enrichCfg.Timeout))

	return enrichment.NewEnricher(checkers, advisor, enrichCfg.Timeout, f.logger)
}
