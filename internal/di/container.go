package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/config"
	"github.com/mikey/phish-detector/internal/detector"
	"github.com/mikey/phish-detector/internal/factory"
	"github.com/mikey/phish-detector/internal/features"
	"github.com/mikey/phish-detector/internal/logging"
	"github.com/mikey/phish-detector/internal/ports"
	"github.com/mikey/phish-detector/internal/scorer"
	"github.com/mikey/phish-detector/internal/utils"
)

// BuildContainer creates and configures the dependency injection container
// for the server
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(config.New); err != nil {
		return nil, err
	}
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}
	if err := provideCore(container); err != nil {
		return nil, err
	}

	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FilterFactory) (ports.MailFilter, error) {
		return f.CreateMailFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCore registers everything from the model up to the detection
// service. It expects *config.Config and *zap.Logger to be provided.
func provideCore(container *dig.Container) error {
	constructors := []interface{}{
		utils.NewTextProcessor,
		factory.NewModelFactory,
		factory.NewAdvisorFactory,
		factory.NewCacheFactory,
		factory.NewEnrichmentFactory,
		func(f *factory.ModelFactory) (*scorer.Model, error) {
			return f.LoadModel()
		},
		func(f *factory.ModelFactory) *features.Extractor {
			return f.CreateExtractor()
		},
		func(cfg *config.Config, f *factory.AdvisorFactory) (ports.Advisor, error) {
			if !cfg.GetEnrichment().Enabled {
				return nil, nil
			}
			return f.CreateAdvisor()
		},
		func(cfg *config.Config, f *factory.CacheFactory) (ports.ReputationCache, error) {
			if !cfg.GetEnrichment().Enabled {
				return nil, nil
			}
			return f.CreateReputationCache()
		},
		func(f *factory.EnrichmentFactory, cache ports.ReputationCache, advisor ports.Advisor) detector.Enricher {
			e := f.CreateEnricher(cache, advisor)
			if e == nil {
				// Keep the interface nil so the service sees enrichment as disabled
				return nil
			}
			return e
		},
		func(
			extractor *features.Extractor,
			model *scorer.Model,
			enricher detector.Enricher,
			logger *zap.Logger,
			f *factory.ModelFactory,
		) *detector.Service {
			return detector.NewService(extractor, model, enricher, logger, f.TopN())
		},
	}

	for _, c := range constructors {
		if err := container.Provide(c); err != nil {
			return err
		}
	}
	return nil
}
