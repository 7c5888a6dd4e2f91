package factory

import (
	"github.com/mikey/phish-detector/internal/config"
	"github.com/mikey/phish-detector/internal/features"
	"github.com/mikey/phish-detector/internal/scorer"
	"go.uber.org/zap"
)

// ModelFactory loads the classifier and builds the feature extractor
type ModelFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewModelFactory creates a new model factory
func NewModelFactory(cfg *config.Config, logger *zap.Logger) *ModelFactory {
	return &ModelFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// LoadModel loads the model and schema artifacts named in model.*
func (f *ModelFactory) LoadModel() (*scorer.Model, error) {
	modelCfg := f.cfg.GetModel()

	m, err := scorer.LoadModel(modelCfg.Path, modelCfg.SchemaPath)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Loaded model",
		zap.String("path", modelCfg.Path),
		zap.Int("features", len(m.Columns())))
	return m, nil
}

// CreateExtractor builds an extractor from the features.* tables
func (f *ModelFactory) CreateExtractor() *features.Extractor {
	featCfg := f.cfg.GetFeatures()
	return features.NewExtractor(features.NewLexicon(featCfg.Brands, featCfg.Shorteners, featCfg.Keywords))
}

// TopN returns the number of reasons attached to each prediction
func (f *ModelFactory) TopN() int {
	return f.cfg.GetModel().TopN
}
