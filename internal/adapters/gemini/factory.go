package gemini

import (
	"errors"

	"github.com/mikey/phish-detector/internal/config"
	"github.com/mikey/phish-detector/internal/ports"
	"github.com/mikey/phish-detector/internal/utils"
	"go.uber.org/zap"
)

// Factory creates new instances of GeminiAdvisor
type Factory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewFactory creates a new factory for GeminiAdvisor instances
func NewFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *Factory {
	return &Factory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateAdvisor creates a new GeminiAdvisor
func (f *Factory) CreateAdvisor() (ports.Advisor, error) {
	geminiCfg := f.cfg.GetGemini()
	if geminiCfg.APIKey == "" {
		return nil, errors.New("gemini.api_key is required")
	}

	adv, err := NewGeminiAdvisor(
		geminiCfg.APIKey,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		geminiCfg.MaxBodySize,
		f.logger,
		f.textProcessor,
	)
	if err != nil {
		return nil, err
	}
	return adv, nil
}
