package openai

import (
	"errors"

	"github.com/mikey/phish-detector/internal/config"
	"github.com/mikey/phish-detector/internal/ports"
	"github.com/mikey/phish-detector/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Factory creates new instances of OpenAIAdvisor
type Factory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	baseURL       string
}

// NewFactory creates a new factory for OpenAIAdvisor instances
func NewFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *Factory {
	return &Factory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
		baseURL:       cfg.GetString("openai.base_url"),
	}
}

// CreateAdvisor creates a new OpenAIAdvisor
func (f *Factory) CreateAdvisor() (ports.Advisor, error) {
	openaiCfg := f.cfg.GetOpenAI()
	if openaiCfg.APIKey == "" {
		return nil, errors.New("openai.api_key is required")
	}

	clientCfg := openai.DefaultConfig(openaiCfg.APIKey)
	if f.baseURL != "" {
		clientCfg.BaseURL = f.baseURL
	}

	return NewOpenAIAdvisor(
		openai.NewClientWithConfig(clientCfg),
		openaiCfg.ModelName,
		openaiCfg.MaxTokens,
		openaiCfg.Temperature,
		openaiCfg.TopP,
		openaiCfg.MaxBodySize,
		f.logger,
		f.textProcessor,
	), nil
}
