package factory

import (
	"fmt"

	"github.com/mikey/phish-detector/internal/adapters/bedrock"
	"github.com/mikey/phish-detector/internal/adapters/gemini"
	"github.com/mikey/phish-detector/internal/adapters/openai"
	"github.com/mikey/phish-detector/internal/config"
	"github.com/mikey/phish-detector/internal/ports"
	"github.com/mikey/phish-detector/internal/utils"
	"go.uber.org/zap"
)

// AdvisorNone disables the language model second opinion
const AdvisorNone = "none"

// AdvisorFactory creates language model advisors
type AdvisorFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewAdvisorFactory creates a new advisor factory
func NewAdvisorFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *AdvisorFactory {
	return &AdvisorFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateAdvisor creates the advisor named by enrichment.advisor. It returns
// nil without error when no advisor is configured.
func (f *AdvisorFactory) CreateAdvisor() (ports.Advisor, error) {
	provider := f.cfg.GetEnrichment().Advisor

	switch provider {
	case "", AdvisorNone:
		return nil, nil
	case "bedrock":
		return bedrock.NewFactory(f.cfg, f.logger, f.textProcessor).CreateAdvisor()
	case "gemini":
		return gemini.NewFactory(f.cfg, f.logger, f.textProcessor).CreateAdvisor()
	case "openai":
		return openai.NewFactory(f.cfg, f.logger, f.textProcessor).CreateAdvisor()
	default:
		return nil, fmt.Errorf("unsupported advisor provider: %s", provider)
	}
}
