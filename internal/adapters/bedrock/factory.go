package bedrock

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/phish-detector/internal/config"
	"github.com/mikey/phish-detector/internal/ports"
	"github.com/mikey/phish-detector/internal/utils"
	"go.uber.org/zap"
)

// Factory creates Bedrock advisors
type Factory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewFactory creates a new Bedrock factory
func NewFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *Factory {
	return &Factory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateAdvisor creates a new Bedrock advisor using the default AWS credential chain
func (f *Factory) CreateAdvisor() (ports.Advisor, error) {
	bedrockCfg := f.cfg.GetBedrock()

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(bedrockCfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return NewBedrockAdvisor(
		bedrockruntime.NewFromConfig(awsCfg),
		bedrockCfg.ModelID,
		bedrockCfg.MaxTokens,
		bedrockCfg.Temperature,
		bedrockCfg.TopP,
		bedrockCfg.MaxBodySize,
		f.logger,
		f.textProcessor,
	), nil
}
