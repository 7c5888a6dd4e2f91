package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/phish-detector/internal/advisor"
	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiAdvisor asks a Google Gemini model for a second opinion on a message
type GeminiAdvisor struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGeminiAdvisor creates a new Gemini advisor
func NewGeminiAdvisor(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiAdvisor, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(advisor.SystemPrompt)}}

	return &GeminiAdvisor{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

// Close closes the underlying client
func (c *GeminiAdvisor) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// AnalyzeMessage returns the model's phishing assessment of a message
func (c *GeminiAdvisor) AnalyzeMessage(ctx context.Context, msg *core.ParsedMessage) (*core.Advisory, error) {
	prompt := advisor.BuildPrompt(msg, c.textProcessor, c.maxBodySize)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("empty response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return nil, errors.New("empty response from Gemini")
	}

	result, err := advisor.ParseResponse(sb.String(), c.modelName)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Gemini advisory received",
		zap.Bool("is_phishing", result.IsPhishing),
		zap.Float64("score", result.Score))

	return result, nil
}
