package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikey/phish-detector/internal/advisor"
	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIAdvisor asks an OpenAI chat model for a second opinion on a message
type OpenAIAdvisor struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewOpenAIAdvisor creates a new OpenAI advisor
func NewOpenAIAdvisor(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIAdvisor {
	return &OpenAIAdvisor{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// AnalyzeMessage returns the model's phishing assessment of a message
func (c *OpenAIAdvisor) AnalyzeMessage(ctx context.Context, msg *core.ParsedMessage) (*core.Advisory, error) {
	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: advisor.SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: advisor.BuildPrompt(msg, c.textProcessor, c.maxBodySize),
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty response from OpenAI")
	}

	result, err := advisor.ParseResponse(resp.Choices[0].Message.Content, c.modelName)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("OpenAI advisory received",
		zap.String("id", resp.ID),
		zap.Bool("is_phishing", result.IsPhishing),
		zap.Float64("score", result.Score))

	return result, nil
}
