package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/goccy/go-json"
	"github.com/mikey/phish-detector/internal/advisor"
	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/utils"
	"go.uber.org/zap"
)

// InvokeModelAPI is the part of the Bedrock runtime client the advisor needs
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockAdvisor asks a model hosted on Amazon Bedrock for a second opinion on a message
type BedrockAdvisor struct {
	client        InvokeModelAPI
	modelID       string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewBedrockAdvisor creates a new Bedrock advisor
func NewBedrockAdvisor(
	client InvokeModelAPI,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *BedrockAdvisor {
	return &BedrockAdvisor{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// AnalyzeMessage returns the model's phishing assessment of a message
func (c *BedrockAdvisor) AnalyzeMessage(ctx context.Context, msg *core.ParsedMessage) (*core.Advisory, error) {
	prompt := advisor.BuildPrompt(msg, c.textProcessor, c.maxBodySize)

	payload, err := c.requestBody(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	text, err := c.responseText(resp.Body)
	if err != nil {
		return nil, err
	}

	return advisor.ParseResponse(text, c.modelID)
}

// requestBody builds the provider specific payload for the configured model
func (c *BedrockAdvisor) requestBody(prompt string) ([]byte, error) {
	switch {
	case c.isAnthropicModel():
		return json.Marshal(map[string]interface{}{
			"prompt":               "\n\nHuman: " + prompt + "\n\nAssistant:",
			"max_tokens_to_sample": c.maxTokens,
			"temperature":          c.temperature,
			"top_p":                c.topP,
		})
	case c.isAmazonTitanModel():
		return json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": c.maxTokens,
				"temperature":   c.temperature,
				"topP":          c.topP,
			},
		})
	default:
		return json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  c.maxTokens,
			"temperature": c.temperature,
			"top_p":       c.topP,
		})
	}
}

// responseText extracts the generated text from a provider specific body
func (c *BedrockAdvisor) responseText(body []byte) (string, error) {
	switch {
	case c.isAnthropicModel():
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	case c.isAmazonTitanModel():
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", errors.New("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	default:
		var genericResp struct {
			Output   string `json:"output"`
			Text     string `json:"text"`
			Response string `json:"response"`
		}
		if err := json.Unmarshal(body, &genericResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
		}
		for _, s := range []string{genericResp.Output, genericResp.Text, genericResp.Response} {
			if s != "" {
				return s, nil
			}
		}
		return string(body), nil
	}
}

func (c *BedrockAdvisor) isAnthropicModel() bool {
	return strings.HasPrefix(c.modelID, "anthropic.claude")
}

func (c *BedrockAdvisor) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.modelID, "amazon.titan")
}
