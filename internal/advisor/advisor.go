// Package advisor holds the prompt and response handling shared by the
// language model adapters.
package advisor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/utils"
)

// SystemPrompt is sent as the system role where a provider supports one
const SystemPrompt = "You are a phishing detection system. Respond only with JSON."

const promptFormat = `You are a phishing detection system. Analyze the following email and determine if it is a phishing attempt.
Respond with a JSON object containing:
- is_phishing: boolean (true if phishing, false if not)
- score: number between 0 and 1 (higher means more likely to be phishing)
- confidence: number between 0 and 1 (how confident you are in your assessment)
- explanation: string (brief explanation of the signals you relied on)

Email:
From: %s
Reply-To: %s
Return-Path: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`

// ErrNoJSON is returned when a model reply holds no JSON object
var ErrNoJSON = errors.New("no JSON object in model response")

// response is the JSON object the model is asked to produce
type response struct {
	IsPhishing  bool    `json:"is_phishing"`
	Score       float64 `json:"score"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// BuildPrompt renders the user prompt for a message. HTML bodies are reduced
// to their visible text and the result is capped at maxBodySize bytes.
func BuildPrompt(msg *core.ParsedMessage, tp *utils.TextProcessor, maxBodySize int) string {
	body := msg.Body
	if msg.BodyIsHTML {
		body = tp.HTMLToText(body)
	}
	body = tp.ProcessText(body, maxBodySize)

	return fmt.Sprintf(promptFormat,
		msg.HeaderOrEmpty("From"),
		msg.HeaderOrEmpty("Reply-To"),
		msg.HeaderOrEmpty("Return-Path"),
		msg.HeaderOrEmpty("Subject"),
		body,
	)
}

// ParseResponse decodes a model reply into an Advisory. The JSON object may be
// wrapped in prose or a code fence.
func ParseResponse(text, model string) (*core.Advisory, error) {
	var r response
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &r); err != nil {
		start := strings.IndexByte(text, '{')
		end := strings.LastIndexByte(text, '}')
		if start < 0 || end <= start {
			return nil, fmt.Errorf("failed to extract JSON from LLM response: %w", ErrNoJSON)
		}
		r = response{}
		if err := json.Unmarshal([]byte(text[start:end+1]), &r); err != nil {
			return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
		}
	}

	return &core.Advisory{
		IsPhishing:  r.IsPhishing,
		Score:       clamp(r.Score),
		Confidence:  clamp(r.Confidence),
		Explanation: strings.TrimSpace(r.Explanation),
		ModelUsed:   model,
		AnalyzedAt:  time.Now(),
	}, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
