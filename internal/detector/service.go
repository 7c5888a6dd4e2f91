// Package detector runs the classification pipeline for one raw message.
package detector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/explain"
	"github.com/mikey/phish-detector/internal/features"
	"github.com/mikey/phish-detector/internal/parser"
	"github.com/mikey/phish-detector/internal/scorer"
)

// Enricher collects out-of-band signals for a parsed message
type Enricher interface {
	Enrich(ctx context.Context, msg *core.ParsedMessage) *core.EnrichmentReport
}

// Analysis is everything produced for one message
type Analysis struct {
	Prediction core.Prediction
	Vector     core.FeatureVector
	Message    *core.ParsedMessage
	Enrichment *core.EnrichmentReport
}

// Service is the phishing detection service shared by every front end
type Service struct {
	extractor *features.Extractor
	model     *scorer.Model
	enricher  Enricher
	logger    *zap.Logger
	topN      int
}

// NewService creates a detection service. enricher may be nil.
func NewService(
	extractor *features.Extractor,
	model *scorer.Model,
	enricher Enricher,
	logger *zap.Logger,
	topN int,
) *Service {
	return &Service{
		extractor: extractor,
		model:     model,
		enricher:  enricher,
		logger:    logger,
		topN:      topN,
	}
}

// Model returns the shared model handle
func (s *Service) Model() *scorer.Model {
	return s.model
}

// EnrichmentEnabled reports whether an enricher is configured
func (s *Service) EnrichmentEnabled() bool {
	return s.enricher != nil
}

// Analyze parses, extracts, scores and explains a raw message. Parse and
// body decoding failures are returned as typed client errors.
func (s *Service) Analyze(ctx context.Context, raw []byte) (*Analysis, error) {
	msg, err := parser.Parse(raw)
	if err != nil {
		s.logger.Debug("Rejected unparsable message", zap.Error(err))
		return nil, err
	}

	vec := s.extractor.Extract(msg)
	label, confidence, err := s.model.ScoreVector(vec)
	if err != nil {
		s.logger.Error("Failed to score message", zap.Error(err))
		return nil, err
	}

	reasons := explain.Explain(vec, s.model.Columns(), s.model.Importances(), s.topN)

	s.logger.Info("Analyzed message",
		zap.String("from_domain", vec.FromDomain),
		zap.String("prediction", label.String()),
		zap.Float64("confidence", confidence),
		zap.Int("reasons", len(reasons)))

	return &Analysis{
		Prediction: core.Prediction{
			Label:      label,
			Confidence: confidence,
			Reasons:    reasons,
			FromDomain: vec.FromDomain,
			AnalyzedAt: time.Now(),
		},
		Vector:  vec,
		Message: msg,
	}, nil
}

// AnalyzeAndEnrich runs Analyze and then the enricher, if any. Enrichment
// never changes the prediction or fails the call.
func (s *Service) AnalyzeAndEnrich(ctx context.Context, raw []byte) (*Analysis, error) {
	a, err := s.Analyze(ctx, raw)
	if err != nil {
		return nil, err
	}
	a.Enrichment = s.Enrich(ctx, a.Message)
	return a, nil
}

// Enrich collects out-of-band signals, returning nil without an enricher
func (s *Service) Enrich(ctx context.Context, msg *core.ParsedMessage) *core.EnrichmentReport {
	if s.enricher == nil || msg == nil {
		return nil
	}
	return s.enricher.Enrich(ctx, msg)
}
