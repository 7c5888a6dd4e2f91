package filter

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/detector"
	"go.uber.org/zap"
)

// CliFilter analyzes messages from the command line and prints a report
type CliFilter struct {
	service *detector.Service
	logger  *zap.Logger
	verbose bool
	out     io.Writer
}

// NewCliFilter creates a new CLI filter writing reports to out
func NewCliFilter(service *detector.Service, logger *zap.Logger, verbose bool, out io.Writer) *CliFilter {
	return &CliFilter{
		service: service,
		logger:  logger,
		verbose: verbose,
		out:     out,
	}
}

// ProcessMessage analyzes a raw message and prints the results
func (f *CliFilter) ProcessMessage(ctx context.Context, raw []byte) (*core.Prediction, error) {
	f.logger.Debug("Processing message", zap.Int("size", len(raw)))

	startTime := time.Now()
	a, err := f.service.AnalyzeAndEnrich(ctx, raw)
	if err != nil {
		f.logger.Error("Failed to analyze message", zap.Error(err))
		fmt.Fprintf(f.out, "Error: %v\n", err)
		return nil, err
	}
	duration := time.Since(startTime)

	fmt.Fprintf(f.out, "\n=== Message Summary ===\n")
	fmt.Fprintf(f.out, "From: %s\n", a.Message.HeaderOrEmpty("From"))
	fmt.Fprintf(f.out, "Subject: %s\n", a.Message.HeaderOrEmpty("Subject"))
	fmt.Fprintf(f.out, "From domain: %s\n", a.Prediction.FromDomain)
	fmt.Fprintf(f.out, "Body length: %d bytes (html: %t)\n", len(a.Message.Body), a.Message.BodyIsHTML)

	if f.verbose {
		fmt.Fprintf(f.out, "\n=== Features ===\n")
		for _, name := range f.service.Model().Columns() {
			fmt.Fprintf(f.out, "%-22s %g\n", name, a.Vector.Get(name))
		}
	}

	fmt.Fprintf(f.out, "\n=== Results ===\n")
	fmt.Fprintf(f.out, "Prediction: %s\n", a.Prediction.Label)
	fmt.Fprintf(f.out, "Confidence: %.4f\n", a.Prediction.Confidence)
	for i, r := range a.Prediction.Reasons {
		fmt.Fprintf(f.out, "%d. %s (value %g, weight %.4f)\n", i+1, r.Description, r.Value, r.Weight)
	}
	if len(a.Prediction.Reasons) == 0 {
		fmt.Fprintf(f.out, "No contributing features\n")
	}

	if e := a.Enrichment; e != nil {
		fmt.Fprintf(f.out, "\n=== Enrichment ===\n")
		for _, anomaly := range e.HeaderAnomalies {
			fmt.Fprintf(f.out, "Header anomaly: %s\n", anomaly)
		}
		for _, v := range e.URLs {
			fmt.Fprintf(f.out, "URL %s [%s] status=%s risk=%d %s\n", v.URL, v.Source, v.Status, v.RiskScore, v.RiskLevel)
		}
		if e.Advisory != nil {
			fmt.Fprintf(f.out, "Advisor (%s): phishing=%t score=%.2f %s\n",
				e.Advisory.ModelUsed, e.Advisory.IsPhishing, e.Advisory.Score, e.Advisory.Explanation)
		}
		for _, source := range e.Unavailable {
			fmt.Fprintf(f.out, "Unavailable: %s\n", source)
		}
	}

	fmt.Fprintf(f.out, "Processing time: %v\n", duration)

	return &a.Prediction, nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
