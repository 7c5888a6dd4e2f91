package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/adapters/filter"
	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/detector"
	"github.com/mikey/phish-detector/internal/di"
)

// explainOutput is the -json rendering of one analysis
type explainOutput struct {
	Prediction string                 `json:"prediction"`
	Label      core.Label             `json:"label"`
	Confidence float64                `json:"confidence"`
	Reasons    []core.Reason          `json:"reasons"`
	FromDomain string                 `json:"from_domain"`
	Features   map[string]float64     `json:"features,omitempty"`
	Enrichment *core.EnrichmentReport `json:"enrichment,omitempty"`
}

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(flags *di.CLIFlags, logger *zap.Logger, service *detector.Service, cli *filter.CliFilter) error {
	defer logger.Sync()

	raw, err := readInput(flags.InputFile, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if !flags.JSONOutput {
		_, err := cli.ProcessMessage(ctx, raw)
		return err
	}

	a, err := service.AnalyzeAndEnrich(ctx, raw)
	if err != nil {
		return err
	}

	out := explainOutput{
		Prediction: a.Prediction.Label.String(),
		Label:      a.Prediction.Label,
		Confidence: a.Prediction.Confidence,
		Reasons:    a.Prediction.Reasons,
		FromDomain: a.Prediction.FromDomain,
		Enrichment: a.Enrichment,
	}
	if out.Reasons == nil {
		out.Reasons = []core.Reason{}
	}
	if flags.Verbose {
		out.Features = make(map[string]float64)
		for _, name := range service.Model().Columns() {
			out.Features[name] = a.Vector.Get(name)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// readInput reads the message from a file or stdin
func readInput(path string, logger *zap.Logger) ([]byte, error) {
	var r io.Reader
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()
		r = file
		logger.Debug("Reading message from file", zap.String("file", path))
	} else {
		r = os.Stdin
		logger.Debug("Reading message from stdin")
	}

	raw, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	return raw, nil
}
