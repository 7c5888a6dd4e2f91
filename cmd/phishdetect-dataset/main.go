package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/config"
	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/dataset"
	"github.com/mikey/phish-detector/internal/factory"
	"github.com/mikey/phish-detector/internal/logging"
	"github.com/mikey/phish-detector/internal/schema"
)

var (
	configFile    = flag.String("config", "", "Path to config file")
	phishingDir   = flag.String("phishing", "", "Folder of phishing messages (overrides dataset.phishing_dir)")
	legitimateDir = flag.String("legitimate", "", "Folder of legitimate messages (overrides dataset.legitimate_dir)")
	output        = flag.String("output", "", "Output CSV path (overrides dataset.output)")
	workers       = flag.Int("workers", 0, "Number of extraction workers (overrides dataset.workers)")
	seed          = flag.Int64("seed", -1, "Shuffle seed (overrides dataset.seed)")
	noProgress    = flag.Bool("no-progress", false, "Disable the progress bar")
	verbose       = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog       = flag.Bool("json-log", false, "Output logs in JSON format")
)

func main() {
	flag.Parse()

	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	dc := cfg.GetDataset()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	extractor := factory.NewModelFactory(cfg, logger).CreateExtractor()
	builder := dataset.NewBuilder(extractor, logger, dataset.Options{
		Workers:    dc.Workers,
		Seed:       dc.Seed,
		Extensions: dc.Extensions,
		Progress:   !*noProgress,
	})

	rows, summary, err := builder.Build(ctx, []dataset.Source{
		{Dir: dc.PhishingDir, Label: core.LabelPhishing},
		{Dir: dc.LegitimateDir, Label: core.LabelLegitimate},
	})
	if err != nil {
		logger.Fatal("Failed to build dataset", zap.Error(err))
	}
	if len(rows) == 0 {
		logger.Fatal("No messages could be processed",
			zap.String("phishing_dir", dc.PhishingDir),
			zap.String("legitimate_dir", dc.LegitimateDir))
	}

	if err := os.MkdirAll(filepath.Dir(dc.Output), 0o755); err != nil {
		logger.Fatal("Failed to create output directory", zap.Error(err))
	}
	if err := dataset.WriteFile(dc.Output, schema.Default(), rows); err != nil {
		logger.Fatal("Failed to write dataset", zap.Error(err))
	}

	printSummary(summary, dc.Output)
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if *configFile != "" {
		loaded, err := config.NewFromFile(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.NewFromViper(config.NewEmptyViper())
	}

	if *phishingDir != "" {
		cfg.Set("dataset.phishing_dir", *phishingDir)
	}
	if *legitimateDir != "" {
		cfg.Set("dataset.legitimate_dir", *legitimateDir)
	}
	if *output != "" {
		cfg.Set("dataset.output", *output)
	}
	if *workers > 0 {
		cfg.Set("dataset.workers", *workers)
	}
	if *seed >= 0 {
		cfg.Set("dataset.seed", *seed)
	}
	return cfg, nil
}

func printSummary(s dataset.Summary, path string) {
	fmt.Printf("\n=== Dataset Summary ===\n")
	fmt.Printf("Processed: %d\n", s.Processed)
	fmt.Printf("Failed: %d\n", s.Failed)

	labels := make([]core.Label, 0, len(s.PerLabel))
	for l := range s.PerLabel {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] > labels[j] })
	for _, l := range labels {
		fmt.Printf("%s: %d\n", l, s.PerLabel[l])
	}

	for _, f := range s.Failures {
		fmt.Printf("Skipped %s: %v\n", f.Path, f.Err)
	}
	fmt.Printf("Written to %s\n", path)
}
