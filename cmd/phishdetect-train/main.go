package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/config"
	"github.com/mikey/phish-detector/internal/dataset"
	"github.com/mikey/phish-detector/internal/forest"
	"github.com/mikey/phish-detector/internal/logging"
	"github.com/mikey/phish-detector/internal/schema"
	"github.com/mikey/phish-detector/internal/scorer"
)

var (
	configFile   = flag.String("config", "", "Path to config file")
	datasetPath  = flag.String("dataset", "", "Input dataset CSV (overrides dataset.output)")
	modelPath    = flag.String("model", "", "Output model artifact (overrides model.path)")
	schemaPath   = flag.String("schema", "", "Output schema artifact (overrides model.schema_path)")
	trees        = flag.Int("trees", 0, "Number of trees (overrides training.trees)")
	maxDepth     = flag.Int("max-depth", -1, "Maximum tree depth, 0 for unlimited (overrides training.max_depth)")
	minLeaf      = flag.Int("min-leaf", 0, "Minimum rows per leaf (overrides training.min_leaf)")
	testFraction = flag.Float64("test-fraction", -1, "Share of rows held out for evaluation (overrides training.test_fraction)")
	seed         = flag.Int64("seed", -1, "Training seed (overrides training.seed)")
	topFeatures  = flag.Int("top", 10, "Number of feature importances to print")
	verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog      = flag.Bool("json-log", false, "Output logs in JSON format")
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
	if err := train(cfg, logger); err != nil {
		logger.Fatal("Training failed", zap.Error(err))
	}
}

func train(cfg *config.Config, logger *zap.Logger) error {
	tc := cfg.GetTraining()
	mc := cfg.GetModel()
	input := cfg.GetDataset().Output

	reg, rows, err := dataset.ReadFile(input)
	if err != nil {
		return err
	}
	logger.Info("Loaded dataset",
		zap.String("path", input),
		zap.Int("rows", len(rows)),
		zap.Int("features", reg.Len()))

	trainRows, testRows := dataset.StratifiedSplit(rows, tc.TestFraction, tc.Seed)
	x, y := dataset.Matrix(reg, trainRows)

	p := forest.DefaultParams()
	p.Trees = tc.Trees
	p.MaxDepth = tc.MaxDepth
	p.MinLeaf = tc.MinLeaf
	p.Seed = tc.Seed

	start := time.Now()
	f, err := forest.Fit(reg.Columns(), x, y, p)
	if err != nil {
		return fmt.Errorf("failed to fit forest: %w", err)
	}
	logger.Info("Trained forest",
		zap.Int("trees", f.NumTrees()),
		zap.Int("train_rows", len(trainRows)),
		zap.Duration("duration", time.Since(start)))

	if len(testRows) > 0 {
		truth := make([]int, len(testRows))
		predicted := make([]int, len(testRows))
		for i, row := range testRows {
			label, err := f.Predict(reg.Align(row.Vector))
			if err != nil {
				return fmt.Errorf("failed to evaluate row %d: %w", i, err)
			}
			truth[i] = int(row.Label)
			predicted[i] = label
		}
		fmt.Printf("\n=== Evaluation (%d held out) ===\n", len(testRows))
		fmt.Print(dataset.Evaluate(truth, predicted).String())
	} else {
		logger.Warn("No rows held out, skipping evaluation")
	}

	fmt.Printf("\n=== Feature Importances ===\n")
	for i, r := range dataset.RankImportances(f.Columns(), f.FeatureImportances()) {
		if i >= *topFeatures {
			break
		}
		fmt.Printf("%-22s %.4f\n", r.Feature, r.Importance)
	}

	// Refuse to write artifacts the server could not load together
	if _, err := scorer.NewModel(f, reg); err != nil {
		return err
	}

	for _, path := range []string{mc.Path, mc.SchemaPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}
	if err := forest.Save(f, mc.Path); err != nil {
		return err
	}
	if err := schema.Save(reg, mc.SchemaPath); err != nil {
		return err
	}

	fmt.Printf("\nModel written to %s\nSchema written to %s\n", mc.Path, mc.SchemaPath)
	return nil
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

	if *datasetPath != "" {
		cfg.Set("dataset.output", *datasetPath)
	}
	if *modelPath != "" {
		cfg.Set("model.path", *modelPath)
	}
	if *schemaPath != "" {
		cfg.Set("model.schema_path", *schemaPath)
	}
	if *trees > 0 {
		cfg.Set("training.trees", *trees)
	}
	if *maxDepth >= 0 {
		cfg.Set("training.max_depth", *maxDepth)
	}
	if *minLeaf > 0 {
		cfg.Set("training.min_leaf", *minLeaf)
	}
	if *testFraction >= 0 {
		cfg.Set("training.test_fraction", *testFraction)
	}
	if *seed >= 0 {
		cfg.Set("training.seed", *seed)
	}
	return cfg, nil
}
