package di

import (
	"flag"
	"io"
	"os"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/adapters/filter"
	"github.com/mikey/phish-detector/internal/config"
	"github.com/mikey/phish-detector/internal/detector"
	"github.com/mikey/phish-detector/internal/logging"
)

// CLIFlags contains all command line flags for the explain CLI
type CLIFlags struct {
	// Model flags
	ModelPath  string
	SchemaPath string
	TopN       int

	// Enrichment flags
	Enrich  bool
	Advisor string

	// Input and output flags
	InputFile  string
	JSONOutput bool
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	return ParseFlagSet(flag.CommandLine, os.Args[1:])
}

// ParseFlagSet registers the CLI flags on fs and parses args
func ParseFlagSet(fs *flag.FlagSet, args []string) *CLIFlags {
	flags := &CLIFlags{}

	fs.StringVar(&flags.ModelPath, "model", "", "Path to the model artifact (overrides model.path)")
	fs.StringVar(&flags.SchemaPath, "schema", "", "Path to the schema artifact (overrides model.schema_path)")
	fs.IntVar(&flags.TopN, "top", 0, "Number of reasons to show (overrides model.top_n)")

	fs.BoolVar(&flags.Enrich, "enrich", false, "Run URL reputation and header enrichment")
	fs.StringVar(&flags.Advisor, "advisor", "", "Language model advisor (none, bedrock, gemini, openai)")

	fs.StringVar(&flags.InputFile, "file", "", "Input email file (use stdin if not specified)")
	fs.BoolVar(&flags.JSONOutput, "json", false, "Print the result as JSON")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging and print every feature")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file")

	// flag.CommandLine exits on a parse error
	_ = fs.Parse(args)
	return flags
}

// BuildCLIContainer creates the dependency injection container for the
// explain CLI. Report text is written to out.
func BuildCLIContainer(flags *CLIFlags, out io.Writer) (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := loadCLIConfig(flags)
		if err != nil {
			return nil, err
		}
		if flags.ConfigFile != "" {
			logger.Debug("Loaded configuration from file", zap.String("file", flags.ConfigFile))
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	if err := provideCore(container); err != nil {
		return nil, err
	}

	if err := container.Provide(func(service *detector.Service, logger *zap.Logger, flags *CLIFlags) *filter.CliFilter {
		return filter.NewCliFilter(service, logger, flags.Verbose, out)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// loadCLIConfig reads the optional config file and applies flag overrides
func loadCLIConfig(flags *CLIFlags) (*config.Config, error) {
	var cfg *config.Config
	if flags.ConfigFile != "" {
		loaded, err := config.NewFromFile(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.NewFromViper(config.NewEmptyViper())
	}

	cfg.Set("server.filter_type", "cli")
	cfg.Set("cli.verbose", flags.Verbose)

	if flags.ModelPath != "" {
		cfg.Set("model.path", flags.ModelPath)
	}
	if flags.SchemaPath != "" {
		cfg.Set("model.schema_path", flags.SchemaPath)
	}
	if flags.TopN > 0 {
		cfg.Set("model.top_n", flags.TopN)
	}
	if flags.Enrich {
		cfg.Set("enrichment.enabled", true)
	}
	if flags.Advisor != "" {
		cfg.Set("enrichment.advisor", flags.Advisor)
	}

	return cfg, nil
}
