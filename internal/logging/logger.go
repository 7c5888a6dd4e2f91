package logging

import (
	"fmt"

	"github.com/mikey/phish-detector/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger initializes a logger based on configuration
func InitLogger(cfg *config.Config) (*zap.Logger, error) {
	return build(parseLevel(cfg.GetString("logging.level")), cfg.GetString("logging.format") == "json")
}

// InitConsoleLogger initializes a console-friendly logger for the command line tools
func InitConsoleLogger(verbose bool, jsonFormat bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	return build(level, jsonFormat)
}

func parseLevel(name string) zapcore.Level {
	switch name {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func build(level zapcore.Level, jsonFormat bool) (*zap.Logger, error) {
	var logConfig zap.Config
	if jsonFormat {
		logConfig = zap.NewProductionConfig()
	} else {
		logConfig = zap.NewDevelopmentConfig()
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	logConfig.Level = zap.NewAtomicLevelAt(level)
	// Keep stdout free for command output
	logConfig.OutputPaths = []string{"stderr"}

	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}
