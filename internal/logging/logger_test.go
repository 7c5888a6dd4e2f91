package logging

import (
	"testing"

	"github.com/mikey/phish-detector/internal/config"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"verbose": zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for name, want := range tests {
		if got := parseLevel(name); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestInitLogger(t *testing.T) {
	cfg := config.NewFromViper(config.NewEmptyViper())
	cfg.Set("logging.level", "debug")

	logger, err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("InitLogger() error = %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Errorf("debug level should be enabled")
	}

	console, err := InitConsoleLogger(false, false)
	if err != nil {
		t.Fatalf("InitConsoleLogger() error = %v", err)
	}
	if console.Core().Enabled(zapcore.DebugLevel) {
		t.Errorf("debug level should be disabled without verbose")
	}
}
