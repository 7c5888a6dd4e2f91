package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/detector"
	"github.com/mikey/phish-detector/internal/di"
	"github.com/mikey/phish-detector/internal/ports"
)

func main() {
	// A missing .env file is fine, the environment may already be set
	_ = godotenv.Load()

	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	mailFilter ports.MailFilter,
	service *detector.Service,
	advisor ports.Advisor,
	cache ports.ReputationCache,
) error {
	defer logger.Sync()

	logger.Info("Starting phish detector",
		zap.Strings("features", service.Model().Columns()),
		zap.Bool("enrichment", service.EnrichmentEnabled()))

	// Start the filter
	if err := mailFilter.Start(); err != nil {
		logger.Error("Failed to start filter", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	if err := mailFilter.Stop(); err != nil {
		logger.Error("Failed to stop filter", zap.Error(err))
	}

	if closer, ok := advisor.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close advisor", zap.Error(err))
		}
	}

	if stopper, ok := cache.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}
