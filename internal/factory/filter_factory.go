package factory

import (
	"fmt"
	"os"

	"github.com/mikey/phish-detector/internal/adapters/filter"
	"github.com/mikey/phish-detector/internal/adapters/httpapi"
	"github.com/mikey/phish-detector/internal/config"
	"github.com/mikey/phish-detector/internal/detector"
	"github.com/mikey/phish-detector/internal/ports"
	"go.uber.org/zap"
)

// FilterFactory creates the serving front end based on configuration
type FilterFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *detector.Service
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service *detector.Service) *FilterFactory {
	return &FilterFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}
}

// CreateMailFilter creates the front end named by server.filter_type
func (f *FilterFactory) CreateMailFilter() (ports.MailFilter, error) {
	serverCfg := f.cfg.GetServer()
	opts := filter.Options{
		BlockPhishing:    serverCfg.BlockPhishing,
		BlockThreshold:   serverCfg.BlockThreshold,
		StatusHeader:     serverCfg.Headers.Status,
		ConfidenceHeader: serverCfg.Headers.Confidence,
		ReasonsHeader:    serverCfg.Headers.Reasons,
	}

	switch serverCfg.FilterType {
	case "http":
		return httpapi.NewServer(f.service, f.logger, httpapi.Options{
			Address:       serverCfg.HTTPAddress,
			MaxUploadSize: serverCfg.MaxUploadSize,
			Debug:         serverCfg.Debug,
		}), nil
	case "postfix":
		return filter.NewPostfixFilter(
			f.service,
			f.logger,
			serverCfg.ListenAddress,
			serverCfg.ForwardAddress,
			opts,
		), nil
	case "milter":
		return filter.NewMilterFilter(
			f.service,
			f.logger,
			serverCfg.ListenAddress,
			opts,
		), nil
	case "cli":
		return filter.NewCliFilter(
			f.service,
			f.logger,
			f.cfg.GetBool("cli.verbose"),
			os.Stdout,
		), nil
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", serverCfg.FilterType)
	}
}
