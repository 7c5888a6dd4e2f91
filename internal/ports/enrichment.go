package ports

import (
	"context"

	"github.com/mikey/phish-detector/internal/core"
)

// Advisor asks a language model for a second opinion on a message
type Advisor interface {
	AnalyzeMessage(ctx context.Context, msg *core.ParsedMessage) (*core.Advisory, error)
}

// URLChecker looks up the reputation of URLs in one external source
type URLChecker interface {
	// Name identifies the source in reports
	Name() string

	// Check returns one verdict per URL. Sources that cannot answer return
	// an EnrichmentUnavailable error.
	Check(ctx context.Context, urls []string) ([]core.URLVerdict, error)
}
