package ports

import (
	"context"

	"github.com/mikey/phish-detector/internal/core"
)

// MailFilter classifies messages flowing through a mail transport
type MailFilter interface {
	// ProcessMessage classifies one raw message
	ProcessMessage(ctx context.Context, raw []byte) (*core.Prediction, error)

	// Start starts the filter service
	Start() error

	// Stop stops the filter service
	Stop() error
}
