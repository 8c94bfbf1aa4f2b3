package printing

import (
	"context"

	"go.uber.org/zap"
)

// Discard is a Printer that accepts every job without printing. It is
// used when no printer is configured so the document pipeline can still
// archive labels and mark orders printed.
type Discard struct {
	logger *zap.Logger
}

// NewDiscard creates a no-op printer.
func NewDiscard(logger *zap.Logger) *Discard {
	return &Discard{logger: logger}
}

func (d *Discard) Print(_ context.Context, orderID string, data []byte) error {
	d.logger.Info("Printer disabled, label not printed",
		zap.String("order_id", orderID),
		zap.Int("bytes", len(data)),
	)
	return nil
}

var _ Printer = (*Discard)(nil)
