package display

import (
	"context"

	"github.com/genricoloni/spotline/internal/domain"
	"go.uber.org/zap"
)

// Pump drains updates into a sink until the channel closes or ctx is done.
// Render failures are logged and never stop the pump.
func Pump(ctx context.Context, logger *zap.Logger, updates <-chan domain.DisplayUpdate, sink domain.Sink) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				logger.Debug("Display updates channel closed")
				return
			}
			if err := sink.Render(ctx, update); err != nil {
				logger.Warn("Failed to render update",
					zap.String("text", update.Text),
					zap.Error(err))
			}
		}
	}
}
