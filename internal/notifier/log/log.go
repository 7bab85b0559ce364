// Package log implements a notifier that writes alerts to the logger. It is
// the fallback when email delivery is not configured.
package log

import (
	"context"

	"go.uber.org/zap"

	"github.com/gardenbot/stock-watcher/internal/stock"
)

// Notifier logs alerts instead of delivering them.
type Notifier struct {
	logger *zap.Logger
}

// New creates a log-backed notifier.
func New(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.L()
	}
	return &Notifier{logger: logger}
}

// Channel reports the notifier channel name.
func (n *Notifier) Channel() string {
	return "log"
}

// Notify writes the alert to the logger.
func (n *Notifier) Notify(_ context.Context, alert stock.Alert) error {
	seeds := make([]string, 0, len(alert.Seeds))
	for _, seed := range alert.Seeds {
		seeds = append(seeds, seed.Name)
	}
	n.logger.Info("stock alert",
		zap.String("check_id", alert.CheckID),
		zap.String("fingerprint", alert.Fingerprint),
		zap.Strings("seeds", seeds),
	)
	return nil
}
