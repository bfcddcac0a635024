package app

import (
	"context"
	"log/slog"
	"time"
)

// SweepWorker drives the expiry sweep on a fixed interval until the context
// is cancelled.
type SweepWorker struct {
	dispatcher *Dispatcher
	interval   time.Duration
	logger     *slog.Logger
}

func NewSweepWorker(dispatcher *Dispatcher, interval time.Duration, logger *slog.Logger) *SweepWorker {
	return &SweepWorker{dispatcher: dispatcher, interval: interval, logger: logger}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	w.logger.Info("expiry sweep worker started", "interval", w.interval.String())
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiry sweep worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.dispatcher.ExpireDueOffers(ctx); err != nil {
				w.logger.Error("expiry sweep failed", "error", err)
			}
		}
	}
}
