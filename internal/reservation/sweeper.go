package reservation

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper runs SweepNoShows on a fixed interval until its context ends.
type Sweeper struct {
	service  Service
	interval time.Duration
	logger   *zap.Logger
}

func NewSweeper(service Service, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{service: service, interval: interval, logger: logger}
}

func (w *Sweeper) Run(ctx context.Context) {
	if w.interval <= 0 {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("no-show sweeper started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("no-show sweeper stopped")
			return
		case <-ticker.C:
			if _, err := w.service.SweepNoShows(ctx); err != nil && ctx.Err() == nil {
				// Busy reservations are picked up on the next tick.
				w.logger.Warn("no-show sweep incomplete", zap.Error(err))
			}
		}
	}
}
