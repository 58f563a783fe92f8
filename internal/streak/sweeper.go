package streak

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically reloops overdue daily and weekly loops so schedules
// advance even when the owner never opens the app.
type Sweeper struct {
	service  *Service
	interval time.Duration
	logger   zerolog.Logger
}

// NewSweeper creates a sweeper over the reloop service.
func NewSweeper(service *Service, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		service:  service,
		interval: interval,
		logger:   logger.With().Str("component", "sweeper").Logger(),
	}
}

// Run blocks until ctx is cancelled, sweeping on every tick.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info().Dur("interval", w.interval).Msg("reset sweeper started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("reset sweeper stopped")
			return
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce reloops every overdue loop. Failures are logged per loop so one
// bad row cannot stall the sweep.
func (w *Sweeper) SweepOnce(ctx context.Context) {
	overdue, err := w.service.store.ListOverdueLoops(w.service.now().UnixMilli())
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to list overdue loops")
		return
	}

	for _, l := range overdue {
		if _, err := w.service.RequestReloop(ctx, l.ID, false); err != nil {
			w.logger.Error().Err(err).Str("loop", l.ID).Msg("sweep reloop failed")
		}
	}

	if len(overdue) > 0 {
		w.logger.Debug().Int("count", len(overdue)).Msg("sweep complete")
	}
}
