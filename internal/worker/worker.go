// Package worker runs fixed-interval background jobs.
package worker

import (
	"context"
	"time"

	"github.com/Afonso75/QZeroN-sub002/internal/clock"

	"github.com/rs/zerolog"
)

type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. Zero means the run shares the loop's context.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Start runs job once immediately, then on every tick until ctx is cancelled. A failed run is
// logged and the loop waits for the next tick.
func Start(ctx context.Context, clk clock.Clock, job Job, logger zerolog.Logger) {
	logger = logger.With().Str("job", job.Name).Logger()
	ticker := clk.NewTicker(job.Interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", job.Interval).Msg("worker started")
	runOnce(ctx, job, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("worker stopped")
			return
		case <-ticker.C:
			runOnce(ctx, job, logger)
		}
	}
}

func runOnce(ctx context.Context, job Job, logger zerolog.Logger) {
	runCtx := ctx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	if err := job.Run(runCtx); err != nil {
		logger.Warn().Err(err).Msg("worker run failed")
	}
}
