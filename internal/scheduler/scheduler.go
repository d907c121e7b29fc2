package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc runs one refresh cycle and returns the delay until the next one.
// Returning a non-positive delay keeps the previous one, which is how a
// settings read failure falls back to the last-known-good interval.
type TickFunc func(ctx context.Context, start time.Time) (time.Duration, error)

// Options tune scheduler behaviour.
type Options struct {
	InitialInterval time.Duration
	StartupDelay    time.Duration
}

// Scheduler drives a single long-lived refresh loop. Ticks run synchronously
// on the loop goroutine, so a cycle can never overlap itself; a tick that
// outlives its own interval simply delays the next one.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.InitialInterval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function until ctx is cancelled. Tick errors
// are logged and the loop continues.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	interval := s.opts.InitialInterval
	for {
		timer := time.NewTimer(interval)
		s.logger.Debug().Dur("interval", interval).Msg("waiting for next cycle")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		start := time.Now().UTC()
		s.logger.Info().Time("start", start).Msg("executing refresh cycle")

		next, err := tick(ctx, start)
		if err != nil {
			s.logger.Error().Err(err).Time("start", start).Msg("refresh cycle failed")
		}
		if next > 0 {
			interval = next
		}
	}
}
