package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is an engine entry point: one pass for an explicit UTC instant.
type TickFunc func(ctx context.Context, nowUTC time.Time) (int, error)

// Runner executes engine ticks with bounded concurrency and tracks them so
// shutdown can wait for in-flight work. When every slot is busy a tick is
// skipped, not queued: the engines are idempotent, so a skipped tick only
// delays work to the next firing.
type Runner struct {
	slots  chan struct{}
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// NewRunner creates a runner with the given concurrency bound.
func NewRunner(maxConcurrent int, logger zerolog.Logger) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Runner{
		slots:  make(chan struct{}, maxConcurrent),
		logger: logger,
	}
}

// Go starts fn in a tracked goroutine if a slot is free, passing the current
// UTC time as the tick instant. Returns whether the tick was started.
func (r *Runner) Go(ctx context.Context, name string, fn TickFunc) bool {
	select {
	case r.slots <- struct{}{}:
	default:
		r.logger.Warn().Str("engine", name).Msg("tick skipped, concurrency limit reached")
		return false
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() { <-r.slots }()
		if _, err := fn(ctx, time.Now().UTC()); err != nil {
			r.logger.Error().Err(err).Str("engine", name).Msg("tick failed")
		}
	}()
	return true
}

// Wait blocks until every in-flight tick has returned. Call after the tick
// source has stopped and before releasing resources the ticks use.
func (r *Runner) Wait() {
	r.wg.Wait()
}
