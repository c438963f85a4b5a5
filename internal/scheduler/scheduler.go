// Package scheduler drives the recurring-expense processor on a fixed
// interval.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SweepFunc runs one sweep of due recurring expenses as of now.
type SweepFunc func(ctx context.Context, now time.Time) (int, error)

// Scheduler ticks a SweepFunc at a fixed interval. If a sweep is still
// running when the next tick fires, that tick is skipped rather than queued,
// so sweeps never overlap.
type Scheduler struct {
	interval time.Duration
	sweep    SweepFunc

	running sync.Mutex // held for the duration of one sweep
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func New(interval time.Duration, sweep SweepFunc) *Scheduler {
	return &Scheduler{
		interval: interval,
		sweep:    sweep,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs an immediate sweep and then ticks until Stop is called or the
// context is cancelled. It does not block.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		s.runOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
}

// Stop halts the tick loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
	s.running.Lock()
	s.running.Unlock()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if !s.running.TryLock() {
		slog.WarnContext(ctx, "Previous sweep still running, skipping tick")
		return
	}
	defer s.running.Unlock()

	start := time.Now()
	created, err := s.sweep(ctx, start)
	if err != nil {
		slog.ErrorContext(ctx, "Scheduled sweep failed",
			"error", err,
			"elapsed", time.Since(start).Round(time.Millisecond))
		return
	}

	slog.InfoContext(ctx, "Scheduled sweep finished",
		"transactions_created", created,
		"elapsed", time.Since(start).Round(time.Millisecond))
}
