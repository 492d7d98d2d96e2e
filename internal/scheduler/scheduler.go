// Package scheduler wires up the cron job that periodically redelivers
// side-effect intents parked on the dispatch retry queue.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Drainer redelivers up to limit parked intents.
type Drainer interface {
	DrainRetries(ctx context.Context, limit int) (int, error)
}

// Scheduler wraps robfig/cron and manages the retry sweep.
type Scheduler struct {
	cron    *cron.Cron
	drainer Drainer
	spec    string // cron spec, e.g. "@every 1m"
	batch   int

	// running guards against a slow sweep overlapping the next tick.
	running sync.Mutex
}

// New creates a Scheduler that sweeps on spec, draining at most batch intents
// per tick.
func New(drainer Drainer, spec string, batch int) *Scheduler {
	if batch < 1 {
		batch = 100
	}
	return &Scheduler{
		cron:    cron.New(),
		drainer: drainer,
		spec:    spec,
		batch:   batch,
	}
}

// Start registers the sweep and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", s.spec, err)
	}

	s.cron.Start()
	slog.Info("retry scheduler started", "spec", s.spec, "batch", s.batch)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("retry scheduler stopped")
}

// Sweep runs one retry pass. Overlapping calls are skipped.
func (s *Scheduler) Sweep(ctx context.Context) {
	if !s.running.TryLock() {
		slog.Debug("retry sweep already running, skipping tick")
		return
	}
	defer s.running.Unlock()

	n, err := s.drainer.DrainRetries(ctx, s.batch)
	if err != nil {
		slog.Warn("retry sweep failed", "drained", n, "err", err)
		return
	}
	if n > 0 {
		slog.Info("retry sweep complete", "drained", n)
	}
}
