// Package scheduler runs the sniffer's periodic housekeeping: the metrics
// log, world eviction and journal pruning.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TaskFunc is one run of a periodic task.
type TaskFunc func(ctx context.Context)

type task struct {
	name     string
	interval time.Duration
	run      TaskFunc
}

// Scheduler manages periodic background tasks.
type Scheduler struct {
	mu    sync.Mutex
	tasks []task

	logger zerolog.Logger
}

// NewScheduler creates an empty scheduler.
func NewScheduler(logger zerolog.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Add registers a task. Tasks with a non-positive interval are skipped.
func (s *Scheduler) Add(name string, interval time.Duration, fn TaskFunc) {
	if interval <= 0 || fn == nil {
		s.logger.Debug().Str("task", name).Msg("task disabled")
		return
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, task{name: name, interval: interval, run: fn})
	s.mu.Unlock()
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Start runs every task on its own ticker and blocks until ctx is cancelled
// and all loops have returned.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	tasks := append([]task(nil), s.tasks...)
	s.mu.Unlock()

	s.logger.Info().Int("tasks", len(tasks)).Msg("scheduler started")

	var wg sync.WaitGroup
	for _, t := range tasks {
		t := t // per-iteration copy (pre-Go 1.22 loop semantics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, t)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, t task) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	s.logger.Debug().
		Str("task", t.name).
		Dur("interval", t.interval).
		Msg("task scheduled")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, t)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("task", t.name).
				Interface("panic", r).
				Msg("scheduled task panicked")
		}
	}()
	t.run(ctx)
}
