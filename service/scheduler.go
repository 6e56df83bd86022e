// Package service drives the engines on their configured cadences. The
// scheduler owns the tickers; the engines stay trigger-agnostic.
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vigil/metrics"
	"vigil/util/goroutine"
)

// CycleFunc is one schedulable unit of work
type CycleFunc func(ctx context.Context) error

// job is a named cycle with its cadence and an in-flight guard
type job struct {
	name     string
	interval time.Duration
	run      CycleFunc
	running  atomic.Bool
}

// Scheduler runs registered cycles on independent tickers. If a cycle is
// still in flight when its ticker fires again, that tick is skipped rather
// than stacking concurrent runs of the same cycle.
type Scheduler struct {
	jobs   []*job
	logger *zap.SugaredLogger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewScheduler creates an empty scheduler
func NewScheduler(logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Register adds a named cycle. Must be called before Start.
func (s *Scheduler) Register(name string, interval time.Duration, run CycleFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{name: name, interval: interval, run: run})
}

// Start launches one ticker goroutine per registered cycle. Each cycle also
// runs once immediately so a restart does not wait a full interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	var wg sync.WaitGroup
	for _, j := range s.jobs {
		wg.Add(1)
		j := j
		goroutine.Go("scheduler-"+j.name, s.logger, func() {
			defer wg.Done()
			s.loop(ctx, j)
		})
	}

	done := s.done
	goroutine.Go("scheduler-wait", s.logger, func() {
		wg.Wait()
		close(done)
	})

	s.logger.Infow("Scheduler started", "cycles", len(s.jobs))
}

// Stop cancels all cycles and waits for in-flight runs to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Infow("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	s.trigger(ctx, j)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger(ctx, j)
		}
	}
}

// trigger runs one cycle unless the previous run is still in flight
func (s *Scheduler) trigger(ctx context.Context, j *job) {
	if !j.running.CompareAndSwap(false, true) {
		metrics.CyclesSkipped.WithLabelValues(j.name).Inc()
		s.logger.Warnw("Cycle still running, skipping tick",
			"cycle", j.name,
			"interval", j.interval)
		return
	}
	defer j.running.Store(false)

	if err := j.run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Errorw("Cycle failed",
			"cycle", j.name,
			"error", err)
	}
}
