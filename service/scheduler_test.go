package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestScheduler_RunsCycleImmediatelyAndOnTicks(t *testing.T) {
	sched := NewScheduler(zap.NewNop().Sugar())

	var runs atomic.Int64
	sched.Register("test", 20*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	sched.Start(context.Background())
	defer sched.Stop()

	waitFor(t, time.Second, func() bool { return runs.Load() >= 3 })
}

func TestScheduler_SkipsTickWhileCycleInFlight(t *testing.T) {
	sched := NewScheduler(zap.NewNop().Sugar())

	release := make(chan struct{})
	var starts atomic.Int64
	sched.Register("slow", 10*time.Millisecond, func(ctx context.Context) error {
		starts.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})

	sched.Start(context.Background())

	// Let several ticks elapse while the first run blocks.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), starts.Load(), "overlapping ticks are skipped, not queued")

	close(release)
	sched.Stop()
}

func TestScheduler_CycleErrorDoesNotStopTicker(t *testing.T) {
	sched := NewScheduler(zap.NewNop().Sugar())

	var runs atomic.Int64
	sched.Register("flaky", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("synthetic cycle failure")
	})

	sched.Start(context.Background())
	defer sched.Stop()

	waitFor(t, time.Second, func() bool { return runs.Load() >= 3 })
}

func TestScheduler_IndependentCadences(t *testing.T) {
	sched := NewScheduler(zap.NewNop().Sugar())

	var fast, slow atomic.Int64
	sched.Register("fast", 10*time.Millisecond, func(ctx context.Context) error {
		fast.Add(1)
		return nil
	})
	sched.Register("slow", 500*time.Millisecond, func(ctx context.Context) error {
		slow.Add(1)
		return nil
	})

	sched.Start(context.Background())
	defer sched.Stop()

	waitFor(t, time.Second, func() bool { return fast.Load() >= 5 })
	assert.LessOrEqual(t, slow.Load(), int64(3), "slow cycle is not dragged along by the fast ticker")
}

func TestScheduler_StopWaitsForInFlightCycle(t *testing.T) {
	sched := NewScheduler(zap.NewNop().Sugar())

	started := make(chan struct{})
	var finished atomic.Bool
	sched.Register("graceful", time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	})

	sched.Start(context.Background())
	<-started
	sched.Stop()

	assert.True(t, finished.Load(), "Stop returns only after in-flight work winds down")
}

func TestScheduler_StartTwiceIsNoop(t *testing.T) {
	sched := NewScheduler(zap.NewNop().Sugar())

	var runs atomic.Int64
	sched.Register("once", time.Hour, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx := context.Background()
	sched.Start(ctx)
	sched.Start(ctx)
	defer sched.Stop()

	waitFor(t, time.Second, func() bool { return runs.Load() >= 1 })
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int64(1), runs.Load())
}

func TestScheduler_StopWithoutStartIsNoop(t *testing.T) {
	sched := NewScheduler(zap.NewNop().Sugar())
	sched.Stop()
}
