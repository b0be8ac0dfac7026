package automation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock drives the scheduler without real sleeping: every sleep
// records the requested delay and advances the clock instantly.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
	// remaining caps how many sleeps succeed before the loop is
	// told to exit.
	remaining int
}

func newFakeClock(n int) *fakeClock {
	return &fakeClock{
		now:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		remaining: n,
	}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) bool {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.remaining--
	return c.remaining >= 0
}

func fixedRand(values ...int) func(min, max int) int {
	i := 0
	return func(min, max int) int {
		if i >= len(values) {
			return min
		}
		v := values[i]
		i++
		return v
	}
}

func newTestScheduler(sweep func(context.Context, func() bool) SweepResult, cfg SchedulerConfig, clock *fakeClock, rand func(int, int) int) *scheduler {
	s := newScheduler("test", cfg, sweep)
	s.now = clock.Now
	s.sleep = clock.Sleep
	s.randInt = rand
	return s
}

func TestNextDelayWithinJitterWindow(t *testing.T) {
	cfg := SchedulerConfig{Interval: 4 * time.Hour, Jitter: 20 * time.Minute}

	for _, offset := range []int{-10, -3, 0, 7, 10} {
		s := newTestScheduler(nil, cfg, newFakeClock(0), fixedRand(offset))
		delay := s.nextDelay(SweepResult{})
		require.GreaterOrEqual(t, delay, 3*time.Hour+50*time.Minute)
		require.LessOrEqual(t, delay, 4*time.Hour+10*time.Minute)
	}
}

func TestNextDelayFlooredAtTenMinutes(t *testing.T) {
	cfg := SchedulerConfig{Interval: 1 * time.Minute, Jitter: 4 * time.Minute}
	s := newTestScheduler(nil, cfg, newFakeClock(0), fixedRand(-2))

	require.Equal(t, minInterval, s.nextDelay(SweepResult{}))
}

func TestNextDelayAlwaysPastServerWaitHint(t *testing.T) {
	cfg := SchedulerConfig{Interval: 4 * time.Hour, Jitter: 20 * time.Minute}
	hint := 4 * time.Hour

	// Even the lowest draws land strictly after the hint itself.
	s := newTestScheduler(nil, cfg, newFakeClock(0), fixedRand(2, 0))
	delay := s.nextDelay(SweepResult{MaxWait: hint})
	require.Greater(t, delay, hint)
	require.Equal(t, hint+2*time.Minute, delay)

	s = newTestScheduler(nil, cfg, newFakeClock(0), fixedRand(5, 20))
	delay = s.nextDelay(SweepResult{MaxWait: hint})
	require.Equal(t, hint+5*time.Minute+20*time.Minute, delay)
}

func TestRunReschedulesAndCountsAttempts(t *testing.T) {
	clock := newFakeClock(2)
	sweeps := 0
	sweep := func(ctx context.Context, running func() bool) SweepResult {
		sweeps++
		return SweepResult{Attempts: 3, Successes: 2}
	}

	cfg := SchedulerConfig{Interval: 4 * time.Hour, Jitter: 20 * time.Minute}
	s := newTestScheduler(sweep, cfg, clock, fixedRand(0))

	s.Run(context.Background())

	require.Equal(t, 3, sweeps)
	require.Len(t, clock.sleeps, 3)
	state := s.State()
	require.Equal(t, 9, state.TotalAttempts)
	require.Equal(t, 6, state.SuccessCount)
	require.False(t, state.Running)
	require.True(t, state.NextRunAt.IsZero())
}

func TestRunPublishesNextRunAt(t *testing.T) {
	clock := newFakeClock(0)
	var observed time.Time
	s := newTestScheduler(func(ctx context.Context, running func() bool) SweepResult {
		return SweepResult{}
	}, SchedulerConfig{Interval: time.Hour, Jitter: 0}, clock, fixedRand(0))

	// Capture NextRunAt from inside the final sleep, before the
	// deferred reset wipes it.
	base := clock.Sleep
	s.sleep = func(ctx context.Context, d time.Duration) bool {
		observed = s.State().NextRunAt
		return base(ctx, d)
	}

	start := clock.Now()
	s.Run(context.Background())

	require.Equal(t, start.Add(time.Hour), observed)
}

func TestRunOnceDoesNotReschedule(t *testing.T) {
	clock := newFakeClock(5)
	sweeps := 0
	s := newTestScheduler(func(ctx context.Context, running func() bool) SweepResult {
		sweeps++
		return SweepResult{Attempts: 1, Successes: 1}
	}, SchedulerConfig{Interval: time.Hour}, clock, fixedRand(0))

	result := s.RunOnce(context.Background())

	require.Equal(t, 1, sweeps)
	require.Empty(t, clock.sleeps)
	require.Equal(t, 1, result.Attempts)
	require.Equal(t, 1, s.State().TotalAttempts)
}

func TestStopEndsLoopAtSweepBoundary(t *testing.T) {
	clock := newFakeClock(100)
	s := newTestScheduler(nil, SchedulerConfig{Interval: time.Hour}, clock, fixedRand(0))
	s.sweep = func(ctx context.Context, running func() bool) SweepResult {
		s.Stop()
		return SweepResult{Attempts: 1}
	}

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	require.False(t, s.State().Running)
	require.Equal(t, 1, s.State().TotalAttempts)
}

func TestStopLeavesSweepContextIntact(t *testing.T) {
	clock := newFakeClock(100)
	s := newTestScheduler(nil, SchedulerConfig{Interval: time.Hour}, clock, fixedRand(0))

	// Stop lands while a listing is in flight; the sweep's context
	// must stay live so the request can finish, only the loop exits
	// at the next boundary.
	var ctxErrAfterStop error
	s.sweep = func(ctx context.Context, running func() bool) SweepResult {
		s.Stop()
		ctxErrAfterStop = ctx.Err()
		require.False(t, running())
		return SweepResult{Attempts: 1}
	}

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	require.NoError(t, ctxErrAfterStop)
	require.Equal(t, 1, s.State().TotalAttempts)
}

func TestSchedulerDefaultsBetweenPause(t *testing.T) {
	s := newScheduler("test", SchedulerConfig{Interval: time.Hour}, nil)
	require.Equal(t, 2*time.Second, s.cfg.BetweenMin)
	require.Equal(t, 6*time.Second, s.cfg.BetweenMax)
}

func TestStopCancelsPendingSleep(t *testing.T) {
	s := newScheduler("test", SchedulerConfig{Interval: time.Hour}, func(ctx context.Context, running func() bool) SweepResult {
		return SweepResult{}
	})
	s.randInt = fixedRand(0)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		return s.State().Running
	}, 5*time.Second, 10*time.Millisecond)

	s.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not interrupt the sleep")
	}
}
