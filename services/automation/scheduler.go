package automation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lotkeeper/lib/scrapers/market"

	"github.com/mazen160/go-random"
)

// minInterval floors the computed delay so a misconfigured interval
// cannot turn the loop into a request hammer.
const minInterval = 10 * time.Minute

type ScheduleState struct {
	Running       bool
	NextRunAt     time.Time
	TotalAttempts int
	SuccessCount  int
}

type SweepResult struct {
	Attempts  int
	Successes int
	// MaxWait is the worst server wait hint seen during the sweep;
	// zero when none was observed.
	MaxWait time.Duration
}

type SchedulerConfig struct {
	// Interval between sweeps when the server gave no wait hint.
	Interval time.Duration
	// Jitter spreads the schedule so sweeps do not land on a
	// detectable fixed cadence. Symmetric ±Jitter/2 around Interval.
	Jitter time.Duration
	// BetweenMin/BetweenMax bound the randomized pause between
	// listings within one sweep.
	BetweenMin time.Duration
	BetweenMax time.Duration
}

// scheduler runs one sweep function on a jittered timer and tracks the
// schedule state the shell displays. Mutated only by its own loop.
type scheduler struct {
	name  string
	cfg   SchedulerConfig
	sweep func(ctx context.Context, running func() bool) SweepResult

	mu        sync.Mutex
	state     ScheduleState
	running   bool
	stopSleep context.CancelFunc

	// injected for tests
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) bool
	randInt func(min, max int) int
}

func newScheduler(name string, cfg SchedulerConfig, sweep func(context.Context, func() bool) SweepResult) *scheduler {
	if cfg.BetweenMin <= 0 {
		cfg.BetweenMin = 2 * time.Second
	}
	if cfg.BetweenMax < cfg.BetweenMin {
		cfg.BetweenMax = cfg.BetweenMin + 4*time.Second
	}
	return &scheduler{
		name:    name,
		cfg:     cfg,
		sweep:   sweep,
		now:     time.Now,
		sleep:   sleepCtx,
		randInt: randIntRange,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func randIntRange(min, max int) int {
	if max <= min {
		return min
	}
	n, err := random.IntRange(min, max+1)
	if err != nil {
		return min
	}
	return n
}

func (s *scheduler) State() ScheduleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *scheduler) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Run executes sweeps until the context ends or Stop is called. The
// stop flag is checked at listing boundaries inside the sweep, never
// mid-request: Stop interrupts only the pending inter-sweep sleep and
// leaves the sweep context intact, so an in-flight listing finishes.
func (s *scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	sleepCtx, stopSleep := context.WithCancel(ctx)
	s.stopSleep = stopSleep
	s.running = true
	s.state.Running = true
	s.mu.Unlock()

	defer func() {
		stopSleep()
		s.mu.Lock()
		s.running = false
		s.state.Running = false
		s.state.NextRunAt = time.Time{}
		s.mu.Unlock()
	}()

	for {
		result := s.sweep(ctx, s.isRunning)

		s.mu.Lock()
		s.state.TotalAttempts += result.Attempts
		s.state.SuccessCount += result.Successes
		s.mu.Unlock()

		if ctx.Err() != nil || !s.isRunning() {
			return
		}

		delay := s.nextDelay(result)
		s.mu.Lock()
		s.state.NextRunAt = s.now().Add(delay)
		s.mu.Unlock()
		slog.Info("sweep finished", "automation", s.name,
			"attempts", result.Attempts, "successes", result.Successes,
			"next_in", delay)

		if !s.sleep(sleepCtx, delay) {
			return
		}
	}
}

// RunOnce performs a single sweep with no rescheduling afterwards.
func (s *scheduler) RunOnce(ctx context.Context) SweepResult {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return SweepResult{}
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	result := s.sweep(ctx, s.isRunning)

	s.mu.Lock()
	s.state.TotalAttempts += result.Attempts
	s.state.SuccessCount += result.Successes
	s.mu.Unlock()

	return result
}

func (s *scheduler) Stop() {
	s.mu.Lock()
	s.running = false
	stopSleep := s.stopSleep
	s.mu.Unlock()
	if stopSleep != nil {
		stopSleep()
	}
}

// nextDelay computes when the next sweep runs. A server wait hint is
// always padded later than the hint itself, never earlier: repeated
// rejections are worse than a late bump.
func (s *scheduler) nextDelay(result SweepResult) time.Duration {
	if result.MaxWait > 0 {
		buffer := time.Duration(s.randInt(2, 5)) * time.Minute
		jitterMax := int(s.cfg.Jitter / time.Minute)
		jitter := time.Duration(s.randInt(0, jitterMax)) * time.Minute
		return result.MaxWait + buffer + jitter
	}

	half := int(s.cfg.Jitter / time.Minute / 2)
	jitter := time.Duration(s.randInt(-half, half)) * time.Minute
	delay := s.cfg.Interval + jitter
	if delay < minInterval {
		delay = minInterval
	}
	return delay
}

// pauseBetween spaces listings within one sweep so submissions do not
// land back-to-back.
func (s *scheduler) pauseBetween(ctx context.Context) {
	spanMillis := int((s.cfg.BetweenMax - s.cfg.BetweenMin) / time.Millisecond)
	pause := s.cfg.BetweenMin + time.Duration(s.randInt(0, spanMillis))*time.Millisecond
	s.sleep(ctx, pause)
}

// logOutcome turns a per-listing outcome into exactly one log line;
// no outcome is ever silent.
func logOutcome(logger *slog.Logger, automation string, subject string, outcome market.Outcome) {
	switch outcome.Kind {
	case market.OutcomeSuccess:
		logger.Info(outcome.Message, "automation", automation, "lot", subject)
	case market.OutcomeMustWait:
		logger.Info("server wait hint", "automation", automation, "lot", subject,
			"wait", outcome.Wait, "msg", outcome.Message)
	default:
		logger.Error(outcome.Message, "automation", automation, "lot", subject)
	}
}
