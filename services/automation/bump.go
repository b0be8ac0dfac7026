package automation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"lotkeeper/lib/logsink"
	"lotkeeper/lib/scrapers/market"
)

// Bumper is the slice of the market client the bump sweep needs.
type Bumper interface {
	Bump(ctx context.Context, nodeID string) market.Outcome
}

type BumpConfig struct {
	SchedulerConfig
}

// BumpAutomation sweeps the configured categories in order, one
// attempt per category per sweep.
type BumpAutomation struct {
	cfg        BumpConfig
	newSession func(goldenKey string) (Bumper, error)

	mu        sync.Mutex
	goldenKey string
	nodeIDs   []string
	session   Bumper
	logger    *slog.Logger

	*scheduler
}

func NewBumpAutomation(cfg BumpConfig, newSession func(goldenKey string) (Bumper, error)) *BumpAutomation {
	a := &BumpAutomation{
		cfg:        cfg,
		newSession: newSession,
		logger:     slog.Default(),
	}
	a.scheduler = newScheduler(a.Name(), cfg.SchedulerConfig, a.sweepOnce)
	return a
}

func (a *BumpAutomation) Name() string {
	return "autobump"
}

// Activate snapshots the working set and (re)builds the session when
// the credential changed. Safe to call repeatedly; a start with an
// empty working set is rejected before any network call happens.
func (a *BumpAutomation) Activate(goldenKey string, nodeIDs []string) error {
	if goldenKey == "" {
		return fmt.Errorf("golden key is empty")
	}
	if len(nodeIDs) == 0 {
		return fmt.Errorf("no categories configured")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if goldenKey == a.goldenKey && slices.Equal(nodeIDs, a.nodeIDs) && a.session != nil {
		return nil
	}

	session, err := a.newSession(goldenKey)
	if err != nil {
		return fmt.Errorf("build session: %w", err)
	}
	a.goldenKey = goldenKey
	a.nodeIDs = slices.Clone(nodeIDs)
	a.session = session
	return nil
}

func (a *BumpAutomation) BindLog(sink *logsink.Sink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger = slog.New(logsink.NewHandler(sink, slog.LevelInfo))
}

func (a *BumpAutomation) Run(ctx context.Context) {
	a.mu.Lock()
	activated := a.session != nil
	logger := a.logger
	a.mu.Unlock()

	if !activated {
		logger.Error("start rejected: automation was never activated",
			"automation", a.Name())
		return
	}
	a.scheduler.Run(ctx)
}

// sweepOnce attempts every configured category in list order. A
// failure on one category never aborts the rest; the stop flag is
// consulted only at category boundaries.
func (a *BumpAutomation) sweepOnce(ctx context.Context, running func() bool) SweepResult {
	a.mu.Lock()
	session := a.session
	nodeIDs := slices.Clone(a.nodeIDs)
	logger := a.logger
	a.mu.Unlock()

	result := SweepResult{}
	if session == nil {
		return result
	}

	for i, nodeID := range nodeIDs {
		if ctx.Err() != nil || !running() {
			logger.Info("sweep stopped early", "automation", a.Name(),
				"done", i, "of", len(nodeIDs))
			break
		}

		outcome := session.Bump(ctx, nodeID)
		result.Attempts++
		switch outcome.Kind {
		case market.OutcomeSuccess:
			result.Successes++
		case market.OutcomeMustWait:
			if outcome.Wait > result.MaxWait {
				result.MaxWait = outcome.Wait
			}
		}
		logOutcome(logger, a.Name(), nodeID, outcome)

		if i < len(nodeIDs)-1 {
			a.pauseBetween(ctx)
		}
	}
	return result
}
