package automation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"lotkeeper/lib/logsink"
	"lotkeeper/lib/scrapers/market"
)

// StatsFetcher is the slice of the market stats aggregator this
// automation drives.
type StatsFetcher interface {
	Fetch(ctx context.Context, maxPages int) (market.Stats, error)
}

type StatsConfig struct {
	SchedulerConfig
	MaxPages int
}

// StatsAutomation refreshes account statistics on a slow timer and
// keeps the latest snapshot for the shell to display. It never feeds
// mutation decisions.
type StatsAutomation struct {
	cfg        StatsConfig
	newSession func(goldenKey string) (StatsFetcher, error)

	mu        sync.Mutex
	goldenKey string
	session   StatsFetcher
	latest    market.Stats
	logger    *slog.Logger

	*scheduler
}

func NewStatsAutomation(cfg StatsConfig, newSession func(goldenKey string) (StatsFetcher, error)) *StatsAutomation {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 3
	}
	a := &StatsAutomation{
		cfg:        cfg,
		newSession: newSession,
		latest:     market.PlaceholderStats(),
		logger:     slog.Default(),
	}
	a.scheduler = newScheduler(a.Name(), cfg.SchedulerConfig, a.sweepOnce)
	return a
}

func (a *StatsAutomation) Name() string {
	return "stats"
}

func (a *StatsAutomation) Activate(goldenKey string, _ []string) error {
	if goldenKey == "" {
		return fmt.Errorf("golden key is empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if goldenKey == a.goldenKey && a.session != nil {
		return nil
	}

	session, err := a.newSession(goldenKey)
	if err != nil {
		return fmt.Errorf("build session: %w", err)
	}
	a.goldenKey = goldenKey
	a.session = session
	return nil
}

func (a *StatsAutomation) BindLog(sink *logsink.Sink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger = slog.New(logsink.NewHandler(sink, slog.LevelInfo))
}

func (a *StatsAutomation) Run(ctx context.Context) {
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

// Latest returns the most recent snapshot; a placeholder until the
// first fetch lands.
func (a *StatsAutomation) Latest() market.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest
}

func (a *StatsAutomation) sweepOnce(ctx context.Context, running func() bool) SweepResult {
	a.mu.Lock()
	session := a.session
	logger := a.logger
	a.mu.Unlock()

	result := SweepResult{}
	if session == nil || !running() {
		return result
	}

	stats, err := session.Fetch(ctx, a.cfg.MaxPages)
	result.Attempts++
	if err != nil {
		logger.Error("statistics fetch failed", "automation", a.Name(), "err", err)
		return result
	}
	result.Successes++

	a.mu.Lock()
	a.latest = stats
	a.mu.Unlock()

	if stats.Placeholder {
		logger.Warn("statistics unavailable, showing placeholder",
			"automation", a.Name())
	} else {
		logger.Info("statistics refreshed", "automation", a.Name(),
			"sales_all", stats.Sales.All.Count,
			"refunds_all", stats.Refunds.All.Count,
			"new_orders", stats.NewOrders)
	}
	return result
}
