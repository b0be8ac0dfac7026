package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"lotkeeper/lib/configutil"
	"lotkeeper/lib/orderledger"
	"lotkeeper/lib/scrapers/market"
	"lotkeeper/lib/serviceutil"
	"lotkeeper/lib/telemetry"
	"lotkeeper/services/automation"
)

func newMarketClient(config Config, goldenKey string) (*market.Client, error) {
	return market.NewClient(market.ClientOptions{
		BaseURL:   config.BaseUrl,
		GoldenKey: goldenKey,
		MaxRPS:    config.MaxRps,
	})
}

func main() {
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if config.GoldenKey == "" {
		serviceutil.Fatal("failed to read config", errors.New("golden_key is empty"))
	}

	t, err := telemetry.SetupFromEnv(ctx, "lotkeeperd")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	var ledger *orderledger.Ledger
	if config.LedgerPath != "" {
		ledger, err = orderledger.Open(config.LedgerPath)
		if err != nil {
			serviceutil.Fatal("failed to open order ledger", err)
		}
		defer ledger.Close()
	}

	registry := automation.NewRegistry()
	register := func(a automation.Automation) {
		err := registry.Register(a)
		if err != nil {
			serviceutil.Fatal("failed to register automation", err)
		}
	}

	bump := automation.NewBumpAutomation(automation.BumpConfig{
		SchedulerConfig: scheduleOf(config.Bump.IntervalMinutes, config.Bump.JitterMinutes, 4*time.Hour),
	}, func(goldenKey string) (automation.Bumper, error) {
		return newMarketClient(config, goldenKey)
	})
	register(bump)

	restock := automation.NewRestockAutomation(automation.RestockConfig{
		SchedulerConfig: scheduleOf(config.Restock.IntervalMinutes, config.Restock.JitterMinutes, time.Hour),
		Lots:            config.Restock.Lots,
	}, func(goldenKey string) (automation.Restocker, error) {
		return newMarketClient(config, goldenKey)
	})
	register(restock)

	stats := automation.NewStatsAutomation(automation.StatsConfig{
		SchedulerConfig: scheduleOf(config.Stats.IntervalMinutes, 0, 6*time.Hour),
		MaxPages:        config.Stats.MaxPages,
	}, func(goldenKey string) (automation.StatsFetcher, error) {
		client, err := newMarketClient(config, goldenKey)
		if err != nil {
			return nil, err
		}
		var seen market.SeenLedger
		if ledger != nil {
			seen = ledger
		}
		return market.NewStatsAggregator(client, market.StatsOptions{Ledger: seen})
	})
	register(stats)

	var wg sync.WaitGroup
	start := func(name string, enabled bool, nodeIDs []string) {
		if !enabled {
			return
		}
		a, ok := registry.Lookup(name)
		if !ok {
			return
		}
		err := a.Activate(config.GoldenKey, nodeIDs)
		if err != nil {
			slog.Error("activation failed", "automation", name, "err", err)
			return
		}
		slog.Info("automation started", "automation", name)
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Run(ctx)
		}()
	}

	start("autobump", config.Bump.Enabled, config.Bump.NodeIds)
	start("autorestock", config.Restock.Enabled, nil)
	start("stats", config.Stats.Enabled, nil)

	configutil.WriteState("state.json", AccountState{
		NodeIds:     config.Bump.NodeIds,
		RestockLots: config.Restock.Lots,
		StartedAt:   time.Now().UTC(),
	})

	<-ctx.Done()
	for _, name := range registry.Names() {
		a, _ := registry.Lookup(name)
		a.Stop()
	}
	wg.Wait()
}

func scheduleOf(intervalMinutes, jitterMinutes int, fallback time.Duration) automation.SchedulerConfig {
	interval := time.Duration(intervalMinutes) * time.Minute
	if interval <= 0 {
		interval = fallback
	}
	return automation.SchedulerConfig{
		Interval: interval,
		Jitter:   time.Duration(jitterMinutes) * time.Minute,
	}
}
