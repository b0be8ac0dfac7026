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

// Restocker is the slice of the market client the restock sweep needs.
type Restocker interface {
	OfferQuantity(ctx context.Context, ref market.ListingRef) (int, error)
	Restock(ctx context.Context, ref market.ListingRef, req market.RestockRequest) market.Outcome
}

// RestockLot is one listing's refill policy plus the cached input the
// user supplied for it (persisted by the config collaborator).
type RestockLot struct {
	NodeID  string `json:"node_id"`
	OfferID string `json:"offer_id"`
	// MinQuantity triggers a refill whenever the live stock dips
	// below it.
	MinQuantity int `json:"min_qty"`
	// UnitText is one deliverable unit; RefillTo units are submitted.
	UnitText     string `json:"unit_text"`
	RefillTo     int    `json:"refill_to"`
	AutoDelivery bool   `json:"auto_delivery"`
	Activate     bool   `json:"activate"`
}

type RestockConfig struct {
	SchedulerConfig
	Lots []RestockLot
}

// RestockAutomation keeps digital inventory topped up: on each sweep
// it reads every lot's live quantity and refills the ones under their
// threshold.
type RestockAutomation struct {
	cfg        RestockConfig
	newSession func(goldenKey string) (Restocker, error)

	mu        sync.Mutex
	goldenKey string
	session   Restocker
	logger    *slog.Logger

	*scheduler
}

func NewRestockAutomation(cfg RestockConfig, newSession func(goldenKey string) (Restocker, error)) *RestockAutomation {
	a := &RestockAutomation{
		cfg:        cfg,
		newSession: newSession,
		logger:     slog.Default(),
	}
	a.scheduler = newScheduler(a.Name(), cfg.SchedulerConfig, a.sweepOnce)
	return a
}

func (a *RestockAutomation) Name() string {
	return "autorestock"
}

// Activate for restock ignores nodeIDs: the working set is the lot
// list from configuration, which carries per-lot input the bare node
// ids cannot express.
func (a *RestockAutomation) Activate(goldenKey string, _ []string) error {
	if goldenKey == "" {
		return fmt.Errorf("golden key is empty")
	}
	if len(a.cfg.Lots) == 0 {
		return fmt.Errorf("no restock lots configured")
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

func (a *RestockAutomation) BindLog(sink *logsink.Sink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger = slog.New(logsink.NewHandler(sink, slog.LevelInfo))
}

func (a *RestockAutomation) Run(ctx context.Context) {
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

func (a *RestockAutomation) sweepOnce(ctx context.Context, running func() bool) SweepResult {
	a.mu.Lock()
	session := a.session
	lots := slices.Clone(a.cfg.Lots)
	logger := a.logger
	a.mu.Unlock()

	result := SweepResult{}
	if session == nil {
		return result
	}

	for i, lot := range lots {
		if ctx.Err() != nil || !running() {
			break
		}
		if i > 0 {
			a.pauseBetween(ctx)
		}

		ref := market.ListingRef{NodeID: lot.NodeID, OfferID: lot.OfferID}
		qty, err := session.OfferQuantity(ctx, ref)
		if err != nil {
			result.Attempts++
			logOutcome(logger, a.Name(), ref.String(), market.FailureFromErr(err))
			continue
		}
		if qty >= lot.MinQuantity {
			logger.Info("stock sufficient", "automation", a.Name(),
				"lot", ref.String(), "quantity", qty)
			continue
		}

		outcome := session.Restock(ctx, ref, market.RestockRequest{
			UnitText:     lot.UnitText,
			Quantity:     lot.RefillTo,
			AutoDelivery: lot.AutoDelivery,
			Activate:     lot.Activate,
		})
		result.Attempts++
		switch outcome.Kind {
		case market.OutcomeSuccess:
			result.Successes++
		case market.OutcomeMustWait:
			if outcome.Wait > result.MaxWait {
				result.MaxWait = outcome.Wait
			}
		}
		logOutcome(logger, a.Name(), ref.String(), outcome)
	}
	return result
}
