package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"lotkeeper/lib/logsink"
	"lotkeeper/lib/scrapers/market"

	"github.com/stretchr/testify/require"
)

type restockCall struct {
	ref market.ListingRef
	req market.RestockRequest
}

// fakeRestocker reports scripted quantities and records every refill
// submission.
type fakeRestocker struct {
	quantities map[string]int
	qtyErrs    map[string]error
	restocks   []restockCall
}

func (f *fakeRestocker) OfferQuantity(_ context.Context, ref market.ListingRef) (int, error) {
	if err, ok := f.qtyErrs[ref.String()]; ok {
		return 0, err
	}
	return f.quantities[ref.String()], nil
}

func (f *fakeRestocker) Restock(_ context.Context, ref market.ListingRef, req market.RestockRequest) market.Outcome {
	f.restocks = append(f.restocks, restockCall{ref: ref, req: req})
	return market.Success("saved")
}

func newRestockFixture(t *testing.T, session *fakeRestocker, lots []RestockLot) *RestockAutomation {
	t.Helper()

	a := NewRestockAutomation(RestockConfig{
		SchedulerConfig: SchedulerConfig{Interval: time.Hour, Jitter: 10 * time.Minute},
		Lots:            lots,
	}, func(goldenKey string) (Restocker, error) {
		return session, nil
	})
	require.NoError(t, a.Activate("test-golden-key", nil))
	a.randInt = fixedRand(0)
	a.sleep = func(ctx context.Context, d time.Duration) bool { return true }
	return a
}

func TestRestockRefillsBelowThreshold(t *testing.T) {
	session := &fakeRestocker{quantities: map[string]int{
		"11/500": 1,
		"11/501": 8,
	}}
	a := newRestockFixture(t, session, []RestockLot{
		{NodeID: "11", OfferID: "500", MinQuantity: 5, UnitText: "KEY-1", RefillTo: 10, AutoDelivery: true, Activate: true},
		{NodeID: "11", OfferID: "501", MinQuantity: 5, UnitText: "KEY-2", RefillTo: 10},
	})

	result := a.RunOnce(context.Background())

	// Only the lot under its threshold is touched.
	require.Len(t, session.restocks, 1)
	call := session.restocks[0]
	require.Equal(t, "11/500", call.ref.String())
	require.Equal(t, "KEY-1", call.req.UnitText)
	require.Equal(t, 10, call.req.Quantity)
	require.True(t, call.req.AutoDelivery)
	require.True(t, call.req.Activate)

	require.Equal(t, 1, result.Attempts)
	require.Equal(t, 1, result.Successes)
}

func TestRestockQuantityErrorDoesNotAbortSweep(t *testing.T) {
	session := &fakeRestocker{
		quantities: map[string]int{"11/501": 0},
		qtyErrs:    map[string]error{"11/500": errors.New("edit form not found")},
	}
	a := newRestockFixture(t, session, []RestockLot{
		{NodeID: "11", OfferID: "500", MinQuantity: 5, UnitText: "KEY-1", RefillTo: 10},
		{NodeID: "11", OfferID: "501", MinQuantity: 5, UnitText: "KEY-2", RefillTo: 10},
	})

	sink := logsink.NewSink(64)
	a.BindLog(sink)

	result := a.RunOnce(context.Background())

	// The failed read counts as an attempt; the second lot still
	// gets its refill.
	require.Equal(t, 2, result.Attempts)
	require.Equal(t, 1, result.Successes)
	require.Len(t, session.restocks, 1)
	require.Equal(t, "11/501", session.restocks[0].ref.String())

	var errorLines int
	for _, entry := range sink.Entries() {
		if entry.Severity == logsink.SeverityError {
			errorLines++
		}
	}
	require.Equal(t, 1, errorLines)
}

func TestRestockPausesBetweenLots(t *testing.T) {
	session := &fakeRestocker{quantities: map[string]int{
		"11/500": 0,
		"11/501": 0,
	}}
	a := newRestockFixture(t, session, []RestockLot{
		{NodeID: "11", OfferID: "500", MinQuantity: 5, UnitText: "KEY-1", RefillTo: 10},
		{NodeID: "11", OfferID: "501", MinQuantity: 5, UnitText: "KEY-2", RefillTo: 10},
	})

	var pauses []time.Duration
	a.sleep = func(ctx context.Context, d time.Duration) bool {
		pauses = append(pauses, d)
		return true
	}

	a.RunOnce(context.Background())

	require.Len(t, session.restocks, 2)
	require.Len(t, pauses, 1)
	require.GreaterOrEqual(t, pauses[0], a.scheduler.cfg.BetweenMin)
	require.LessOrEqual(t, pauses[0], a.scheduler.cfg.BetweenMax)
}

func TestRestockActivateValidation(t *testing.T) {
	a := NewRestockAutomation(RestockConfig{}, func(goldenKey string) (Restocker, error) {
		return &fakeRestocker{}, nil
	})
	require.Error(t, a.Activate("key", nil), "empty lot list must be rejected")

	a = NewRestockAutomation(RestockConfig{
		Lots: []RestockLot{{NodeID: "11", OfferID: "500", MinQuantity: 1, UnitText: "KEY", RefillTo: 5}},
	}, func(goldenKey string) (Restocker, error) {
		return &fakeRestocker{}, nil
	})
	require.Error(t, a.Activate("", nil))
	require.NoError(t, a.Activate("key", nil))
}

func TestStatsAutomationKeepsLatestSnapshot(t *testing.T) {
	fetches := 0
	a := NewStatsAutomation(StatsConfig{
		SchedulerConfig: SchedulerConfig{Interval: time.Hour},
	}, func(goldenKey string) (StatsFetcher, error) {
		return statsFetcherFunc(func(ctx context.Context, maxPages int) (market.Stats, error) {
			fetches++
			stats := market.PlaceholderStats()
			stats.Placeholder = false
			stats.NewOrders = 7
			return stats, nil
		}), nil
	})
	require.NoError(t, a.Activate("test-golden-key", nil))

	require.True(t, a.Latest().Placeholder, "placeholder until the first fetch")

	result := a.RunOnce(context.Background())

	require.Equal(t, 1, fetches)
	require.Equal(t, 1, result.Attempts)
	require.Equal(t, 1, result.Successes)
	require.False(t, a.Latest().Placeholder)
	require.Equal(t, 7, a.Latest().NewOrders)
}

func TestStatsAutomationKeepsOldSnapshotOnError(t *testing.T) {
	var fail bool
	a := NewStatsAutomation(StatsConfig{
		SchedulerConfig: SchedulerConfig{Interval: time.Hour},
	}, func(goldenKey string) (StatsFetcher, error) {
		return statsFetcherFunc(func(ctx context.Context, maxPages int) (market.Stats, error) {
			if fail {
				return market.Stats{}, errors.New("fetch orders page: HTTP 500")
			}
			stats := market.PlaceholderStats()
			stats.Placeholder = false
			stats.NewOrders = 3
			return stats, nil
		}), nil
	})
	require.NoError(t, a.Activate("test-golden-key", nil))

	a.RunOnce(context.Background())
	require.Equal(t, 3, a.Latest().NewOrders)

	fail = true
	result := a.RunOnce(context.Background())

	require.Equal(t, 1, result.Attempts)
	require.Zero(t, result.Successes)
	require.Equal(t, 3, a.Latest().NewOrders, "snapshot survives a failed refresh")
}

type statsFetcherFunc func(ctx context.Context, maxPages int) (market.Stats, error)

func (f statsFetcherFunc) Fetch(ctx context.Context, maxPages int) (market.Stats, error) {
	return f(ctx, maxPages)
}

func TestRegistryDispatch(t *testing.T) {
	registry := NewRegistry()

	bump := NewBumpAutomation(BumpConfig{}, func(string) (Bumper, error) { return &fakeBumper{}, nil })
	restock := NewRestockAutomation(RestockConfig{}, func(string) (Restocker, error) { return &fakeRestocker{}, nil })

	require.NoError(t, registry.Register(bump))
	require.NoError(t, registry.Register(restock))
	require.Error(t, registry.Register(bump), "duplicate id must be rejected")

	got, ok := registry.Lookup("autobump")
	require.True(t, ok)
	require.Equal(t, "autobump", got.Name())

	_, ok = registry.Lookup("unknown")
	require.False(t, ok)

	require.Equal(t, []string{"autobump", "autorestock"}, registry.Names())
}
