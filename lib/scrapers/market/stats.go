package market

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"lotkeeper/lib/durationtext"
	"lotkeeper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/codes"
)

const ordersPath = "/orders/trade"
const balancePath = "/account/balance"

// approximate conversion rates into rubles, used only for the single
// informational total; deliberately hardcoded, never consulted by any
// mutation decision.
var approxRatesToRub = map[string]float64{
	"₽":   1,
	"руб": 1,
	"$":   90,
	"€":   100,
}

type Money map[string]float64

func (m Money) add(currency string, amount float64) {
	m[currency] += amount
}

type Bucket struct {
	Count int
	Total Money
}

func newBucket() Bucket {
	return Bucket{Total: Money{}}
}

func (b *Bucket) add(currency string, amount float64) {
	b.Count++
	b.Total.add(currency, amount)
}

// WindowSet rolls a class of orders up by recency window. Windows
// nest: an order in Day is also in Week, Month and All.
type WindowSet struct {
	Day   Bucket
	Week  Bucket
	Month Bucket
	All   Bucket
}

func newWindowSet() WindowSet {
	return WindowSet{
		Day:   newBucket(),
		Week:  newBucket(),
		Month: newBucket(),
		All:   newBucket(),
	}
}

func (w *WindowSet) add(age time.Duration, currency string, amount float64) {
	if age <= 24*time.Hour {
		w.Day.add(currency, amount)
	}
	if age <= 7*24*time.Hour {
		w.Week.add(currency, amount)
	}
	if age <= 30*24*time.Hour {
		w.Month.add(currency, amount)
	}
	w.All.add(currency, amount)
}

type Stats struct {
	Sales   WindowSet
	Refunds WindowSet

	Balances Money
	// ApproxTotalRub converts balances with the hardcoded rates above.
	// Informational only.
	ApproxTotalRub float64

	// NewOrders counts orders first seen by this aggregator, deduped
	// across overlapping fetch windows by order id.
	NewOrders int

	// Placeholder is set when the aggregate fetch failed and the
	// result set is a stand-in rather than scraped data.
	Placeholder bool
}

// PlaceholderStats is what the embedding shell gets when the account
// pages cannot be fetched at all; it must render like an empty result,
// not crash the display layer.
func PlaceholderStats() Stats {
	return Stats{
		Sales:       newWindowSet(),
		Refunds:     newWindowSet(),
		Balances:    Money{},
		Placeholder: true,
	}
}

// SeenLedger is an optional durable dedup store keyed by order id.
type SeenLedger interface {
	Seen(ctx context.Context, orderID string) (bool, error)
	MarkSeen(ctx context.Context, orderID string) error
}

type StatsAggregator struct {
	client *Client
	seen   *lru.Cache[string, struct{}]
	ledger SeenLedger
}

type StatsOptions struct {
	// Ledger makes first-seen tracking survive restarts. Optional; an
	// in-memory cache backs it either way.
	Ledger SeenLedger
}

func NewStatsAggregator(client *Client, opts StatsOptions) (*StatsAggregator, error) {
	seen, err := lru.New[string, struct{}](4096)
	if err != nil {
		return nil, err
	}
	return &StatsAggregator{
		client: client,
		seen:   seen,
		ledger: opts.Ledger,
	}, nil
}

// Fetch scrapes up to maxPages of order history plus the balance page
// and produces rollups. A malformed row is skipped, it never aborts
// the rest; a failed aggregate fetch degrades to PlaceholderStats.
func (s *StatsAggregator) Fetch(ctx context.Context, maxPages int) (Stats, error) {
	ctx, span := tracer.Start(ctx, "stats:Fetch")
	defer span.End()

	if maxPages <= 0 {
		maxPages = 1
	}

	stats := Stats{
		Sales:    newWindowSet(),
		Refunds:  newWindowSet(),
		Balances: Money{},
	}
	// order ids repeat when page boundaries shift mid-fetch
	fetchSeen := map[string]bool{}

	path := ordersPath
	for pageNo := 0; pageNo < maxPages && path != ""; pageNo++ {
		page, err := s.client.FetchPage(ctx, path, FetchOptions{})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch order history")
			if pageNo == 0 {
				slog.WarnContext(ctx, "order history unavailable, serving placeholder stats", "err", err)
				return PlaceholderStats(), nil
			}
			// partial history is still useful
			break
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
		if err != nil {
			span.RecordError(err)
			break
		}

		doc.Find("a.tc-item").Each(func(_ int, row *goquery.Selection) {
			s.tallyRow(ctx, row, fetchSeen, &stats)
		})

		path = doc.Find("a.page-link-next").AttrOr("href", "")
	}

	s.fetchBalances(ctx, &stats)

	return stats, nil
}

func (s *StatsAggregator) tallyRow(ctx context.Context, row *goquery.Selection, fetchSeen map[string]bool, stats *Stats) {
	orderID := strings.TrimPrefix(htmlutil.CleanText(row.Find(".tc-order").Text()), "#")
	if orderID == "" || fetchSeen[orderID] {
		return
	}
	fetchSeen[orderID] = true

	status := classifyStatus(row.Find(".tc-status").Text())
	if status == orderPending {
		return
	}

	amount, currency, ok := parsePrice(row.Find(".tc-price").Text())
	if !ok {
		// one bad row must not spoil the aggregation
		slog.DebugContext(ctx, "skipping malformed order row", "order", orderID)
		return
	}

	age := durationtext.Parse(row.Find(".tc-date").Text())

	switch status {
	case orderSale:
		stats.Sales.add(age, currency, amount)
	case orderRefund:
		stats.Refunds.add(age, currency, amount)
	}

	if s.firstSeen(ctx, orderID) {
		stats.NewOrders++
	}
}

func (s *StatsAggregator) firstSeen(ctx context.Context, orderID string) bool {
	if s.ledger != nil {
		seen, err := s.ledger.Seen(ctx, orderID)
		if err == nil && seen {
			return false
		}
		err = s.ledger.MarkSeen(ctx, orderID)
		if err != nil {
			slog.WarnContext(ctx, "failed to persist seen order", "order", orderID, "err", err)
		}
	}
	if s.seen.Contains(orderID) {
		return false
	}
	s.seen.Add(orderID, struct{}{})
	return true
}

func (s *StatsAggregator) fetchBalances(ctx context.Context, stats *Stats) {
	page, err := s.client.FetchPage(ctx, balancePath, FetchOptions{})
	if err != nil {
		slog.WarnContext(ctx, "balance page unavailable", "err", err)
		return
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return
	}

	doc.Find(".balances-item .balances-value").Each(func(_ int, value *goquery.Selection) {
		amount, currency, ok := parsePrice(value.Text())
		if !ok {
			return
		}
		stats.Balances.add(currency, amount)
	})

	for currency, amount := range stats.Balances {
		rate, ok := approxRatesToRub[currency]
		if !ok {
			continue
		}
		stats.ApproxTotalRub += amount * rate
	}
}

type orderStatus int

const (
	orderSale orderStatus = iota
	orderRefund
	orderPending
)

var refundMarkers = []string{"возврат", "refund"}
var pendingMarkers = []string{"оплачен", "ожидает", "paid", "pending"}
var saleMarkers = []string{"закрыт", "closed", "complete"}

// classifyStatus maps a row's status text into a bucket class.
// Anything unrecognized lands in pending, which is excluded from every
// bucket: better to undercount than to misfile.
func classifyStatus(text string) orderStatus {
	lowered := strings.ToLower(htmlutil.CleanText(text))
	for _, marker := range refundMarkers {
		if strings.Contains(lowered, marker) {
			return orderRefund
		}
	}
	for _, marker := range saleMarkers {
		if strings.Contains(lowered, marker) {
			return orderSale
		}
	}
	for _, marker := range pendingMarkers {
		if strings.Contains(lowered, marker) {
			return orderPending
		}
	}
	return orderPending
}

var priceRegex = regexp.MustCompile(`([0-9][0-9 \x{00a0}\x{202f}]*(?:[.,][0-9]+)?)\s*([^\s0-9]+)`)

// parsePrice splits "1 234.56 ₽" into amount and currency symbol.
// Amounts stay per-currency; nothing here converts.
func parsePrice(text string) (float64, string, bool) {
	cleaned := htmlutil.CleanText(text)
	groups := priceRegex.FindStringSubmatch(cleaned)
	if len(groups) < 3 {
		return 0, "", false
	}

	number := groups[1]
	for _, sep := range []string{" ", " ", " "} {
		number = strings.ReplaceAll(number, sep, "")
	}
	number = strings.ReplaceAll(number, ",", ".")

	amount, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, "", false
	}

	// "руб." must land on the "руб" rate key
	currency := strings.TrimRight(strings.TrimSpace(groups[2]), ".,")
	if currency == "" {
		return 0, "", false
	}
	return amount, currency, true
}
