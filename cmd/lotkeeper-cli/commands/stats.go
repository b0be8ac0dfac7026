package commands

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"lotkeeper/lib/scrapers/market"
	"lotkeeper/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statsPages *int

func init() {
	statsPages = statsCmd.Flags().Int("pages", 3, "How many order history pages to scrape.")
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats [--pages <n>]",
	Short: "Scrapes the account's order history and balances and prints rollups.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		client := createClient(cfg)

		aggregator, err := market.NewStatsAggregator(client, market.StatsOptions{})
		if err != nil {
			serviceutil.Fatal("failed to initialize aggregator", err)
		}
		stats, err := aggregator.Fetch(cmd.Context(), *statsPages)
		if err != nil {
			serviceutil.Fatal("failed to fetch statistics", err)
		}
		if stats.Placeholder {
			fmt.Println("statistics are unavailable right now")
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Window", "Sales", "Sales Total", "Refunds", "Refunds Total"})

		for _, row := range []struct {
			name           string
			sales, refunds market.Bucket
		}{
			{"24h", stats.Sales.Day, stats.Refunds.Day},
			{"7d", stats.Sales.Week, stats.Refunds.Week},
			{"30d", stats.Sales.Month, stats.Refunds.Month},
			{"all", stats.Sales.All, stats.Refunds.All},
		} {
			t.AppendRow(table.Row{
				row.name,
				row.sales.Count, formatMoney(row.sales.Total),
				row.refunds.Count, formatMoney(row.refunds.Total),
			})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()

		fmt.Printf("balances: %s (~%.2f RUB)\n", formatMoney(stats.Balances), stats.ApproxTotalRub)
		fmt.Printf("new orders this fetch: %d\n", stats.NewOrders)
	},
}

func formatMoney(m market.Money) string {
	if len(m) == 0 {
		return "-"
	}
	currencies := make([]string, 0, len(m))
	for currency := range m {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)

	parts := make([]string, 0, len(currencies))
	for _, currency := range currencies {
		parts = append(parts, fmt.Sprintf("%.2f %s", m[currency], currency))
	}
	return strings.Join(parts, ", ")
}
