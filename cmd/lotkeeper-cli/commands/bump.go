package commands

import (
	"log/slog"
	"time"

	"lotkeeper/lib/scrapers/market"
	"lotkeeper/services/automation"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(bumpCmd)
}

var bumpCmd = &cobra.Command{
	Use:   "bump [node-id...]",
	Short: "Runs a single bump sweep over the given categories (or the configured ones).",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()

		nodeIDs := args
		if len(nodeIDs) == 0 {
			nodeIDs = cfg.NodeIds
		}

		a := automation.NewBumpAutomation(automation.BumpConfig{},
			func(goldenKey string) (automation.Bumper, error) {
				return market.NewClient(market.ClientOptions{
					BaseURL:   cfg.BaseUrl,
					GoldenKey: goldenKey,
				})
			})
		err := a.Activate(cfg.GoldenKey, nodeIDs)
		if err != nil {
			slog.Error("activation failed", "err", err)
			return
		}

		t1 := time.Now()
		result := a.RunOnce(cmd.Context())
		t2 := time.Now()

		slog.Info("sweep done",
			"attempts", result.Attempts,
			"successes", result.Successes,
			"seconds", t2.Sub(t1).Seconds())
		if result.MaxWait > 0 {
			slog.Info("server asked to wait", "wait", result.MaxWait)
		}
	},
}
