package commands

import (
	"fmt"

	"lotkeeper/lib/scrapers/market"
	"lotkeeper/lib/serviceutil"

	"github.com/spf13/cobra"
)

var restockUnit *string
var restockCount *int

func init() {
	restockUnit = lotRestockCmd.Flags().String("unit", "", "One deliverable unit of the product.")
	restockCount = lotRestockCmd.Flags().Int("count", 1, "How many units to submit.")

	lotCmd.AddCommand(lotActivateCmd)
	lotCmd.AddCommand(lotDeactivateCmd)
	lotCmd.AddCommand(lotRestockCmd)
	lotCmd.AddCommand(lotDeleteCmd)
	rootCmd.AddCommand(lotCmd)
}

var lotCmd = &cobra.Command{
	Use:   "lot",
	Short: "One-off operations on a single listing.",
}

func lotRef(args []string) market.ListingRef {
	return market.ListingRef{NodeID: args[0], OfferID: args[1]}
}

func printOutcome(outcome market.Outcome) {
	switch outcome.Kind {
	case market.OutcomeSuccess:
		fmt.Println(outcome.Message)
	case market.OutcomeMustWait:
		fmt.Printf("server asked to wait %s: %s\n", outcome.Wait, outcome.Message)
	default:
		serviceutil.Fatal("operation failed", fmt.Errorf("%s", outcome.Message))
	}
}

var lotActivateCmd = &cobra.Command{
	Use:   "activate <node-id> <offer-id>",
	Short: "Turns a listing visible to buyers.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		client := createClient(cfg)
		printOutcome(client.SetActive(cmd.Context(), lotRef(args), true))
	},
}

var lotDeactivateCmd = &cobra.Command{
	Use:   "deactivate <node-id> <offer-id>",
	Short: "Hides a listing from buyers without deleting it.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		client := createClient(cfg)
		printOutcome(client.SetActive(cmd.Context(), lotRef(args), false))
	},
}

var lotRestockCmd = &cobra.Command{
	Use:   "restock <node-id> <offer-id> --unit <text> --count <n>",
	Short: "Replaces a listing's deliverable stock with count copies of unit.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if *restockUnit == "" {
			serviceutil.Fatal("bad argument", fmt.Errorf("--unit must not be empty"))
		}

		cfg := readConfig()
		client := createClient(cfg)
		printOutcome(client.Restock(cmd.Context(), lotRef(args), market.RestockRequest{
			UnitText: *restockUnit,
			Quantity: *restockCount,
			Activate: true,
		}))
	},
}

var lotDeleteCmd = &cobra.Command{
	Use:   "delete <node-id> <offer-id>",
	Short: "Permanently deletes a listing.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		client := createClient(cfg)
		printOutcome(client.Delete(cmd.Context(), lotRef(args)))
	},
}
