package commands

import (
	"fmt"
	"os"

	"lotkeeper/lib/plusapi"
	"lotkeeper/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	cloudCmd.AddCommand(cloudStatusCmd)
	cloudCmd.AddCommand(cloudBumpCmd)
	cloudCmd.AddCommand(cloudRestockCmd)
	cloudCmd.AddCommand(cloudForceCheckCmd)
	rootCmd.AddCommand(cloudCmd)
}

func createPlusClient(cfg Config) *plusapi.Client {
	if cfg.Plus.BaseUrl == "" || cfg.Plus.AccessToken == "" {
		serviceutil.Fatal("failed to read config",
			fmt.Errorf("plus.base_url and plus.access_token must both be set"))
	}
	return plusapi.NewClient(cfg.Plus.BaseUrl, cfg.Plus.AccessToken)
}

var cloudCmd = &cobra.Command{
	Use:   "cloud",
	Short: "Controls the cloud service that runs the same automations server-side.",
}

var cloudStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Prints the cloud autobump and autorestock state.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		client := createPlusClient(cfg)

		bump, err := client.AutoBumpStatus(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch autobump status", err)
		}
		restock, err := client.AutoRestockStatus(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch autorestock status", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Automation", "Active", "Next", "Message"})
		t.AppendRow(table.Row{"autobump", bump.IsActive, bump.NextBump, bump.StatusMessage})
		t.AppendRow(table.Row{"autorestock", restock.Active, restock.NextCheck, restock.Message})
		t.SetStyle(table.StyleRounded)
		t.Render()

		if len(restock.Lots) > 0 {
			lt := table.NewWriter()
			lt.SetOutputMirror(os.Stdout)
			lt.AppendHeader(table.Row{"Node", "Keys In DB"})
			for _, lot := range restock.Lots {
				lt.AppendRow(table.Row{lot.NodeID, lot.KeysInDB})
			}
			lt.SetStyle(table.StyleRounded)
			lt.Render()
		}
	},
}

func parseOnOff(arg string) (bool, error) {
	switch arg {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, fmt.Errorf("expected \"on\" or \"off\", got %q", arg)
}

var cloudBumpCmd = &cobra.Command{
	Use:   "autobump <on|off>",
	Short: "Enables or disables cloud autobump for the configured categories.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		active, err := parseOnOff(args[0])
		if err != nil {
			serviceutil.Fatal("bad argument", err)
		}

		cfg := readConfig()
		client := createPlusClient(cfg)

		ack, err := client.SetAutoBump(cmd.Context(), cfg.GoldenKey, cfg.NodeIds, active)
		if err != nil {
			serviceutil.Fatal("failed to update autobump", err)
		}
		fmt.Println(ack.Message)
	},
}

var cloudRestockCmd = &cobra.Command{
	Use:   "autorestock <on|off>",
	Short: "Enables or disables cloud autorestock.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		active, err := parseOnOff(args[0])
		if err != nil {
			serviceutil.Fatal("bad argument", err)
		}

		cfg := readConfig()
		client := createPlusClient(cfg)

		ack, err := client.SetAutoRestock(cmd.Context(), cfg.GoldenKey, active, nil)
		if err != nil {
			serviceutil.Fatal("failed to update autorestock", err)
		}
		fmt.Println(ack.Message)
	},
}

var cloudForceCheckCmd = &cobra.Command{
	Use:   "force-check",
	Short: "Asks the cloud service to run its checks immediately.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		client := createPlusClient(cfg)

		ack, err := client.ForceCheck(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to trigger check", err)
		}
		fmt.Println(ack.Message)
	},
}
