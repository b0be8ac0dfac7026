package commands

import (
	"context"
	"fmt"
	"os"

	"lotkeeper/lib/configutil"
	"lotkeeper/lib/scrapers/market"
	"lotkeeper/lib/serviceutil"

	"github.com/spf13/cobra"
)

type PlusSection struct {
	BaseUrl     string `json:"base_url"`
	AccessToken string `json:"access_token"`
}

type Config struct {
	GoldenKey string      `json:"golden_key"`
	BaseUrl   string      `json:"base_url"`
	NodeIds   []string    `json:"node_ids"`
	Plus      PlusSection `json:"plus"`
}

var rootCmd = &cobra.Command{
	Use:   "lotkeeper-cli",
	Short: "lotkeeper-cli runs one-off marketplace sweeps and queries from the terminal.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readConfig() Config {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if cfg.GoldenKey == "" {
		serviceutil.Fatal("failed to read config", fmt.Errorf("golden_key is empty"))
	}
	return cfg
}

func createClient(cfg Config) *market.Client {
	client, err := market.NewClient(market.ClientOptions{
		BaseURL:   cfg.BaseUrl,
		GoldenKey: cfg.GoldenKey,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize market client", err)
	}
	return client
}
