package main

import (
	"time"

	"lotkeeper/services/automation"
)

type BumpSection struct {
	Enabled bool `json:"enabled"`
	// NodeIds are the category pages swept in order.
	NodeIds []string `json:"node_ids"`
	// IntervalMinutes/JitterMinutes shape the sweep schedule.
	IntervalMinutes int `json:"interval_minutes"`
	JitterMinutes   int `json:"jitter_minutes"`
}

type RestockSection struct {
	Enabled         bool                    `json:"enabled"`
	IntervalMinutes int                     `json:"interval_minutes"`
	JitterMinutes   int                     `json:"jitter_minutes"`
	Lots            []automation.RestockLot `json:"lots"`
}

type StatsSection struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"interval_minutes"`
	MaxPages        int  `json:"max_pages"`
}

// AccountState is the mutable working-set document saved next to the
// config so a GUI collaborator can pick it up. Never contains the
// golden key.
type AccountState struct {
	NodeIds     []string                `json:"node_ids"`
	RestockLots []automation.RestockLot `json:"restock_lots"`
	StartedAt   time.Time               `json:"started_at"`
}

type Config struct {
	// GoldenKey is the site session cookie. Treat the config file as
	// a secret when this is set.
	GoldenKey string `json:"golden_key"`
	BaseUrl   string `json:"base_url"`
	// MaxRps caps outgoing request rate per session.
	MaxRps float64 `json:"max_rps"`
	// LedgerPath, when set, persists first-seen order ids across
	// restarts.
	LedgerPath string `json:"ledger_path"`

	Bump    BumpSection    `json:"bump"`
	Restock RestockSection `json:"restock"`
	Stats   StatsSection   `json:"stats"`
}
