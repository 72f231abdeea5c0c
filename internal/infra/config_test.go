package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "maker.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
trading:
  mode: "PAPER"
  markets:
    - pair: "BTC-USDT"
      price_step: "0.01"
      amount_step: "0.0001"
      min_amount: "0.001"
  spread: "0.01"
  refresh_interval_secs: 30
  refresh_tolerance: "0.02"
  volatility_interval: 60
  volatility_window_count: 3
  market_budget_usd: "1000"
venue:
  name: "paper"
  maker_fee_pct: "0.001"
  taker_fee_pct: "0.002"
`

func TestLoadConfig_ValidWithDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.TickInterval() != time.Second {
		t.Errorf("tick interval = %v, want default 1s", cfg.TickInterval())
	}
	if cfg.GraceDelay() != 100*time.Millisecond {
		t.Errorf("grace delay = %v, want default 100ms", cfg.GraceDelay())
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level = %q, want default info", cfg.Logging.Level)
	}
	if len(cfg.Venue.StableAssets) != 1 || cfg.Venue.StableAssets[0] != "USDT" {
		t.Errorf("stable assets = %v, want default [USDT]", cfg.Venue.StableAssets)
	}
}

func TestLoadConfig_DecimalGetters(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !cfg.SpreadDec().Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("spread = %s, want 0.01", cfg.SpreadDec())
	}
	rules := cfg.TradingRules()
	rule, ok := rules["BTC-USDT"]
	if !ok {
		t.Fatal("missing trading rule for BTC-USDT")
	}
	if !rule.MinAmount.Equal(decimal.RequireFromString("0.001")) {
		t.Errorf("min amount = %s, want 0.001", rule.MinAmount)
	}
}

func TestLoadConfig_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("MAKER_VENUE_KEY", "env-key")
	t.Setenv("MAKER_VENUE_SECRET", "env-secret")

	cfg, err := LoadConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Venue.AccessKey != "env-key" || cfg.Venue.SecretKey != "env-secret" {
		t.Errorf("env override failed: key=%q secret=%q",
			cfg.Venue.AccessKey, cfg.Venue.SecretKey)
	}
}

func TestLoadConfig_RejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"unknown mode", `
trading:
  mode: "YOLO"
  markets:
    - {pair: "BTC-USDT", price_step: "0.01", amount_step: "0.01", min_amount: "0.01"}
  spread: "0.01"
  refresh_interval_secs: 30
  refresh_tolerance: "0.02"
  volatility_interval: 60
  volatility_window_count: 3
  market_budget_usd: "1000"
venue: {maker_fee_pct: "0", taker_fee_pct: "0"}
`},
		{"no markets", `
trading:
  mode: "PAPER"
  markets: []
  spread: "0.01"
  refresh_interval_secs: 30
  refresh_tolerance: "0.02"
  volatility_interval: 60
  volatility_window_count: 3
  market_budget_usd: "1000"
venue: {maker_fee_pct: "0", taker_fee_pct: "0"}
`},
		{"bad pair", `
trading:
  mode: "PAPER"
  markets:
    - {pair: "BTCUSDT", price_step: "0.01", amount_step: "0.01", min_amount: "0.01"}
  spread: "0.01"
  refresh_interval_secs: 30
  refresh_tolerance: "0.02"
  volatility_interval: 60
  volatility_window_count: 3
  market_budget_usd: "1000"
venue: {maker_fee_pct: "0", taker_fee_pct: "0"}
`},
		{"bad decimal", `
trading:
  mode: "PAPER"
  markets:
    - {pair: "BTC-USDT", price_step: "0.01", amount_step: "0.01", min_amount: "0.01"}
  spread: "one percent"
  refresh_interval_secs: 30
  refresh_tolerance: "0.02"
  volatility_interval: 60
  volatility_window_count: 3
  market_budget_usd: "1000"
venue: {maker_fee_pct: "0", taker_fee_pct: "0"}
`},
		{"negative spread", `
trading:
  mode: "PAPER"
  markets:
    - {pair: "BTC-USDT", price_step: "0.01", amount_step: "0.01", min_amount: "0.01"}
  spread: "-0.01"
  refresh_interval_secs: 30
  refresh_tolerance: "0.02"
  volatility_interval: 60
  volatility_window_count: 3
  market_budget_usd: "1000"
venue: {maker_fee_pct: "0", taker_fee_pct: "0"}
`},
		{"missing refresh interval", `
trading:
  mode: "PAPER"
  markets:
    - {pair: "BTC-USDT", price_step: "0.01", amount_step: "0.01", min_amount: "0.01"}
  spread: "0.01"
  refresh_tolerance: "0.02"
  volatility_interval: 60
  volatility_window_count: 3
  market_budget_usd: "1000"
venue: {maker_fee_pct: "0", taker_fee_pct: "0"}
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tc.body)); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
