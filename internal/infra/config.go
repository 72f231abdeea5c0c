package infra

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"maker_go/internal/domain"
)

// MarketConfig configures one tradable pair and its venue quantization
// rules. Decimal-valued fields are strings so that no binary float ever
// touches a price or size.
type MarketConfig struct {
	Pair       string `yaml:"pair"`
	PriceStep  string `yaml:"price_step"`
	AmountStep string `yaml:"amount_step"`
	MinAmount  string `yaml:"min_amount"`
}

// Config holds all application settings. LoadConfig applies env-var
// overrides for secrets after parsing.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode                   string            `yaml:"mode"` // PAPER or REAL
		Markets                []MarketConfig    `yaml:"markets"`
		Spread                 string            `yaml:"spread"`
		RefreshIntervalSecs    int               `yaml:"refresh_interval_secs"`
		RefreshTolerance       string            `yaml:"refresh_tolerance"`
		GraceDelayMs           int               `yaml:"grace_delay_ms"`
		TickIntervalMs         int               `yaml:"tick_interval_ms"`
		VolatilityInterval     int               `yaml:"volatility_interval"` // samples per sub-window
		VolatilityWindowCount  int               `yaml:"volatility_window_count"`
		VolatilityToSpreadMult float64           `yaml:"volatility_to_spread_mult"`
		MarketBudgetUSD        string            `yaml:"market_budget_usd"`
		ReservedBalances       map[string]string `yaml:"reserved_balances"`
	} `yaml:"trading"`

	Venue struct {
		Name         string   `yaml:"name"`
		RestURL      string   `yaml:"rest_url"`
		WSURL        string   `yaml:"ws_url"`
		AccessKey    string   `yaml:"access_key"`
		SecretKey    string   `yaml:"secret_key"`
		MakerFeePct  string   `yaml:"maker_fee_pct"`
		TakerFeePct  string   `yaml:"taker_fee_pct"`
		StableAssets []string `yaml:"stable_assets"`
	} `yaml:"venue"`

	Polling struct {
		MidPriceIntervalMs int `yaml:"mid_price_interval_ms"`
		BalanceIntervalMs  int `yaml:"balance_interval_ms"`
		StatusIntervalSecs int `yaml:"status_interval_secs"`
	} `yaml:"polling"`

	Debug struct {
		Addr string `yaml:"addr"` // pprof + /metrics listener, empty disables
	} `yaml:"debug"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file, applies env overrides and
// defaults, then validates. Invalid configuration is fatal before the tick
// loop starts.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv lets environment variables take precedence over file
// values for secrets.
func overrideWithEnv(cfg *Config) {
	if cfg.Venue.AccessKey != "" || cfg.Venue.SecretKey != "" {
		fmt.Println("WARNING: venue API keys found in config file.")
		fmt.Println("  Recommendation: use MAKER_VENUE_KEY / MAKER_VENUE_SECRET instead.")
	}

	if key := os.Getenv("MAKER_VENUE_KEY"); key != "" {
		cfg.Venue.AccessKey = key
	}
	if secret := os.Getenv("MAKER_VENUE_SECRET"); secret != "" {
		cfg.Venue.SecretKey = secret
	}
}

func (c *Config) applyDefaults() {
	if c.Trading.TickIntervalMs <= 0 {
		c.Trading.TickIntervalMs = 1000
	}
	if c.Trading.GraceDelayMs <= 0 {
		c.Trading.GraceDelayMs = 100
	}
	if c.Polling.MidPriceIntervalMs <= 0 {
		c.Polling.MidPriceIntervalMs = 500
	}
	if c.Polling.BalanceIntervalMs <= 0 {
		c.Polling.BalanceIntervalMs = 2000
	}
	if c.Polling.StatusIntervalSecs <= 0 {
		c.Polling.StatusIntervalSecs = 900
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if len(c.Venue.StableAssets) == 0 {
		c.Venue.StableAssets = []string{"USDT"}
	}
}

// Validate checks configuration validity. Every decimal-valued string must
// parse; every pair must be BASE-QUOTE.
func (c *Config) Validate() error {
	switch c.Trading.Mode {
	case "PAPER", "REAL":
	default:
		return fmt.Errorf("unknown trading mode: %q", c.Trading.Mode)
	}

	if len(c.Trading.Markets) == 0 {
		return fmt.Errorf("at least one market is required")
	}
	seen := make(map[string]bool)
	for _, mc := range c.Trading.Markets {
		if _, err := domain.ParseMarket(mc.Pair); err != nil {
			return err
		}
		if seen[mc.Pair] {
			return fmt.Errorf("duplicate market %q", mc.Pair)
		}
		seen[mc.Pair] = true
		for _, field := range []string{mc.PriceStep, mc.AmountStep, mc.MinAmount} {
			if _, err := decimal.NewFromString(field); err != nil {
				return fmt.Errorf("market %s: bad decimal %q: %w", mc.Pair, field, err)
			}
		}
	}

	decimals := map[string]string{
		"spread":            c.Trading.Spread,
		"refresh_tolerance": c.Trading.RefreshTolerance,
		"market_budget_usd": c.Trading.MarketBudgetUSD,
		"maker_fee_pct":     c.Venue.MakerFeePct,
		"taker_fee_pct":     c.Venue.TakerFeePct,
	}
	for name, v := range decimals {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("bad decimal for %s: %q: %w", name, v, err)
		}
		if d.Sign() < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, d)
		}
	}
	for asset, v := range c.Trading.ReservedBalances {
		if _, err := decimal.NewFromString(v); err != nil {
			return fmt.Errorf("bad reserved balance for %s: %q: %w", asset, v, err)
		}
	}

	if c.Trading.RefreshIntervalSecs <= 0 {
		return fmt.Errorf("refresh_interval_secs must be positive")
	}
	if c.Trading.VolatilityInterval <= 0 || c.Trading.VolatilityWindowCount <= 0 {
		return fmt.Errorf("volatility interval and window count must be positive")
	}

	if c.Trading.Mode == "REAL" && c.Venue.RestURL == "" {
		return fmt.Errorf("venue rest_url is required in REAL mode")
	}

	return nil
}

// SpreadDec returns the configured base spread. Call only after Validate.
func (c *Config) SpreadDec() decimal.Decimal {
	return decimal.RequireFromString(c.Trading.Spread)
}

// RefreshToleranceDec returns the refresh tolerance. Call only after Validate.
func (c *Config) RefreshToleranceDec() decimal.Decimal {
	return decimal.RequireFromString(c.Trading.RefreshTolerance)
}

// MarketBudgetUSDDec returns the per-market USD ceiling. Call only after Validate.
func (c *Config) MarketBudgetUSDDec() decimal.Decimal {
	return decimal.RequireFromString(c.Trading.MarketBudgetUSD)
}

// MakerFeeDec returns the maker fee as a fraction. Call only after Validate.
func (c *Config) MakerFeeDec() decimal.Decimal {
	return decimal.RequireFromString(c.Venue.MakerFeePct)
}

// TakerFeeDec returns the taker fee as a fraction. Call only after Validate.
func (c *Config) TakerFeeDec() decimal.Decimal {
	return decimal.RequireFromString(c.Venue.TakerFeePct)
}

// ReservedBalancesDec returns reserved balances per asset. Call only after Validate.
func (c *Config) ReservedBalancesDec() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(c.Trading.ReservedBalances))
	for asset, v := range c.Trading.ReservedBalances {
		out[asset] = decimal.RequireFromString(v)
	}
	return out
}

// TradingRules returns the per-market quantization rules. Call only after Validate.
func (c *Config) TradingRules() map[string]domain.TradingRule {
	rules := make(map[string]domain.TradingRule, len(c.Trading.Markets))
	for _, mc := range c.Trading.Markets {
		rules[mc.Pair] = domain.TradingRule{
			PriceStep:  decimal.RequireFromString(mc.PriceStep),
			AmountStep: decimal.RequireFromString(mc.AmountStep),
			MinAmount:  decimal.RequireFromString(mc.MinAmount),
		}
	}
	return rules
}

// Markets returns the configured markets. Call only after Validate.
func (c *Config) Markets() []domain.Market {
	markets := make([]domain.Market, 0, len(c.Trading.Markets))
	for _, mc := range c.Trading.Markets {
		m, _ := domain.ParseMarket(mc.Pair)
		markets = append(markets, m)
	}
	return markets
}

// TickInterval returns the decision loop cadence.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Trading.TickIntervalMs) * time.Millisecond
}

// RefreshInterval returns the per-market order refresh interval.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Trading.RefreshIntervalSecs) * time.Second
}

// GraceDelay returns the cancel-to-create serialization delay.
func (c *Config) GraceDelay() time.Duration {
	return time.Duration(c.Trading.GraceDelayMs) * time.Millisecond
}
