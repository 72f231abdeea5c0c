package gateway

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"

	"maker_go/internal/infra"
)

// Mode selects which venue implementation backs the gateway.
type Mode string

const (
	ModePaper Mode = "PAPER"
	ModeReal  Mode = "REAL"
)

// NewVenue builds the venue for the configured trading mode.
func NewVenue(cfg *infra.Config) (Venue, error) {
	mode := Mode(cfg.Trading.Mode)

	slog.Info("Initializing venue", "mode", mode, "venue", cfg.Venue.Name)

	switch mode {
	case ModePaper:
		return newPaperVenueFromConfig(cfg), nil

	case ModeReal:
		// Real trading: SAFETY LATCH CHECK
		if os.Getenv("CONFIRM_REAL_MONEY") != "true" {
			err := fmt.Errorf("SAFETY_GUARD: real trading requires 'CONFIRM_REAL_MONEY=true' environment variable")
			slog.Error(err.Error())
			panic(err) // Fail Fast
		}
		if cfg.Venue.AccessKey == "" || cfg.Venue.SecretKey == "" {
			return nil, fmt.Errorf("real trading requires venue API credentials")
		}

		slog.Warn("Connecting to REAL venue, live funds at risk",
			slog.String("venue", cfg.Venue.Name))
		return NewRESTVenue(cfg), nil

	default:
		return nil, fmt.Errorf("unknown trading mode: %s", cfg.Trading.Mode)
	}
}

// newPaperVenueFromConfig seeds a paper venue with generous virtual
// balances for every asset the configured markets reference.
func newPaperVenueFromConfig(cfg *infra.Config) *PaperVenue {
	initial := make(map[string]decimal.Decimal)
	baseSeed := decimal.NewFromInt(1_000)
	quoteSeed := decimal.NewFromInt(100_000)
	for _, m := range cfg.Markets() {
		if _, ok := initial[m.Base]; !ok {
			initial[m.Base] = baseSeed
		}
		initial[m.Quote] = quoteSeed
	}
	return NewPaperVenue(initial, cfg.TradingRules(), cfg.MakerFeeDec(), cfg.TakerFeeDec())
}
