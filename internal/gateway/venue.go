package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"maker_go/internal/domain"
)

// Venue is the contract a venue implementation fulfils. The transport
// behind it (REST call, subprocess, RPC) is an interchangeable detail;
// the gateway only relies on these operations.
type Venue interface {
	Name() string

	// TradingRule returns the quantization rules for a pair.
	TradingRule(pair string) (domain.TradingRule, bool)

	// QuantizePrice rounds a price down to the pair's price step.
	QuantizePrice(pair string, price decimal.Decimal) decimal.Decimal

	// QuantizeAmount rounds an amount down to the pair's amount step.
	// Amounts below the pair's minimum quantize to zero.
	QuantizeAmount(pair string, amount decimal.Decimal) decimal.Decimal

	// EstimateFee returns the fee rate as a fraction (0.001 = 0.1%).
	EstimateFee(isMaker bool) decimal.Decimal

	// AllBalances returns the full per-asset balance map.
	AllBalances(ctx context.Context) (map[string]domain.AssetBalance, error)

	// PlaceOrder performs the venue-side order creation and returns the
	// venue-assigned identifier. May be slow; may fail.
	PlaceOrder(ctx context.Context, o domain.InFlightOrder) (string, error)

	// CancelOrder cancels a resting order by client id.
	CancelOrder(ctx context.Context, pair, clientID string) error
}
