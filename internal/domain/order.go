package domain

import (
	"github.com/shopspring/decimal"
)

// Order sides and types. String constants keep wire payloads and logs
// directly readable.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	TypeLimit      = "LIMIT"
	TypeLimitMaker = "LIMIT_MAKER"
)

// In-flight order statuses. SUBMITTED is set before any network action
// completes; the rest are reconciled asynchronously from venue outcomes.
const (
	StatusSubmitted    = "SUBMITTED"
	StatusAcknowledged = "ACKNOWLEDGED"
	StatusFilled       = "FILLED"
	StatusFailed       = "FAILED"
	StatusCancelled    = "CANCELLED"
)

// InFlightOrder is a locally known order whose venue-side outcome is not
// yet fully confirmed. It is created the instant a submission is issued so
// budget bookkeeping and duplicate detection can reason about it before
// the venue responds.
type InFlightOrder struct {
	ClientID      string          `json:"client_id"`
	Pair          string          `json:"pair"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	Price         decimal.Decimal `json:"price"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	VenueID       string          `json:"venue_id,omitempty"`
	CreatedUnixMs int64           `json:"created_unix_ms"`
}

// IsBuy reports whether the order is on the buy side.
func (o *InFlightOrder) IsBuy() bool {
	return o.Side == SideBuy
}

// IsTerminal reports whether the order has reached a final state and can
// leave the active tracking set.
func (o *InFlightOrder) IsTerminal() bool {
	switch o.Status {
	case StatusFilled, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// TradingRule holds per-market venue quantization rules.
type TradingRule struct {
	PriceStep  decimal.Decimal `json:"price_step"`
	AmountStep decimal.Decimal `json:"amount_step"`
	MinAmount  decimal.Decimal `json:"min_amount"`
}

// AssetBalance is one asset's balance snapshot from the venue.
// Available excludes amounts locked in resting orders; Total does not.
type AssetBalance struct {
	Available decimal.Decimal `json:"available"`
	Total     decimal.Decimal `json:"total"`
}
