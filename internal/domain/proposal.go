package domain

import (
	"github.com/shopspring/decimal"
)

// PriceSize is one side of a tick's quote proposal. A zero size means
// "do not place this side".
type PriceSize struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Proposal is one tick's candidate orders for a single market. It is
// ephemeral: produced, constrained, acted upon and discarded within the
// tick that created it.
type Proposal struct {
	Market Market
	Buy    PriceSize
	Sell   PriceSize
}

// WantsOrders reports whether either side proposes a non-zero size.
func (p *Proposal) WantsOrders() bool {
	return p.Buy.Size.Sign() > 0 || p.Sell.Size.Sign() > 0
}
