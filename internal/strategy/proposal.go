package strategy

import (
	"math"

	"github.com/shopspring/decimal"

	"maker_go/internal/domain"
)

// VenueRules is the slice of the venue the proposal pipeline needs:
// quantization and fee estimation. Satisfied by gateway venues.
type VenueRules interface {
	QuantizePrice(pair string, price decimal.Decimal) decimal.Decimal
	QuantizeAmount(pair string, amount decimal.Decimal) decimal.Decimal
	EstimateFee(isMaker bool) decimal.Decimal
}

// ProposalInputs is everything BuildProposal reads for one market.
// Keeping it a plain value makes the generator a pure function.
type ProposalInputs struct {
	Market     domain.Market
	MidPrice   decimal.Decimal
	Volatility float64 // NaN when unknown
	SellBudget decimal.Decimal
	BuyBudget  decimal.Decimal

	Spread           float64
	VolToSpreadMult  float64
	WarmingUp        bool // widens the spread before volatility is known
}

// BuildProposal computes one tick's candidate bid and ask for a market.
// A zero size on either side means "do not place that side".
func BuildProposal(in ProposalInputs, rules VenueRules) domain.Proposal {
	spread := in.Spread
	if in.WarmingUp {
		spread *= 3
	}
	if !math.IsNaN(in.Volatility) {
		if widened := in.Volatility * in.VolToSpreadMult; widened > spread {
			spread = widened
		}
	}

	pair := in.Market.Pair()
	spreadDec := decimal.NewFromFloat(spread)
	one := decimal.NewFromInt(1)

	buyPrice := rules.QuantizePrice(pair, in.MidPrice.Mul(one.Sub(spreadDec)))
	buySize := calcBuySize(pair, in.BuyBudget, buyPrice, rules)

	sellPrice := rules.QuantizePrice(pair, in.MidPrice.Mul(one.Add(spreadDec)))
	sellSize := rules.QuantizeAmount(pair, in.SellBudget)

	return domain.Proposal{
		Market: in.Market,
		Buy:    domain.PriceSize{Price: buyPrice, Size: buySize},
		Sell:   domain.PriceSize{Price: sellPrice, Size: sellSize},
	}
}

// calcBuySize converts a quote budget into a fee-adjusted base amount.
func calcBuySize(pair string, quoteBudget, price decimal.Decimal, rules VenueRules) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	fee := rules.EstimateFee(true)
	size := quoteBudget.Div(price.Mul(decimal.NewFromInt(1).Add(fee)))
	return rules.QuantizeAmount(pair, size)
}

// ApplyBudgetConstraint clips all proposals against a single balance
// snapshot, deducting sequentially so markets sharing an asset cannot
// jointly commit more than the asset's balance. The snapshot is
// mutated; callers pass a copy, never the live balance map.
func ApplyBudgetConstraint(proposals []*domain.Proposal, balances map[string]decimal.Decimal, rules VenueRules) {
	for _, p := range proposals {
		pair := p.Market.Pair()
		base, quote := p.Market.Base, p.Market.Quote

		if balances[base].LessThan(p.Sell.Size) {
			p.Sell.Size = balances[base]
		}
		p.Sell.Size = rules.QuantizeAmount(pair, p.Sell.Size)
		balances[base] = balances[base].Sub(p.Sell.Size)

		quoteSize := p.Buy.Size.Mul(p.Buy.Price)
		if balances[quote].LessThan(quoteSize) {
			quoteSize = balances[quote]
		}
		p.Buy.Size = calcBuySize(pair, quoteSize, p.Buy.Price, rules)
		balances[quote] = balances[quote].Sub(quoteSize)
	}
}
