package strategy

import (
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"maker_go/internal/domain"
	"maker_go/pkg/quant"
)

// BudgetBook holds the per-market buy/sell budgets. Sell budgets are in
// base-asset units, buy budgets in quote-asset units. Budgets are set
// wholesale by Allocate and adjusted incrementally by ApplyFill; both
// callers run on the tick goroutine, so the book itself is unlocked.
type BudgetBook struct {
	sell map[string]decimal.Decimal
	buy  map[string]decimal.Decimal

	stableAssets map[string]bool
}

// NewBudgetBook creates an empty book. stableAssets names the quote
// assets treated as worth exactly one USD for valuation.
func NewBudgetBook(stableAssets []string) *BudgetBook {
	stables := make(map[string]bool, len(stableAssets))
	for _, a := range stableAssets {
		stables[a] = true
	}
	return &BudgetBook{
		sell:         make(map[string]decimal.Decimal),
		buy:          make(map[string]decimal.Decimal),
		stableAssets: stables,
	}
}

// SellBudget returns the base-asset budget for the market, zero if unset.
func (b *BudgetBook) SellBudget(pair string) decimal.Decimal { return b.sell[pair] }

// BuyBudget returns the quote-asset budget for the market, zero if unset.
func (b *BudgetBook) BuyBudget(pair string) decimal.Decimal { return b.buy[pair] }

// Snapshot returns copies of both budget maps for status reporting.
func (b *BudgetBook) Snapshot() (sell, buy map[string]decimal.Decimal) {
	sell = make(map[string]decimal.Decimal, len(b.sell))
	buy = make(map[string]decimal.Decimal, len(b.buy))
	for k, v := range b.sell {
		sell[k] = v
	}
	for k, v := range b.buy {
		buy[k] = v
	}
	return sell, buy
}

// USDValue returns the USD valuation of one unit of the asset. Stable
// assets are worth exactly one. Other assets are valued through the
// mid price of an asset/stable market when one is present in the mid
// cache. Assets with no valuation path are worth zero.
func (b *BudgetBook) USDValue(asset string, mids map[string]decimal.Decimal) decimal.Decimal {
	if b.stableAssets[asset] {
		return decimal.NewFromInt(1)
	}
	stables := make([]string, 0, len(b.stableAssets))
	for s := range b.stableAssets {
		stables = append(stables, s)
	}
	sort.Strings(stables)
	for _, stable := range stables {
		if mid, ok := mids[asset+"-"+stable]; ok && mid.IsPositive() {
			return mid
		}
	}
	return decimal.Zero
}

// Allocate partitions available balances into per-market budgets.
//
// Each distinct base asset's balance is split equally among the markets
// trading it, then clamped in USD terms to that market's remaining
// ceiling. The sell pass runs first and decrements the shared ceiling,
// so a market never receives the full ceiling on both sides. Assets
// with no USD valuation contribute zero budget rather than erroring.
func (b *BudgetBook) Allocate(markets []domain.Market, balances map[string]decimal.Decimal, mids map[string]decimal.Decimal, ceilingUSD decimal.Decimal) {
	remaining := make(map[string]decimal.Decimal, len(markets))
	for _, m := range markets {
		remaining[m.Pair()] = ceilingUSD
	}

	b.sell = make(map[string]decimal.Decimal, len(markets))
	b.buy = make(map[string]decimal.Decimal, len(markets))
	for _, m := range markets {
		b.sell[m.Pair()] = decimal.Zero
		b.buy[m.Pair()] = decimal.Zero
	}

	for _, base := range distinctAssets(markets, func(m domain.Market) string { return m.Base }) {
		baseMarkets := marketsWith(markets, func(m domain.Market) bool { return m.Base == base })
		share := balances[base].Div(decimal.NewFromInt(int64(len(baseMarkets))))
		unitValue := b.USDValue(base, mids)
		for _, m := range baseMarkets {
			pair := m.Pair()
			sellValue := quant.MinDecimal(share.Mul(unitValue), remaining[pair])
			remaining[pair] = remaining[pair].Sub(sellValue)
			if unitValue.IsPositive() {
				b.sell[pair] = sellValue.Div(unitValue)
			}
		}
	}

	for _, quote := range distinctAssets(markets, func(m domain.Market) string { return m.Quote }) {
		quoteMarkets := marketsWith(markets, func(m domain.Market) bool { return m.Quote == quote })
		share := balances[quote].Div(decimal.NewFromInt(int64(len(quoteMarkets))))
		unitValue := b.USDValue(quote, mids)
		for _, m := range quoteMarkets {
			pair := m.Pair()
			buyValue := quant.MinDecimal(share.Mul(unitValue), remaining[pair])
			if unitValue.IsPositive() {
				b.buy[pair] = buyValue.Div(unitValue)
			}
		}
	}

	for _, m := range markets {
		pair := m.Pair()
		slog.Info("Budget allocated",
			slog.String("market", pair),
			slog.String("sell_budget", b.sell[pair].String()),
			slog.String("buy_budget", b.buy[pair].String()))
	}
}

// ApplyFill moves budget between the two sides of a market after a
// fill. A buy fill consumes quote budget and grows the sell budget by
// the bought amount; a sell fill does the inverse.
func (b *BudgetBook) ApplyFill(pair, side string, price, amount decimal.Decimal) {
	notional := amount.Mul(price)
	if side == domain.SideBuy {
		b.buy[pair] = b.buy[pair].Sub(notional)
		b.sell[pair] = b.sell[pair].Add(amount)
	} else {
		b.sell[pair] = b.sell[pair].Sub(amount)
		b.buy[pair] = b.buy[pair].Add(notional)
	}
}

// distinctAssets returns the sorted distinct assets selected by pick.
// Sorting keeps allocation deterministic across runs.
func distinctAssets(markets []domain.Market, pick func(domain.Market) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range markets {
		a := pick(m)
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}

func marketsWith(markets []domain.Market, keep func(domain.Market) bool) []domain.Market {
	var out []domain.Market
	for _, m := range markets {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}
