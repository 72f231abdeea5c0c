package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"maker_go/internal/domain"
	"maker_go/pkg/quant"
)

// PaperVenue simulates a venue with virtual balances. Used for strategy
// validation and as the default venue in PAPER mode. Orders rest until
// FillOrder is called; fills settle both directions symmetrically.
type PaperVenue struct {
	mu       sync.Mutex
	balances map[string]domain.AssetBalance
	rules    map[string]domain.TradingRule
	makerFee decimal.Decimal
	takerFee decimal.Decimal

	open map[string]domain.InFlightOrder

	// onFill reports simulated fills back to the gateway.
	onFill func(clientID string, price, amount decimal.Decimal)
}

// NewPaperVenue creates a paper venue with the given starting available
// balances and per-market rules.
func NewPaperVenue(initial map[string]decimal.Decimal, rules map[string]domain.TradingRule, makerFee, takerFee decimal.Decimal) *PaperVenue {
	balances := make(map[string]domain.AssetBalance, len(initial))
	for asset, amount := range initial {
		balances[asset] = domain.AssetBalance{Available: amount, Total: amount}
	}
	return &PaperVenue{
		balances: balances,
		rules:    rules,
		makerFee: makerFee,
		takerFee: takerFee,
		open:     make(map[string]domain.InFlightOrder),
	}
}

// SetFillHandler installs the callback invoked on simulated fills.
func (p *PaperVenue) SetFillHandler(fn func(clientID string, price, amount decimal.Decimal)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFill = fn
}

// Name implements Venue.
func (p *PaperVenue) Name() string { return "paper" }

// TradingRule implements Venue.
func (p *PaperVenue) TradingRule(pair string) (domain.TradingRule, bool) {
	rule, ok := p.rules[pair]
	return rule, ok
}

// QuantizePrice implements Venue.
func (p *PaperVenue) QuantizePrice(pair string, price decimal.Decimal) decimal.Decimal {
	rule, ok := p.rules[pair]
	if !ok {
		return price
	}
	return quant.QuantizeFloor(price, rule.PriceStep)
}

// QuantizeAmount implements Venue. Amounts below the minimum quantize to
// zero so "too small to place" and "do not place" are the same thing.
func (p *PaperVenue) QuantizeAmount(pair string, amount decimal.Decimal) decimal.Decimal {
	rule, ok := p.rules[pair]
	if !ok {
		return amount
	}
	q := quant.QuantizeFloor(amount, rule.AmountStep)
	if q.LessThan(rule.MinAmount) {
		return decimal.Zero
	}
	return q
}

// EstimateFee implements Venue.
func (p *PaperVenue) EstimateFee(isMaker bool) decimal.Decimal {
	if isMaker {
		return p.makerFee
	}
	return p.takerFee
}

// AllBalances implements Venue.
func (p *PaperVenue) AllBalances(ctx context.Context) (map[string]domain.AssetBalance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]domain.AssetBalance, len(p.balances))
	for asset, bal := range p.balances {
		out[asset] = bal
	}
	return out, nil
}

// PlaceOrder implements Venue. The required asset is moved from available
// to locked (total unchanged) and the order rests until filled or
// cancelled.
func (p *PaperVenue) PlaceOrder(ctx context.Context, o domain.InFlightOrder) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	market, err := domain.ParseMarket(o.Pair)
	if err != nil {
		return "", err
	}

	rule, ok := p.rules[o.Pair]
	if ok && o.Amount.LessThan(rule.MinAmount) {
		return "", fmt.Errorf("amount %s below minimum %s for %s", o.Amount, rule.MinAmount, o.Pair)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	asset := market.Base
	required := o.Amount
	if o.IsBuy() {
		asset = market.Quote
		required = o.Amount.Mul(o.Price)
	}

	bal := p.balances[asset]
	if bal.Available.LessThan(required) {
		return "", fmt.Errorf("insufficient %s balance: need %s, have %s", asset, required, bal.Available)
	}
	bal.Available = bal.Available.Sub(required)
	p.balances[asset] = bal

	p.open[o.ClientID] = o

	slog.Info("PAPER: order resting",
		slog.String("pair", o.Pair),
		slog.String("side", o.Side),
		slog.String("price", o.Price.String()),
		slog.String("amount", o.Amount.String()))

	return "paper-" + o.ClientID, nil
}

// CancelOrder implements Venue. The locked amount returns to available.
func (p *PaperVenue) CancelOrder(ctx context.Context, pair, clientID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.open[clientID]
	if !ok {
		return fmt.Errorf("order not found: %s", clientID)
	}
	delete(p.open, clientID)
	p.release(o)

	slog.Info("PAPER: order cancelled", slog.String("client_id", clientID))
	return nil
}

// FillOrder simulates a full fill of a resting order at its limit price.
// Buy: quote leaves the account, base arrives. Sell: base leaves, quote
// arrives. Both directions settle.
func (p *PaperVenue) FillOrder(clientID string) error {
	p.mu.Lock()
	o, ok := p.open[clientID]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("order not found: %s", clientID)
	}
	delete(p.open, clientID)

	market, err := domain.ParseMarket(o.Pair)
	if err != nil {
		p.mu.Unlock()
		return err
	}

	notional := o.Amount.Mul(o.Price)
	if o.IsBuy() {
		// Quote was locked at placement; settle it out of total now.
		quote := p.balances[market.Quote]
		quote.Total = quote.Total.Sub(notional)
		p.balances[market.Quote] = quote

		base := p.balances[market.Base]
		base.Available = base.Available.Add(o.Amount)
		base.Total = base.Total.Add(o.Amount)
		p.balances[market.Base] = base
	} else {
		base := p.balances[market.Base]
		base.Total = base.Total.Sub(o.Amount)
		p.balances[market.Base] = base

		quote := p.balances[market.Quote]
		quote.Available = quote.Available.Add(notional)
		quote.Total = quote.Total.Add(notional)
		p.balances[market.Quote] = quote
	}

	onFill := p.onFill
	p.mu.Unlock()

	slog.Info("PAPER: order filled",
		slog.String("pair", o.Pair),
		slog.String("side", o.Side),
		slog.String("price", o.Price.String()),
		slog.String("amount", o.Amount.String()))

	if onFill != nil {
		onFill(clientID, o.Price, o.Amount)
	}
	return nil
}

// OpenOrders returns the client ids of currently resting paper orders.
func (p *PaperVenue) OpenOrders() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.open))
	for id := range p.open {
		ids = append(ids, id)
	}
	return ids
}

// release returns a resting order's locked funds to available.
// Caller holds p.mu.
func (p *PaperVenue) release(o domain.InFlightOrder) {
	market, err := domain.ParseMarket(o.Pair)
	if err != nil {
		return
	}

	asset := market.Base
	locked := o.Amount
	if o.IsBuy() {
		asset = market.Quote
		locked = o.Amount.Mul(o.Price)
	}
	bal := p.balances[asset]
	bal.Available = bal.Available.Add(locked)
	p.balances[asset] = bal
}
