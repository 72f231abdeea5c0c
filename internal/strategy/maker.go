package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"maker_go/internal/domain"
	"maker_go/internal/infra"
	"maker_go/pkg/quant"
)

// PriceSource supplies the latest mid prices, replaced wholesale by a
// polling task. Ready reports whether at least one snapshot arrived.
type PriceSource interface {
	MidPrices() map[string]decimal.Decimal
	Ready() bool
}

// BalanceSource supplies the latest account balances.
type BalanceSource interface {
	Balances() map[string]domain.AssetBalance
	Ready() bool
}

// OrderSubmitter is the slice of the order gateway the maker drives.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, pair, side, orderType string, price, amount decimal.Decimal) string
	CancelOrder(ctx context.Context, pair, clientID string)
	InFlightOrders() map[string]domain.InFlightOrder
}

// MarketMaker runs the per-tick decision pipeline: refresh volatility,
// build proposals, clip them to live balances, and reconcile resting
// orders through the gateway. All decision state is owned by the single
// loop goroutine; the mutex exists only for external status reads.
type MarketMaker struct {
	cfg      *infra.Config
	markets  []domain.Market
	prices   PriceSource
	balances BalanceSource
	gateway  OrderSubmitter
	rules    VenueRules
	budgets  *BudgetBook

	mu            sync.RWMutex
	midSeries     map[string][]decimal.Decimal
	volatility    map[string]float64
	refreshTimes  map[string]time.Time
	lastProposals map[string]domain.Proposal

	ready     bool
	startTime time.Time

	inbox chan func()
	wg    sync.WaitGroup

	// now is replaceable in tests.
	now func() time.Time

	// notify surfaces fill messages to an operator channel. Optional.
	notify func(msg string)
}

// NewMarketMaker wires the pipeline. The gateway's fill notifications
// must be routed to OnFill by the caller.
func NewMarketMaker(cfg *infra.Config, prices PriceSource, balances BalanceSource, gw OrderSubmitter, rules VenueRules) *MarketMaker {
	markets := cfg.Markets()
	m := &MarketMaker{
		cfg:           cfg,
		markets:       markets,
		prices:        prices,
		balances:      balances,
		gateway:       gw,
		rules:         rules,
		budgets:       NewBudgetBook(cfg.Venue.StableAssets),
		midSeries:     make(map[string][]decimal.Decimal, len(markets)),
		volatility:    make(map[string]float64, len(markets)),
		refreshTimes:  make(map[string]time.Time, len(markets)),
		lastProposals: make(map[string]domain.Proposal, len(markets)),
		inbox:         make(chan func(), 64),
		now:           time.Now,
	}
	for _, mk := range markets {
		m.volatility[mk.Pair()] = math.NaN()
	}
	return m
}

// SetNotifier installs the operator notification hook.
func (m *MarketMaker) SetNotifier(fn func(msg string)) { m.notify = fn }

// Run drives the tick loop until ctx is cancelled. Inbox messages
// (fills, rebalance requests) drain before each tick so budget updates
// from fills are visible to the decision that follows them.
func (m *MarketMaker) Run(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.TickInterval())
	defer ticker.Stop()

	slog.Info("Market maker started",
		slog.Int("markets", len(m.markets)),
		slog.Duration("tick", m.cfg.TickInterval()))

	for {
		select {
		case <-ctx.Done():
			slog.Info("Market maker stopping")
			return
		case fn := <-m.inbox:
			fn()
		case <-ticker.C:
			m.drainInbox()
			m.onTick(ctx)
		}
	}
}

// Wait blocks until the loop goroutine exits.
func (m *MarketMaker) Wait() { m.wg.Wait() }

func (m *MarketMaker) drainInbox() {
	for {
		select {
		case fn := <-m.inbox:
			fn()
		default:
			return
		}
	}
}

// OnFill is called by the gateway's fill event subscription. It hands
// the budget update to the loop goroutine.
func (m *MarketMaker) OnFill(pair, side string, price, amount decimal.Decimal) {
	select {
	case m.inbox <- func() { m.processFill(pair, side, price, amount) }:
	default:
		slog.Warn("STATE: fill inbox full, applying inline",
			slog.String("pair", pair))
		m.processFill(pair, side, price, amount)
	}
}

// RequestRebalance schedules a full budget reallocation before the
// next tick.
func (m *MarketMaker) RequestRebalance() {
	m.inbox <- func() { m.allocateBudgets() }
}

// ResetRefreshTimers clears all per-market cooldowns. Administrative
// use only; timers otherwise only move forward.
func (m *MarketMaker) ResetRefreshTimers() {
	m.inbox <- func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for pair := range m.refreshTimes {
			m.refreshTimes[pair] = time.Time{}
		}
	}
}

// onTick runs the whole decision pipeline. No suspending calls happen
// between reading the balance snapshot and acting on it.
func (m *MarketMaker) onTick(ctx context.Context) {
	infra.MetricTick()

	if !m.ready {
		if !m.prices.Ready() || !m.balances.Ready() {
			slog.Warn("Feeds not ready, waiting")
			return
		}
		m.ready = true
		m.startTime = m.now()
		m.allocateBudgets()
		slog.Info("Feeds ready, trading started")
	}

	balances := m.adjustedAvailableBalances()
	mids := m.prices.MidPrices()

	m.updateMidSeries(mids)
	m.updateVolatility()

	proposals := m.buildProposals(mids)
	ApplyBudgetConstraint(proposals, balances, m.rules)

	m.mu.Lock()
	for _, p := range proposals {
		m.lastProposals[p.Market.Pair()] = *p
	}
	m.mu.Unlock()

	m.cancelStaleOrders(ctx, proposals)
	m.placeProposals(ctx, proposals)

	infra.MetricActiveOrders(len(m.gateway.InFlightOrders()))
}

func (m *MarketMaker) allocateBudgets() {
	balances := m.adjustedAvailableBalances()
	mids := m.prices.MidPrices()

	m.mu.Lock()
	m.budgets.Allocate(m.markets, balances, mids, m.cfg.MarketBudgetUSDDec())
	m.mu.Unlock()
}

func (m *MarketMaker) processFill(pair, side string, price, amount decimal.Decimal) {
	m.mu.Lock()
	m.budgets.ApplyFill(pair, side, price, amount)
	m.mu.Unlock()

	msg := fmt.Sprintf("(%s) Maker %s order of %s at price %s is filled.",
		pair, side, amount, price)
	slog.Info(msg)
	if m.notify != nil {
		m.notify(msg)
	}
}

// adjustedAvailableBalances returns available balances with amounts
// locked in resting orders added back, capped at the total balance,
// minus configured reserves. Resting-order amounts are re-added because
// budgets reason about capacity including what is already quoted.
func (m *MarketMaker) adjustedAvailableBalances() map[string]decimal.Decimal {
	raw := m.balances.Balances()
	reserved := m.cfg.ReservedBalancesDec()

	adjusted := make(map[string]decimal.Decimal)
	totals := make(map[string]decimal.Decimal)
	for _, mk := range m.markets {
		for _, asset := range []string{mk.Base, mk.Quote} {
			bal := raw[asset]
			adjusted[asset] = bal.Available
			totals[asset] = bal.Total
		}
	}

	for _, o := range m.gateway.InFlightOrders() {
		mk, err := domain.ParseMarket(o.Pair)
		if err != nil {
			continue
		}
		if o.IsBuy() {
			adjusted[mk.Quote] = adjusted[mk.Quote].Add(o.Amount.Mul(o.Price))
		} else {
			adjusted[mk.Base] = adjusted[mk.Base].Add(o.Amount)
		}
	}

	for asset := range adjusted {
		adjusted[asset] = quant.MinDecimal(adjusted[asset], totals[asset])
		adjusted[asset] = adjusted[asset].Sub(reserved[asset])
		if adjusted[asset].IsNegative() {
			adjusted[asset] = decimal.Zero
		}
	}
	return adjusted
}

func (m *MarketMaker) updateMidSeries(mids map[string]decimal.Decimal) {
	maxLen := m.cfg.Trading.VolatilityInterval * m.cfg.Trading.VolatilityWindowCount * 10

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mk := range m.markets {
		pair := mk.Pair()
		mid, ok := mids[pair]
		if !ok {
			continue
		}
		series := append(m.midSeries[pair], mid)
		if len(series) > maxLen {
			series = series[len(series)-maxLen:]
		}
		m.midSeries[pair] = series
	}
}

func (m *MarketMaker) updateVolatility() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mk := range m.markets {
		pair := mk.Pair()
		m.volatility[pair] = Volatility(m.midSeries[pair],
			m.cfg.Trading.VolatilityInterval, m.cfg.Trading.VolatilityWindowCount)
	}
}

func (m *MarketMaker) buildProposals(mids map[string]decimal.Decimal) []*domain.Proposal {
	// One sample lands per tick, so a sub-window spans interval ticks.
	warmupCutoff := 2 * time.Duration(m.cfg.Trading.VolatilityInterval) * m.cfg.TickInterval()
	warmingUp := m.now().Sub(m.startTime) < warmupCutoff

	m.mu.RLock()
	defer m.mu.RUnlock()

	proposals := make([]*domain.Proposal, 0, len(m.markets))
	for _, mk := range m.markets {
		pair := mk.Pair()
		mid, ok := mids[pair]
		if !ok || !mid.IsPositive() {
			// Not ready is a skip, not an error.
			continue
		}
		p := BuildProposal(ProposalInputs{
			Market:          mk,
			MidPrice:        mid,
			Volatility:      m.volatility[pair],
			SellBudget:      m.budgets.SellBudget(pair),
			BuyBudget:       m.budgets.BuyBudget(pair),
			Spread:          m.cfg.SpreadDec().InexactFloat64(),
			VolToSpreadMult: m.cfg.Trading.VolatilityToSpreadMult,
			WarmingUp:       warmingUp,
		}, m.rules)
		proposals = append(proposals, &p)
	}
	return proposals
}

// restingOrders returns the gateway's in-flight orders for one market.
func (m *MarketMaker) restingOrders(pair string) []domain.InFlightOrder {
	var out []domain.InFlightOrder
	for _, o := range m.gateway.InFlightOrders() {
		if o.Pair == pair {
			out = append(out, o)
		}
	}
	return out
}

// withinTolerance reports whether resting orders may stand against the
// new proposal. A side the proposal dropped while still resting always
// fails the check and forces a full cancel.
func (m *MarketMaker) withinTolerance(resting []domain.InFlightOrder, p *domain.Proposal) bool {
	tolerance := m.cfg.RefreshToleranceDec()
	var curBuy, curSell *domain.InFlightOrder
	for i := range resting {
		if resting[i].IsBuy() {
			curBuy = &resting[i]
		} else {
			curSell = &resting[i]
		}
	}

	if (curBuy != nil && !p.Buy.Size.IsPositive()) || (curSell != nil && !p.Sell.Size.IsPositive()) {
		return false
	}
	if curBuy != nil && quant.DeviationRatio(p.Buy.Price, curBuy.Price).GreaterThan(tolerance) {
		return false
	}
	if curSell != nil && quant.DeviationRatio(p.Sell.Price, curSell.Price).GreaterThan(tolerance) {
		return false
	}
	return true
}

// cancelStaleOrders cancels every resting order of a market whose
// proposal moved out of tolerance, then pushes the refresh timer a
// grace delay into the future so the replacement lands on a later
// tick. Cancel-before-create is strict per market.
func (m *MarketMaker) cancelStaleOrders(ctx context.Context, proposals []*domain.Proposal) {
	now := m.now()
	for _, p := range proposals {
		pair := p.Market.Pair()
		if m.refreshTime(pair).After(now) {
			continue
		}
		resting := m.restingOrders(pair)
		if len(resting) == 0 || m.withinTolerance(resting, p) {
			continue
		}
		for _, o := range resting {
			m.gateway.CancelOrder(ctx, pair, o.ClientID)
			m.setRefreshTime(pair, now.Add(m.cfg.GraceDelay()))
		}
	}
}

// placeProposals submits the non-zero sides of each proposal for
// markets with no resting orders and an elapsed refresh timer.
func (m *MarketMaker) placeProposals(ctx context.Context, proposals []*domain.Proposal) {
	now := m.now()
	for _, p := range proposals {
		pair := p.Market.Pair()
		if len(m.restingOrders(pair)) > 0 || m.refreshTime(pair).After(now) {
			continue
		}
		if p.Buy.Size.IsPositive() {
			slog.Info("Creating bid order",
				slog.String("market", pair),
				slog.String("price", p.Buy.Price.String()),
				slog.String("size", p.Buy.Size.String()))
			m.gateway.SubmitOrder(ctx, pair, domain.SideBuy, domain.TypeLimitMaker, p.Buy.Price, p.Buy.Size)
		}
		if p.Sell.Size.IsPositive() {
			slog.Info("Creating ask order",
				slog.String("market", pair),
				slog.String("price", p.Sell.Price.String()),
				slog.String("size", p.Sell.Size.String()))
			m.gateway.SubmitOrder(ctx, pair, domain.SideSell, domain.TypeLimitMaker, p.Sell.Price, p.Sell.Size)
		}
		if p.WantsOrders() {
			m.logSpreadWidening(pair)
			m.setRefreshTime(pair, now.Add(m.cfg.RefreshInterval()))
		}
	}
}

// logSpreadWidening notes when high volatility, not the base spread,
// set the quote distance for the orders just placed.
func (m *MarketMaker) logSpreadWidening(pair string) {
	m.mu.RLock()
	vol := m.volatility[pair]
	m.mu.RUnlock()

	if math.IsNaN(vol) {
		return
	}
	base := m.cfg.SpreadDec().InexactFloat64()
	if adjusted := vol * m.cfg.Trading.VolatilityToSpreadMult; adjusted > base {
		slog.Info("Spread widened due to market volatility",
			slog.String("market", pair),
			slog.Float64("volatility", vol),
			slog.Float64("spread", adjusted))
	}
}

func (m *MarketMaker) refreshTime(pair string) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshTimes[pair]
}

func (m *MarketMaker) setRefreshTime(pair string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshTimes[pair] = t
}

// MarketVolatility returns the latest volatility for a market, NaN
// when unknown. Status reporting only.
func (m *MarketMaker) MarketVolatility(pair string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.volatility[pair]
	if !ok {
		return math.NaN()
	}
	return v
}

// Proposals returns the last tick's proposals keyed by market pair.
func (m *MarketMaker) Proposals() map[string]domain.Proposal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]domain.Proposal, len(m.lastProposals))
	for k, v := range m.lastProposals {
		out[k] = v
	}
	return out
}

// Budgets returns copies of the current budget maps.
func (m *MarketMaker) Budgets() (sell, buy map[string]decimal.Decimal) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.budgets.Snapshot()
}
