package strategy

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"maker_go/internal/domain"
	"maker_go/internal/infra"
)

type fakePrices struct {
	mids  map[string]decimal.Decimal
	ready bool
}

func (f *fakePrices) MidPrices() map[string]decimal.Decimal { return f.mids }
func (f *fakePrices) Ready() bool                           { return f.ready }

type fakeBalances struct {
	bals  map[string]domain.AssetBalance
	ready bool
}

func (f *fakeBalances) Balances() map[string]domain.AssetBalance { return f.bals }
func (f *fakeBalances) Ready() bool                              { return f.ready }

type fakeGateway struct {
	inflight  map[string]domain.InFlightOrder
	submitted []domain.InFlightOrder
	cancelled []string
	seq       int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{inflight: make(map[string]domain.InFlightOrder)}
}

func (f *fakeGateway) SubmitOrder(ctx context.Context, pair, side, orderType string, price, amount decimal.Decimal) string {
	f.seq++
	id := fmt.Sprintf("o%d", f.seq)
	o := domain.InFlightOrder{
		ClientID: id, Pair: pair, Side: side, Type: orderType,
		Price: price, Amount: amount, Status: domain.StatusSubmitted,
	}
	f.submitted = append(f.submitted, o)
	f.inflight[id] = o
	return id
}

func (f *fakeGateway) CancelOrder(ctx context.Context, pair, clientID string) {
	f.cancelled = append(f.cancelled, clientID)
	delete(f.inflight, clientID)
}

func (f *fakeGateway) InFlightOrders() map[string]domain.InFlightOrder {
	out := make(map[string]domain.InFlightOrder, len(f.inflight))
	for k, v := range f.inflight {
		out[k] = v
	}
	return out
}

func testConfig() *infra.Config {
	cfg := &infra.Config{}
	cfg.Trading.Mode = "PAPER"
	cfg.Trading.Markets = []infra.MarketConfig{
		{Pair: "A-USDT", PriceStep: "0.0001", AmountStep: "0.0001", MinAmount: "0.0001"},
	}
	cfg.Trading.Spread = "0.01"
	cfg.Trading.RefreshTolerance = "0.02"
	cfg.Trading.RefreshIntervalSecs = 30
	cfg.Trading.GraceDelayMs = 100
	cfg.Trading.TickIntervalMs = 1000
	cfg.Trading.VolatilityInterval = 3
	cfg.Trading.VolatilityWindowCount = 2
	cfg.Trading.VolatilityToSpreadMult = 1.0
	cfg.Trading.MarketBudgetUSD = "2000"
	cfg.Venue.Name = "paper"
	cfg.Venue.MakerFeePct = "0"
	cfg.Venue.TakerFeePct = "0"
	cfg.Venue.StableAssets = []string{"USDT"}
	return cfg
}

func newTestMaker(t *testing.T) (*MarketMaker, *fakePrices, *fakeBalances, *fakeGateway) {
	t.Helper()
	prices := &fakePrices{
		mids:  map[string]decimal.Decimal{"A-USDT": decimal.NewFromInt(10)},
		ready: true,
	}
	balances := &fakeBalances{
		bals: map[string]domain.AssetBalance{
			"A":    {Available: decimal.NewFromInt(100), Total: decimal.NewFromInt(100)},
			"USDT": {Available: decimal.NewFromInt(10_000), Total: decimal.NewFromInt(10_000)},
		},
		ready: true,
	}
	gw := newFakeGateway()
	m := NewMarketMaker(testConfig(), prices, balances, gw, passthroughRules())
	return m, prices, balances, gw
}

func TestMaker_NotReadySkipsTick(t *testing.T) {
	m, prices, _, gw := newTestMaker(t)
	prices.ready = false

	m.onTick(context.Background())

	if len(gw.submitted) != 0 {
		t.Errorf("submitted %d orders before feeds ready, want 0", len(gw.submitted))
	}
	if m.ready {
		t.Error("maker marked ready with a not-ready feed")
	}
}

func TestMaker_FirstReadyTickAllocatesAndPlaces(t *testing.T) {
	m, _, _, gw := newTestMaker(t)

	m.onTick(context.Background())

	if !m.ready {
		t.Fatal("maker should be ready once feeds are")
	}
	sell, buy := m.Budgets()
	if sell["A-USDT"].IsZero() && buy["A-USDT"].IsZero() {
		t.Error("expected budgets after first ready tick")
	}
	if len(gw.submitted) == 0 {
		t.Fatal("expected orders submitted on first ready tick")
	}
	var sides []string
	for _, o := range gw.submitted {
		sides = append(sides, o.Side)
		if o.Type != domain.TypeLimitMaker {
			t.Errorf("order type = %s, want %s", o.Type, domain.TypeLimitMaker)
		}
	}
	if len(sides) != 2 {
		t.Errorf("submitted sides = %v, want both buy and sell", sides)
	}
}

func TestMaker_ToleranceRule(t *testing.T) {
	m, _, _, _ := newTestMaker(t)
	resting := []domain.InFlightOrder{{
		ClientID: "b1", Pair: "A-USDT", Side: domain.SideBuy,
		Price: decimal.NewFromInt(100), Amount: decimal.NewFromInt(1),
	}}
	mk, _ := domain.ParseMarket("A-USDT")

	within := &domain.Proposal{
		Market: mk,
		Buy:    domain.PriceSize{Price: decimal.RequireFromString("101.5"), Size: decimal.NewFromInt(1)},
	}
	if !m.withinTolerance(resting, within) {
		t.Error("101.5 vs resting 100 at 2% tolerance should stand")
	}

	outside := &domain.Proposal{
		Market: mk,
		Buy:    domain.PriceSize{Price: decimal.RequireFromString("103"), Size: decimal.NewFromInt(1)},
	}
	if m.withinTolerance(resting, outside) {
		t.Error("103 vs resting 100 at 2% tolerance should cancel")
	}

	dropped := &domain.Proposal{
		Market: mk,
		Buy:    domain.PriceSize{Price: decimal.NewFromInt(100), Size: decimal.Zero},
	}
	if m.withinTolerance(resting, dropped) {
		t.Error("dropping a resting side must fail the tolerance check")
	}
}

func TestMaker_OutOfToleranceCancelsAndAdvancesTimer(t *testing.T) {
	m, prices, _, gw := newTestMaker(t)
	now := time.Unix(1_000_000, 0)
	m.now = func() time.Time { return now }

	m.onTick(context.Background())
	if len(gw.inflight) == 0 {
		t.Fatal("no resting orders after first tick")
	}

	// Move the mid 3%: both proposal prices leave the 2% tolerance band.
	prices.mids["A-USDT"] = decimal.RequireFromString("10.3")
	now = now.Add(time.Hour)
	timerBefore := m.refreshTime("A-USDT")
	m.onTick(context.Background())

	if len(gw.cancelled) == 0 {
		t.Fatal("expected cancels for out-of-tolerance orders")
	}
	timerAfter := m.refreshTime("A-USDT")
	if !timerAfter.After(timerBefore) {
		t.Error("refresh timer did not advance on cancel")
	}
	// Grace delay: replacement must not land on the cancel tick.
	replacement := timerAfter.Sub(now)
	if replacement <= 0 || replacement > time.Second {
		t.Errorf("grace delay = %v, want a small positive delay", replacement)
	}
}

func TestMaker_CancelThenCreateOnLaterTick(t *testing.T) {
	m, prices, _, gw := newTestMaker(t)
	now := time.Unix(1_000_000, 0)
	m.now = func() time.Time { return now }

	m.onTick(context.Background())
	prices.mids["A-USDT"] = decimal.RequireFromString("10.3")
	now = now.Add(time.Hour)
	m.onTick(context.Background())

	submittedAfterCancel := len(gw.submitted)

	// Same instant: grace delay has not elapsed, no replacement yet.
	m.onTick(context.Background())
	if len(gw.submitted) != submittedAfterCancel {
		t.Error("replacement placed before grace delay elapsed")
	}

	now = now.Add(time.Second)
	m.onTick(context.Background())
	if len(gw.submitted) <= submittedAfterCancel {
		t.Error("expected replacement orders after grace delay")
	}
}

func TestMaker_DroppedSideForcesCancel(t *testing.T) {
	m, _, balances, gw := newTestMaker(t)
	now := time.Unix(1_000_000, 0)
	m.now = func() time.Time { return now }

	m.onTick(context.Background())
	if len(gw.inflight) == 0 {
		t.Fatal("no resting orders after first tick")
	}

	// Drain every balance and budget: both proposal sides collapse to
	// zero while orders still rest, which must force a full cancel.
	balances.bals = map[string]domain.AssetBalance{}
	m.budgets.buy["A-USDT"] = decimal.Zero
	m.budgets.sell["A-USDT"] = decimal.Zero

	now = now.Add(time.Hour)
	m.onTick(context.Background())

	if len(gw.cancelled) == 0 {
		t.Error("expected cancel when proposal drops a resting side")
	}
}

func TestMaker_FillAdjustsBudgets(t *testing.T) {
	m, _, _, _ := newTestMaker(t)
	m.onTick(context.Background())

	sellBefore, buyBefore := m.Budgets()
	price := decimal.NewFromInt(10)
	amount := decimal.NewFromInt(2)

	m.OnFill("A-USDT", domain.SideBuy, price, amount)
	m.drainInbox()

	sellAfter, buyAfter := m.Budgets()
	if !buyAfter["A-USDT"].Equal(buyBefore["A-USDT"].Sub(amount.Mul(price))) {
		t.Errorf("buy budget = %s, want %s",
			buyAfter["A-USDT"], buyBefore["A-USDT"].Sub(amount.Mul(price)))
	}
	if !sellAfter["A-USDT"].Equal(sellBefore["A-USDT"].Add(amount)) {
		t.Errorf("sell budget = %s, want %s",
			sellAfter["A-USDT"], sellBefore["A-USDT"].Add(amount))
	}
}

func TestMaker_NotifierReceivesFillMessage(t *testing.T) {
	m, _, _, _ := newTestMaker(t)
	var msgs []string
	m.SetNotifier(func(msg string) { msgs = append(msgs, msg) })

	m.processFill("A-USDT", domain.SideBuy, decimal.NewFromInt(10), decimal.NewFromInt(1))

	if len(msgs) != 1 {
		t.Fatalf("notifier calls = %d, want 1", len(msgs))
	}
}

func TestMaker_MissingMidSkipsMarket(t *testing.T) {
	m, prices, _, gw := newTestMaker(t)
	m.onTick(context.Background()) // ready

	gw.submitted = nil
	gw.inflight = map[string]domain.InFlightOrder{}
	delete(prices.mids, "A-USDT")
	m.ResetRefreshTimers()
	m.drainInbox()

	m.onTick(context.Background())

	if len(gw.submitted) != 0 {
		t.Errorf("submitted %d orders with no mid price, want 0", len(gw.submitted))
	}
}

func TestMaker_StatusAccessors(t *testing.T) {
	m, _, _, _ := newTestMaker(t)
	m.onTick(context.Background())

	props := m.Proposals()
	if _, ok := props["A-USDT"]; !ok {
		t.Error("expected a proposal for A-USDT")
	}
	// Single tick: not enough samples for a defined volatility yet.
	if v := m.MarketVolatility("A-USDT"); !math.IsNaN(v) {
		t.Errorf("volatility = %v, want NaN", v)
	}
}
