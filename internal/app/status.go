package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"maker_go/internal/domain"
	"maker_go/internal/gateway"
	"maker_go/internal/infra"
	"maker_go/internal/strategy"
)

// StatusReporter periodically logs a human-readable summary of each
// market and the open orders. Formatting lives here; the maker and
// gateway only expose read accessors.
type StatusReporter struct {
	cfg     *infra.Config
	maker   *strategy.MarketMaker
	gateway *gateway.OrderGateway
}

func NewStatusReporter(cfg *infra.Config, maker *strategy.MarketMaker, gw *gateway.OrderGateway) *StatusReporter {
	return &StatusReporter{cfg: cfg, maker: maker, gateway: gw}
}

// Run logs the status table on the configured cadence until ctx ends.
func (r *StatusReporter) Run(ctx context.Context) {
	interval := time.Duration(r.cfg.Polling.StatusIntervalSecs) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *StatusReporter) report() {
	var sb strings.Builder
	sb.WriteString("\n  Market      Volatility  BuyBudget       SellBudget\n")

	sellBudgets, buyBudgets := r.maker.Budgets()
	pairs := make([]string, 0, len(r.cfg.Markets()))
	for _, m := range r.cfg.Markets() {
		pairs = append(pairs, m.Pair())
	}
	sort.Strings(pairs)

	for _, pair := range pairs {
		vol := r.maker.MarketVolatility(pair)
		volStr := "n/a"
		if !math.IsNaN(vol) {
			volStr = fmt.Sprintf("%.2f%%", vol*100)
		}
		sb.WriteString(fmt.Sprintf("  %-11s %-11s %-15s %s\n",
			pair, volStr, buyBudgets[pair], sellBudgets[pair]))
	}

	orders := r.gateway.InFlightOrders()
	sb.WriteString(fmt.Sprintf("  Open orders: %d\n", len(orders)))
	now := time.Now().UnixMilli()
	for _, o := range sortedOrders(orders) {
		age := time.Duration(now-o.CreatedUnixMs) * time.Millisecond
		sb.WriteString(fmt.Sprintf("    %-11s %-4s %-12s %s @ %s  age=%s\n",
			o.Pair, o.Side, o.Status, o.Amount, o.Price, age.Truncate(time.Second)))
	}

	if n := r.gateway.FailureCount(); n > 0 {
		sb.WriteString(fmt.Sprintf("  WARNING: %d failed submissions since start\n", n))
	}

	slog.Info(sb.String())
}

func sortedOrders(m map[string]domain.InFlightOrder) []domain.InFlightOrder {
	out := make([]domain.InFlightOrder, 0, len(m))
	for _, o := range m {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pair != out[j].Pair {
			return out[i].Pair < out[j].Pair
		}
		return out[i].ClientID < out[j].ClientID
	})
	return out
}
