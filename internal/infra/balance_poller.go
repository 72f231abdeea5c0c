package infra

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"maker_go/internal/domain"
)

// BalanceFetcher fetches the full per-asset balance map from the venue.
type BalanceFetcher func(ctx context.Context) (map[string]domain.AssetBalance, error)

// BalancePoller polls account balances on a fixed cadence. Like the
// mid-price feed, the cache is replaced wholesale and failures are
// non-fatal: the stale snapshot stays readable until the next success.
type BalancePoller struct {
	fetch        BalanceFetcher
	pollInterval time.Duration

	mu       sync.RWMutex
	balances map[string]domain.AssetBalance
	polled   bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBalancePoller creates a poller over the given fetch function.
func NewBalancePoller(fetch BalanceFetcher, pollInterval time.Duration) *BalancePoller {
	return &BalancePoller{
		fetch:        fetch,
		pollInterval: pollInterval,
		balances:     make(map[string]domain.AssetBalance),
	}
}

// Start begins polling, fetching once immediately.
func (p *BalancePoller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	if err := p.poll(ctx); err != nil {
		slog.Warn("Initial balance fetch failed", slog.Any("error", err))
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Balance polling stopped")
				return
			case <-ticker.C:
				if err := p.poll(ctx); err != nil {
					slog.Warn("Balance fetch failed", slog.Any("error", err))
				}
			}
		}
	}()
}

// Stop terminates the polling task and waits for it to exit.
func (p *BalancePoller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *BalancePoller) poll(ctx context.Context) error {
	fresh, err := p.fetch(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.balances = fresh
	p.polled = true
	p.mu.Unlock()

	return nil
}

// Balances returns a copy of the current balance snapshot.
func (p *BalancePoller) Balances() map[string]domain.AssetBalance {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]domain.AssetBalance, len(p.balances))
	for asset, bal := range p.balances {
		out[asset] = bal
	}
	return out
}

// Ready reports whether at least one successful poll has happened.
func (p *BalancePoller) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.polled
}
