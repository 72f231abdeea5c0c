package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// midPricesResponse is the bulk mid-price payload from the market data
// collaborator. Prices arrive as strings and never pass through float64.
type midPricesResponse struct {
	Mids map[string]string `json:"mids"`
}

// MidPriceFeed polls the venue for mid-prices of all markets on a fixed
// cadence. The cache is replaced wholesale on every successful poll so a
// reader never observes a half-updated map. Poll failures are logged and
// retried on the next cycle; the stale cache stays readable.
type MidPriceFeed struct {
	apiURL       string
	pollInterval time.Duration
	httpClient   *http.Client

	mu       sync.RWMutex
	mids     map[string]decimal.Decimal
	lastPoll time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMidPriceFeed creates a poller against the collaborator's bulk
// mid-price endpoint.
func NewMidPriceFeed(restURL string, pollInterval time.Duration) *MidPriceFeed {
	return &MidPriceFeed{
		apiURL:       restURL + "/markets/mid",
		pollInterval: pollInterval,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		mids: make(map[string]decimal.Decimal),
	}
}

// Start begins polling. The first fetch happens immediately; a failure
// there is non-fatal.
func (f *MidPriceFeed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)

	if err := f.poll(ctx); err != nil {
		slog.Warn("Initial mid-price fetch failed", slog.Any("error", err))
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		ticker := time.NewTicker(f.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Mid-price polling stopped")
				return
			case <-ticker.C:
				if err := f.poll(ctx); err != nil {
					slog.Warn("Mid-price fetch failed", slog.Any("error", err))
				}
			}
		}
	}()
}

// Stop terminates the polling task and waits for it to exit.
func (f *MidPriceFeed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
}

func (f *MidPriceFeed) poll(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.apiURL, nil)
	if err != nil {
		return err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mid-price endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var parsed midPricesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("failed to parse mid-price response: %w", err)
	}

	fresh := make(map[string]decimal.Decimal, len(parsed.Mids))
	for pair, raw := range parsed.Mids {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			slog.Warn("Skipping unparseable mid-price",
				slog.String("pair", pair), slog.String("raw", raw))
			continue
		}
		if price.Sign() > 0 {
			fresh[pair] = price
		}
	}

	f.mu.Lock()
	f.mids = fresh
	f.lastPoll = time.Now()
	f.mu.Unlock()

	return nil
}

// MidPrices returns a copy of the current mid-price cache.
func (f *MidPriceFeed) MidPrices() map[string]decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(f.mids))
	for pair, price := range f.mids {
		out[pair] = price
	}
	return out
}

// Ready reports whether at least one successful poll has happened.
func (f *MidPriceFeed) Ready() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.mids) > 0
}
