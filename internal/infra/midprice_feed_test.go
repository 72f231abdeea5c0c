package infra

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"maker_go/internal/domain"
)

func TestMidPriceFeed_PollParsesAndFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/mid" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"mids": {
			"BTC-USDT": "50000.5",
			"ETH-USDT": "3000",
			"BAD-USDT": "oops",
			"ZERO-USDT": "0"
		}}`))
	}))
	defer srv.Close()

	f := NewMidPriceFeed(srv.URL, time.Hour)
	if err := f.poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}

	mids := f.MidPrices()
	if !mids["BTC-USDT"].Equal(decimal.RequireFromString("50000.5")) {
		t.Errorf("BTC-USDT = %s, want 50000.5", mids["BTC-USDT"])
	}
	if _, ok := mids["BAD-USDT"]; ok {
		t.Error("unparseable mid should be skipped")
	}
	if _, ok := mids["ZERO-USDT"]; ok {
		t.Error("non-positive mid should be skipped")
	}
	if !f.Ready() {
		t.Error("feed should be ready after a successful poll")
	}
}

func TestMidPriceFeed_FailureKeepsStaleCache(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"mids": {"BTC-USDT": "100"}}`))
	}))
	defer srv.Close()

	f := NewMidPriceFeed(srv.URL, time.Hour)
	if err := f.poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}

	fail.Store(true)
	if err := f.poll(context.Background()); err == nil {
		t.Fatal("expected poll error while server failing")
	}

	// The previous snapshot must survive the failed poll.
	if !f.MidPrices()["BTC-USDT"].Equal(decimal.NewFromInt(100)) {
		t.Error("stale cache lost after failed poll")
	}
}

func TestMidPriceFeed_NotReadyBeforeFirstPoll(t *testing.T) {
	f := NewMidPriceFeed("http://localhost:0", time.Hour)
	if f.Ready() {
		t.Error("feed ready before any poll")
	}
}

func TestBalancePoller_PollAndReady(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) (map[string]domain.AssetBalance, error) {
		calls++
		return map[string]domain.AssetBalance{
			"BTC": {Available: decimal.NewFromInt(1), Total: decimal.NewFromInt(2)},
		}, nil
	}

	p := NewBalancePoller(fetch, time.Hour)
	if p.Ready() {
		t.Error("poller ready before any poll")
	}
	if err := p.poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !p.Ready() {
		t.Error("poller not ready after successful poll")
	}
	if got := p.Balances()["BTC"]; !got.Available.Equal(decimal.NewFromInt(1)) {
		t.Errorf("BTC available = %s, want 1", got.Available)
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1", calls)
	}
}

func TestBalancePoller_FetchErrorNonFatal(t *testing.T) {
	fetch := func(ctx context.Context) (map[string]domain.AssetBalance, error) {
		return nil, errors.New("venue down")
	}

	p := NewBalancePoller(fetch, time.Hour)
	if err := p.poll(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if p.Ready() {
		t.Error("poller must not report ready after only failed polls")
	}
}
