package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// tickerMessage is a single mid-price push from the venue stream.
// json.Number keeps the price out of float64.
type tickerMessage struct {
	Type string      `json:"type"` // "ticker"
	Pair string      `json:"pair"`
	Mid  json.Number `json:"mid"`
}

// WSMidPriceFeed consumes a mid-price push stream over the BaseWSWorker
// (reconnect, backoff, ping handled there). It maintains the same
// wholesale-replaced cache contract as MidPriceFeed: every update builds
// a fresh map so readers never see a torn write.
type WSMidPriceFeed struct {
	base  *BaseWSWorker
	wsURL string
	pairs []string

	mu   sync.RWMutex
	mids map[string]decimal.Decimal
}

// NewWSMidPriceFeed creates a push feed for the given pairs.
func NewWSMidPriceFeed(wsURL string, pairs []string) *WSMidPriceFeed {
	f := &WSMidPriceFeed{
		wsURL: wsURL,
		pairs: pairs,
		mids:  make(map[string]decimal.Decimal),
	}
	f.base = NewBaseWSWorker(f)
	return f
}

// ID returns the worker identifier.
func (f *WSMidPriceFeed) ID() string { return "MIDPRICE_WS" }

// GetURL returns the stream endpoint.
func (f *WSMidPriceFeed) GetURL() string { return f.wsURL }

// Start opens the stream.
func (f *WSMidPriceFeed) Start(ctx context.Context) {
	f.base.Start(ctx)
}

// Stop closes the stream.
func (f *WSMidPriceFeed) Stop() {
	f.base.Stop()
}

// OnConnect subscribes to ticker updates for the configured pairs.
func (f *WSMidPriceFeed) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	sub := map[string]interface{}{
		"op":    "subscribe",
		"topic": "ticker",
		"pairs": f.pairs,
		"id":    fmt.Sprintf("maker-%d", time.Now().UnixNano()),
	}
	b, _ := json.Marshal(sub)
	return f.base.Write(websocket.TextMessage, b)
}

// OnMessage handles incoming ticker pushes.
func (f *WSMidPriceFeed) OnMessage(ctx context.Context, msg []byte) {
	var tick tickerMessage
	if err := json.Unmarshal(msg, &tick); err != nil || tick.Type != "ticker" {
		return
	}

	price, err := decimal.NewFromString(tick.Mid.String())
	if err != nil || price.Sign() <= 0 {
		return
	}

	f.mu.Lock()
	fresh := make(map[string]decimal.Decimal, len(f.mids)+1)
	for pair, p := range f.mids {
		fresh[pair] = p
	}
	fresh[tick.Pair] = price
	f.mids = fresh
	f.mu.Unlock()
}

// OnPing keeps the connection alive with a control frame.
func (f *WSMidPriceFeed) OnPing(ctx context.Context, conn *websocket.Conn) error {
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

// MidPrices returns a copy of the current mid-price cache.
func (f *WSMidPriceFeed) MidPrices() map[string]decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(f.mids))
	for pair, price := range f.mids {
		out[pair] = price
	}
	return out
}

// Ready reports whether any ticker has arrived yet.
func (f *WSMidPriceFeed) Ready() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.mids) > 0
}
