package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"maker_go/internal/domain"
	"maker_go/internal/infra"
	"maker_go/pkg/quant"
)

// RESTVenue talks to a live venue over its REST API. Requests pass
// through the shared rate limiters and a circuit breaker so a degraded
// venue does not get hammered.
type RESTVenue struct {
	name    string
	baseURL string
	key     string
	secret  string

	makerFee decimal.Decimal
	takerFee decimal.Decimal
	rules    map[string]domain.TradingRule

	client  *http.Client
	breaker *infra.CircuitBreaker
}

// NewRESTVenue creates a venue client from config. Trading rules come
// from config rather than a venue metadata fetch.
func NewRESTVenue(cfg *infra.Config) *RESTVenue {
	return &RESTVenue{
		name:     cfg.Venue.Name,
		baseURL:  cfg.Venue.RestURL,
		key:      cfg.Venue.AccessKey,
		secret:   cfg.Venue.SecretKey,
		makerFee: cfg.MakerFeeDec(),
		takerFee: cfg.TakerFeeDec(),
		rules:    cfg.TradingRules(),
		client:   &http.Client{Timeout: 10 * time.Second},
		breaker:  infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig(cfg.Venue.Name)),
	}
}

// Name implements Venue.
func (v *RESTVenue) Name() string { return v.name }

// TradingRule implements Venue.
func (v *RESTVenue) TradingRule(pair string) (domain.TradingRule, bool) {
	rule, ok := v.rules[pair]
	return rule, ok
}

// QuantizePrice implements Venue.
func (v *RESTVenue) QuantizePrice(pair string, price decimal.Decimal) decimal.Decimal {
	rule, ok := v.rules[pair]
	if !ok {
		return price
	}
	return quant.QuantizeFloor(price, rule.PriceStep)
}

// QuantizeAmount implements Venue.
func (v *RESTVenue) QuantizeAmount(pair string, amount decimal.Decimal) decimal.Decimal {
	rule, ok := v.rules[pair]
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
func (v *RESTVenue) EstimateFee(isMaker bool) decimal.Decimal {
	if isMaker {
		return v.makerFee
	}
	return v.takerFee
}

type balancesResponse struct {
	Balances map[string]struct {
		Available string `json:"available"`
		Total     string `json:"total"`
	} `json:"balances"`
}

// AllBalances implements Venue.
func (v *RESTVenue) AllBalances(ctx context.Context) (map[string]domain.AssetBalance, error) {
	infra.GetAccountLimiter().Wait()

	body, err := v.do(ctx, http.MethodGet, "/balances", nil)
	if err != nil {
		return nil, err
	}

	var resp balancesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode balances: %w", err)
	}

	out := make(map[string]domain.AssetBalance, len(resp.Balances))
	for asset, b := range resp.Balances {
		avail, err := decimal.NewFromString(b.Available)
		if err != nil {
			slog.Warn("DATA: unparseable balance, skipping",
				slog.String("asset", asset),
				slog.String("available", b.Available))
			continue
		}
		total, err := decimal.NewFromString(b.Total)
		if err != nil {
			total = avail
		}
		out[asset] = domain.AssetBalance{Available: avail, Total: total}
	}
	return out, nil
}

type placeOrderRequest struct {
	ClientOrderID string `json:"client_order_id"`
	Pair          string `json:"pair"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Price         string `json:"price"`
	Amount        string `json:"amount"`
}

type placeOrderResponse struct {
	OrderID string `json:"order_id"`
}

// PlaceOrder implements Venue.
func (v *RESTVenue) PlaceOrder(ctx context.Context, o domain.InFlightOrder) (string, error) {
	infra.GetOrderLimiter().Wait()

	req := placeOrderRequest{
		ClientOrderID: o.ClientID,
		Pair:          o.Pair,
		Side:          o.Side,
		Type:          o.Type,
		Price:         o.Price.String(),
		Amount:        o.Amount.String(),
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	body, err := v.do(ctx, http.MethodPost, "/orders", payload)
	if err != nil {
		return "", err
	}

	var resp placeOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}
	if resp.OrderID == "" {
		return "", fmt.Errorf("venue returned empty order id for %s", o.ClientID)
	}
	return resp.OrderID, nil
}

// CancelOrder implements Venue.
func (v *RESTVenue) CancelOrder(ctx context.Context, pair, clientID string) error {
	infra.GetOrderLimiter().Wait()

	path := "/orders/" + clientID + "?pair=" + pair
	_, err := v.do(ctx, http.MethodDelete, path, nil)
	return err
}

// do performs an authenticated request behind the circuit breaker.
func (v *RESTVenue) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if !v.breaker.Allow() {
		return nil, fmt.Errorf("circuit breaker open for %s", v.name)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", v.key)
	req.Header.Set("X-API-SECRET", v.secret)

	resp, err := v.client.Do(req)
	if err != nil {
		v.breaker.RecordFailure()
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		v.breaker.RecordFailure()
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		v.breaker.RecordFailure()
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(body))
	}

	v.breaker.RecordSuccess()
	return body, nil
}
