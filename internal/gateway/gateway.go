package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"maker_go/internal/domain"
	"maker_go/internal/event"
	"maker_go/internal/infra"
	"maker_go/internal/storage"
)

// OrderGateway drives order submission and cancellation against a Venue.
// SubmitOrder and CancelOrder return immediately; the network action runs
// asynchronously and the outcome is reconciled through typed events on
// the bus. The in-flight record is created before any network action so
// budget bookkeeping and duplicate detection can reason about it at once.
type OrderGateway struct {
	venue Venue
	bus   *event.Bus
	store *storage.OrderStore // optional, nil disables persistence

	mu       sync.RWMutex
	inflight map[string]*domain.InFlightOrder

	failureCount   int
	duplicateCount int

	wg sync.WaitGroup
}

// NewOrderGateway creates a gateway over the given venue. store may be
// nil if crash recovery is not wanted.
func NewOrderGateway(venue Venue, bus *event.Bus, store *storage.OrderStore) *OrderGateway {
	return &OrderGateway{
		venue:    venue,
		bus:      bus,
		store:    store,
		inflight: make(map[string]*domain.InFlightOrder),
	}
}

// SubmitOrder issues an order submission and returns the locally
// generated client order id synchronously. The venue call happens on its
// own goroutine; success publishes OrderCreated, a non-cancellation
// failure publishes exactly one OrderFailed and drops the record.
func (g *OrderGateway) SubmitOrder(ctx context.Context, pair, side, orderType string, price, amount decimal.Decimal) string {
	clientID := uuid.New().String()

	o := &domain.InFlightOrder{
		ClientID:      clientID,
		Pair:          pair,
		Side:          side,
		Type:          orderType,
		Price:         price,
		Amount:        amount,
		Status:        domain.StatusSubmitted,
		CreatedUnixMs: time.Now().UnixMilli(),
	}

	g.mu.Lock()
	for _, other := range g.inflight {
		if other.Pair == pair && other.Side == side {
			g.duplicateCount++
			slog.Warn("Duplicate submission for market side",
				slog.String("pair", pair), slog.String("side", side),
				slog.String("existing", other.ClientID))
			break
		}
	}
	g.inflight[clientID] = o
	g.mu.Unlock()
	g.persist(*o)

	g.wg.Add(1)
	go g.executeSubmit(ctx, *o)

	return clientID
}

func (g *OrderGateway) executeSubmit(ctx context.Context, o domain.InFlightOrder) {
	defer g.wg.Done()

	venueID, err := g.venue.PlaceOrder(ctx, o)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Shutdown, not a venue failure. The record stays persisted
			// for reconciliation on restart.
			slog.Info("Order submission aborted by shutdown",
				slog.String("client_id", o.ClientID))
			return
		}

		slog.Warn("NETWORK: order submission failed",
			slog.String("pair", o.Pair),
			slog.String("side", o.Side),
			slog.String("client_id", o.ClientID),
			slog.Any("error", err))

		g.mu.Lock()
		delete(g.inflight, o.ClientID)
		g.failureCount++
		g.mu.Unlock()
		g.unpersist(o.ClientID)

		infra.MetricOrderFailed()
		g.bus.Publish(event.OrderFailed{
			ClientID: o.ClientID,
			Pair:     o.Pair,
			Side:     o.Side,
			Reason:   err.Error(),
			TsUnixMs: time.Now().UnixMilli(),
		})
		return
	}

	g.mu.Lock()
	if tracked, ok := g.inflight[o.ClientID]; ok {
		tracked.Status = domain.StatusAcknowledged
		tracked.VenueID = venueID
		o = *tracked
	}
	g.mu.Unlock()
	g.persist(o)

	infra.MetricOrderPlaced(o.Side)
	g.bus.Publish(event.OrderCreated{
		ClientID: o.ClientID,
		Pair:     o.Pair,
		Side:     o.Side,
		Type:     o.Type,
		Price:    o.Price,
		Amount:   o.Amount,
		TsUnixMs: time.Now().UnixMilli(),
	})
}

// CancelOrder issues an asynchronous cancel for a tracked order.
// Confirmation publishes OrderCancelled and retires the record.
func (g *OrderGateway) CancelOrder(ctx context.Context, pair, clientID string) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		if err := g.venue.CancelOrder(ctx, pair, clientID); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			slog.Warn("NETWORK: order cancel failed",
				slog.String("pair", pair),
				slog.String("client_id", clientID),
				slog.Any("error", err))
			return
		}

		var side string
		g.mu.Lock()
		if tracked, ok := g.inflight[clientID]; ok {
			tracked.Status = domain.StatusCancelled
			side = tracked.Side
			delete(g.inflight, clientID)
		}
		g.mu.Unlock()
		g.unpersist(clientID)

		infra.MetricCancel()
		g.bus.Publish(event.OrderCancelled{
			ClientID: clientID,
			Pair:     pair,
			Side:     side,
			TsUnixMs: time.Now().UnixMilli(),
		})
	}()
}

// NotifyFill reconciles a venue-side fill into the tracking set and
// publishes OrderFilled. Venue implementations (or their feeds) call this.
func (g *OrderGateway) NotifyFill(clientID string, price, amount decimal.Decimal) {
	g.mu.Lock()
	tracked, ok := g.inflight[clientID]
	if !ok {
		g.mu.Unlock()
		slog.Warn("Fill for unknown order ignored", slog.String("client_id", clientID))
		return
	}
	tracked.Status = domain.StatusFilled
	filled := *tracked
	delete(g.inflight, clientID)
	g.mu.Unlock()
	g.unpersist(clientID)

	infra.MetricFill(filled.Side)
	g.bus.Publish(event.OrderFilled{
		ClientID: filled.ClientID,
		Pair:     filled.Pair,
		Side:     filled.Side,
		Price:    price,
		Amount:   amount,
		TsUnixMs: time.Now().UnixMilli(),
	})
}

// InFlightOrders returns a copy of the active tracking set.
func (g *OrderGateway) InFlightOrders() map[string]domain.InFlightOrder {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[string]domain.InFlightOrder, len(g.inflight))
	for id, o := range g.inflight {
		out[id] = *o
	}
	return out
}

// TrackingStates returns the serializable snapshot of in-flight orders
// for the persistence collaborator.
func (g *OrderGateway) TrackingStates() map[string]domain.InFlightOrder {
	return g.InFlightOrders()
}

// RestoreTrackingStates installs a previously persisted snapshot. Must be
// called before the first tick; terminal orders in the snapshot are
// skipped.
func (g *OrderGateway) RestoreTrackingStates(states map[string]domain.InFlightOrder) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, o := range states {
		if o.IsTerminal() {
			continue
		}
		restored := o
		g.inflight[id] = &restored
	}
}

// FailureCount returns the number of failed submissions (diagnostics).
func (g *OrderGateway) FailureCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.failureCount
}

// DuplicateCount returns the number of duplicate same-side submissions
// observed (diagnostics).
func (g *OrderGateway) DuplicateCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.duplicateCount
}

// Wait blocks until all outstanding venue actions have finished. Used on
// shutdown.
func (g *OrderGateway) Wait() {
	g.wg.Wait()
}

func (g *OrderGateway) persist(o domain.InFlightOrder) {
	if g.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.store.SaveTrackingState(ctx, o, time.Now().UnixMilli()); err != nil {
		slog.Warn("Failed to persist tracking state",
			slog.String("client_id", o.ClientID), slog.Any("error", err))
	}
}

func (g *OrderGateway) unpersist(clientID string) {
	if g.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.store.DeleteTrackingState(ctx, clientID); err != nil {
		slog.Warn("Failed to delete tracking state",
			slog.String("client_id", clientID), slog.Any("error", err))
	}
}
