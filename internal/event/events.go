package event

import (
	"github.com/shopspring/decimal"
)

// Kind identifies the event type.
type Kind uint16

const (
	KindOrderCreated Kind = iota + 1
	KindOrderFilled
	KindOrderFailed
	KindOrderCancelled
)

func (k Kind) String() string {
	switch k {
	case KindOrderCreated:
		return "ORDER_CREATED"
	case KindOrderFilled:
		return "ORDER_FILLED"
	case KindOrderFailed:
		return "ORDER_FAILED"
	case KindOrderCancelled:
		return "ORDER_CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Event is the interface for all order lifecycle events. Each kind has a
// fixed payload struct; there is no reflection-based dispatch.
type Event interface {
	EventKind() Kind
	OrderID() string
}

// OrderCreated fires when the venue acknowledges a submission.
type OrderCreated struct {
	ClientID string
	Pair     string
	Side     string
	Type     string
	Price    decimal.Decimal
	Amount   decimal.Decimal
	TsUnixMs int64
}

func (e OrderCreated) EventKind() Kind { return KindOrderCreated }
func (e OrderCreated) OrderID() string { return e.ClientID }

// OrderFilled fires when an order is filled on the venue.
type OrderFilled struct {
	ClientID string
	Pair     string
	Side     string
	Price    decimal.Decimal
	Amount   decimal.Decimal
	TsUnixMs int64
}

func (e OrderFilled) EventKind() Kind { return KindOrderFilled }
func (e OrderFilled) OrderID() string { return e.ClientID }

// OrderFailed fires when a submission fails for a non-cancellation reason.
// Exactly one OrderFailed fires per failed submission.
type OrderFailed struct {
	ClientID string
	Pair     string
	Side     string
	Reason   string
	TsUnixMs int64
}

func (e OrderFailed) EventKind() Kind { return KindOrderFailed }
func (e OrderFailed) OrderID() string { return e.ClientID }

// OrderCancelled fires when a cancel request is confirmed by the venue.
type OrderCancelled struct {
	ClientID string
	Pair     string
	Side     string
	TsUnixMs int64
}

func (e OrderCancelled) EventKind() Kind { return KindOrderCancelled }
func (e OrderCancelled) OrderID() string { return e.ClientID }
