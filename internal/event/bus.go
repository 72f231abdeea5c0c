package event

import (
	"sync"
)

// Handler consumes a published event. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(Event)

// Bus is a typed publish/subscribe dispatcher for order lifecycle events.
// Subscriptions are keyed by Kind; there is no wildcard subscription and
// no dynamic event registration.
type Bus struct {
	mu   sync.RWMutex
	subs map[Kind][]Handler
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Kind][]Handler)}
}

// Subscribe registers a handler for one event kind.
func (b *Bus) Subscribe(k Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[k] = append(b.subs[k], h)
}

// Publish delivers the event to all handlers subscribed to its kind, in
// subscription order.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	handlers := b.subs[ev.EventKind()]
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
