package events

import (
	"sync"
	"time"
)

// Event is one published occurrence: a type tag, the component that raised
// it, and its typed payload.
type Event struct {
	Type      EventType
	Module    string
	Timestamp time.Time
	Data      EventData
}

// Handler receives events a subscriber asked for. It must not block for
// long — Emit calls handlers synchronously on the publisher's goroutine,
// matching spec.md §5's "polling worker emissions go straight to the event
// sink and are synchronous at publish time".
type Handler func(*Event)

// Sink is the interface the polling manager, the history recorder, and the
// streaming workers publish through. The core never specifies transport;
// Bus is the in-process implementation the HTTP SSE handler subscribes to,
// but a caller wiring the engine into something else only needs to satisfy
// this interface.
type Sink interface {
	Publish(eventType EventType, module string, data EventData)
}

// Bus is a simple synchronous pub/sub dispatcher, grounded on the teacher's
// events.Bus usage from internal/clients/tradernet/websocket_client.go and
// internal/server/events_stream.go (Emit/Subscribe over a type-keyed
// handler map guarded by a single mutex).
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers a handler for one event type. There is no
// unsubscribe; subscribers that need to stop listening should check a
// closed-over done channel or context inside the handler itself, the way
// the SSE handler in the teacher's events_stream.go drops a disconnected
// client's events by simply returning without forwarding.
func (b *Bus) Subscribe(eventType EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Emit publishes an event to every handler registered for its type.
func (b *Bus) Emit(eventType EventType, module string, data EventData) {
	b.mu.RLock()
	hs := make([]Handler, len(b.handlers[eventType]))
	copy(hs, b.handlers[eventType])
	b.mu.RUnlock()

	ev := &Event{Type: eventType, Module: module, Timestamp: time.Now(), Data: data}
	for _, h := range hs {
		h(ev)
	}
}

// Publish implements Sink.
func (b *Bus) Publish(eventType EventType, module string, data EventData) {
	b.Emit(eventType, module, data)
}
