// Package events provides the in-process publish/subscribe channel that
// lifecycle components use to broadcast status to any number of listeners
// (UI progress display, signal-bus bridge, loggers).
package events

import (
	"log/slog"
	"sync"
)

// Event names emitted by the lifecycle core.
const (
	EventBalancesUpdated = "balances-updated"
	EventLoading         = "loading"
	EventStatus          = "status-message"
	EventError           = "error"
	EventOperation       = "operation"
)

// StatusUpdate is the payload for EventStatus and EventOperation events.
type StatusUpdate struct {
	Operation string `json:"operation"`
	Stage     string `json:"stage"`
	Message   string `json:"message,omitempty"`
	TxHash    string `json:"tx_hash,omitempty"`
}

// Listener receives one event payload. Listeners carry no control-flow
// authority: the emitting operation proceeds regardless of what a listener
// does, and a panicking listener never prevents later listeners from running.
type Listener func(payload any)

type subscription struct {
	id int
	fn Listener
}

// Notifier is a synchronous pub/sub relay. Delivery is in subscription
// order on the caller's goroutine. The Notifier owns no state beyond its
// listener table.
type Notifier struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string][]subscription
	logger    *slog.Logger
}

// NewNotifier creates an empty Notifier.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		listeners: make(map[string][]subscription),
		logger:    logger.With(slog.String("component", "events")),
	}
}

// On registers a listener for an event and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (n *Notifier) On(event string, fn Listener) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	n.listeners[event] = append(n.listeners[event], subscription{id: id, fn: fn})

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		subs := n.listeners[event]
		for i, s := range subs {
			if s.id == id {
				n.listeners[event] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers payload to every listener registered for event, in
// subscription order. Each invocation is isolated: a panic in one listener
// is recovered and logged so the remaining listeners still run.
func (n *Notifier) Emit(event string, payload any) {
	n.mu.Lock()
	subs := make([]subscription, len(n.listeners[event]))
	copy(subs, n.listeners[event])
	n.mu.Unlock()

	for _, s := range subs {
		n.deliver(event, s, payload)
	}
}

func (n *Notifier) deliver(event string, s subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("listener panicked",
				slog.String("event", event),
				slog.Any("panic", r),
			)
		}
	}()
	s.fn(payload)
}

// RemoveAll drops every registered listener.
func (n *Notifier) RemoveAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = make(map[string][]subscription)
}
