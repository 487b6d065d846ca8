// Package broadcast simulates the cross-window "tourSearchChannel"
// BroadcastChannel the spec's browser runtime uses to propagate
// configuration updates between tabs (spec §6, §9). It is adapted
// from the teacher's websocket Hub (internal/websocket/hub.go):
// the same priority-selected Register/Unregister/broadcast loop,
// generalized from "browser clients over a real socket" to "local
// subscribers over a channel", since this module has no network
// boundary to cross in-process.
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tourscope/internal/logging"
)

// Message types the search runtime exchanges over the channel
// (spec §6: config updates, rebuild notifications).
const (
	MessageTypeConfigUpdated = "config_updated"
	MessageTypeIndexRebuilt  = "index_rebuilt"
	MessageTypePing          = "ping"
)

// Message is one broadcast payload.
type Message struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscriber is a local listener on the channel; Send must not block
// the hub, so subscribers are expected to buffer or drop.
type Subscriber struct {
	ch chan Message
}

// NewSubscriber returns a Subscriber with a small buffer, mirroring
// the teacher's per-client send buffer.
func NewSubscriber() *Subscriber {
	return &Subscriber{ch: make(chan Message, 32)}
}

// C returns the channel to range over.
func (s *Subscriber) C() <-chan Message { return s.ch }

// Hub fans Publish calls out to every registered Subscriber, the same
// shape as the teacher's websocket.Hub generalized away from a
// physical socket.
type Hub struct {
	subscribers map[*Subscriber]bool
	publish     chan Message
	Register    chan *Subscriber
	Unregister  chan *Subscriber
	mu          sync.RWMutex
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		publish:     make(chan Message, 256),
		Register:    make(chan *Subscriber),
		Unregister:  make(chan *Subscriber),
		subscribers: make(map[*Subscriber]bool),
	}
}

// Publish enqueues a message for delivery; it returns immediately.
func (h *Hub) Publish(msgType string, data any) {
	h.publish <- Message{ID: uuid.NewString(), Type: msgType, Data: data, Timestamp: time.Now()}
}

// Run drives the hub until ctx is canceled, using the teacher's
// priority-selected loop: lifecycle events before publishes, shutdown
// before both (spec §9: "listeners and timers must be fully torn down
// on teardown").
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		default:
		}

		select {
		case sub := <-h.Register:
			h.mu.Lock()
			h.subscribers[sub] = true
			h.mu.Unlock()
			continue
		case sub := <-h.Unregister:
			h.removeSubscriber(sub)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		case sub := <-h.Register:
			h.mu.Lock()
			h.subscribers[sub] = true
			h.mu.Unlock()
		case sub := <-h.Unregister:
			h.removeSubscriber(sub)
		case msg := <-h.publish:
			h.deliver(msg)
		}
	}
}

func (h *Hub) removeSubscriber(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.ch)
	}
}

func (h *Hub) deliver(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		select {
		case sub.ch <- msg:
		default:
			logging.Warn().Str("message_type", msg.Type).Msg("broadcast: subscriber buffer full, dropping message")
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	count := len(h.subscribers)
	for sub := range h.subscribers {
		close(sub.ch)
		delete(h.subscribers, sub)
	}
	logging.Info().Int("subscribers_closed", count).Msg("broadcast: hub shut down")
}
