// Package stream broadcasts ledger events to websocket subscribers while
// a run executes. The hub is read-only from the client side: subscribers
// only ever receive, nothing a client sends can reach the engine.
package stream

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

// EventPayload is the wire form of one ledger event.
type EventPayload struct {
	EventID     string            `json:"event_id"`
	Seq         int64             `json:"seq"`
	TimestampMs int64             `json:"timestamp_ms"`
	Type        string            `json:"event_type"`
	PositionID  string            `json:"position_id"`
	Reason      string            `json:"reason,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// Subscriber is one receiving endpoint attached to a hub.
type Subscriber struct {
	ch      chan []byte
	dropped atomic.Int64
}

// Messages returns the subscriber's receive channel. It is closed on
// Unsubscribe and on hub Close.
func (s *Subscriber) Messages() <-chan []byte {
	return s.ch
}

// Dropped returns how many payloads were discarded because the
// subscriber's buffer was full.
func (s *Subscriber) Dropped() int64 {
	return s.dropped.Load()
}

// Hub fans ledger events out to subscribers. Publish never blocks the
// engine: a subscriber that cannot keep up loses payloads instead of
// stalling the simulation.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscriber]struct{})}
}

// Publish serializes the event once and hands it to every subscriber.
func (h *Hub) Publish(e *domain.Event) {
	payload := EventPayload{
		EventID:     e.EventID,
		Seq:         e.Seq,
		TimestampMs: e.TimestampMs,
		Type:        string(e.Type),
		PositionID:  e.PositionID,
		Reason:      string(e.Reason),
		Meta:        e.Meta,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for sub := range h.subs {
		select {
		case sub.ch <- data:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Subscribe attaches a new subscriber with the given buffer size.
// Returns nil if the hub is already closed.
func (h *Hub) Subscribe(buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 256
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	sub := &Subscriber{ch: make(chan []byte, buffer)}
	h.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe detaches a subscriber and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}

// Close detaches every subscriber and rejects further publishes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
}

// SubscriberCount returns the number of attached subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
