package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

func testEvent(seq int64) *domain.Event {
	return &domain.Event{
		EventID:     "evt-1",
		Seq:         seq,
		TimestampMs: 1000,
		Type:        domain.EventPositionOpened,
		PositionID:  "pos-1",
		Meta:        domain.Meta{"signal_id": "sig-1"},
	}
}

func TestHub_PublishFansOut(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	a := hub.Subscribe(4)
	b := hub.Subscribe(4)
	if hub.SubscriberCount() != 2 {
		t.Fatalf("SubscriberCount() = %d, want 2", hub.SubscriberCount())
	}

	hub.Publish(testEvent(0))

	for _, sub := range []*Subscriber{a, b} {
		select {
		case data := <-sub.Messages():
			var payload EventPayload
			if err := json.Unmarshal(data, &payload); err != nil {
				t.Fatalf("unmarshal payload: %v", err)
			}
			if payload.Seq != 0 || payload.Type != "POSITION_OPENED" || payload.PositionID != "pos-1" {
				t.Errorf("payload = %+v", payload)
			}
			if payload.Meta["signal_id"] != "sig-1" {
				t.Errorf("meta = %v, want signal_id", payload.Meta)
			}
		default:
			t.Fatal("subscriber received nothing")
		}
	}
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	sub := hub.Subscribe(1)
	hub.Publish(testEvent(0))
	hub.Publish(testEvent(1))
	hub.Publish(testEvent(2))

	if got := sub.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
	if got := len(sub.Messages()); got != 1 {
		t.Errorf("buffered = %d, want 1", got)
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	sub := hub.Subscribe(1)
	hub.Unsubscribe(sub)

	if _, ok := <-sub.Messages(); ok {
		t.Error("expected closed channel after Unsubscribe")
	}
	if hub.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", hub.SubscriberCount())
	}

	// Double-unsubscribe must be a no-op, not a second close.
	hub.Unsubscribe(sub)
}

func TestHub_CloseRejectsNewSubscribers(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(1)
	hub.Close()

	if _, ok := <-sub.Messages(); ok {
		t.Error("expected closed channel after hub Close")
	}
	if hub.Subscribe(1) != nil {
		t.Error("Subscribe() after Close must return nil")
	}

	// Publish after close must not panic.
	hub.Publish(testEvent(0))
}

func TestServeWS_DeliversPayloads(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	srv := httptest.NewServer(ServeWS(hub))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Wait for the server side to register its subscriber.
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("server never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(testEvent(7))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var payload EventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Seq != 7 {
		t.Errorf("Seq = %d, want 7", payload.Seq)
	}
}
