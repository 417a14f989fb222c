package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

func TestEventStore_InsertBulkAndGet(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	events := []*domain.Event{
		{EventID: "e2", Seq: 2, TimestampMs: 3000, Type: domain.EventPositionClosed, PositionID: "p1", Reason: domain.ReasonStrategyExit},
		{EventID: "e0", Seq: 0, TimestampMs: 1000, Type: domain.EventPositionOpened, PositionID: "p1", Meta: domain.Meta{"size": "10"}},
		{EventID: "e1", Seq: 1, TimestampMs: 2000, Type: domain.EventPositionPartialExit, PositionID: "p1", Reason: domain.ReasonPartialExit},
	}
	if err := store.InsertBulk(ctx, "run1", events); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	for i, e := range got {
		if e.Seq != int64(i) {
			t.Errorf("index %d has seq %d, want seq order", i, e.Seq)
		}
	}

	// Mutating a returned meta map must not affect stored state.
	got[0].Meta["size"] = "tampered"
	again, _ := store.GetByRunID(ctx, "run1")
	if again[0].Meta["size"] != "10" {
		t.Error("store returned a shared meta map")
	}
}

func TestEventStore_DuplicateSeq(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	first := []*domain.Event{{EventID: "e0", Seq: 0, Type: domain.EventPositionOpened, PositionID: "p1"}}
	if err := store.InsertBulk(ctx, "run1", first); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	dup := []*domain.Event{{EventID: "e0b", Seq: 0, Type: domain.EventPositionOpened, PositionID: "p2"}}
	if err := store.InsertBulk(ctx, "run1", dup); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for duplicate (run, seq), got %v", err)
	}

	// Same seq under a different run is a different ledger.
	if err := store.InsertBulk(ctx, "run2", dup); err != nil {
		t.Errorf("seq 0 in another run should insert, got %v", err)
	}
}

func TestEventStore_GetByPositionID(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	events := []*domain.Event{
		{EventID: "e0", Seq: 0, Type: domain.EventPositionOpened, PositionID: "p1"},
		{EventID: "e1", Seq: 1, Type: domain.EventPositionOpened, PositionID: "p2"},
		{EventID: "e2", Seq: 2, Type: domain.EventPositionClosed, PositionID: "p1", Reason: domain.ReasonEndOfData},
	}
	if err := store.InsertBulk(ctx, "run1", events); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByPositionID(ctx, "run1", "p1")
	if err != nil {
		t.Fatalf("GetByPositionID failed: %v", err)
	}
	if len(got) != 2 || got[0].EventID != "e0" || got[1].EventID != "e2" {
		t.Errorf("unexpected events for p1: %+v", got)
	}
}
