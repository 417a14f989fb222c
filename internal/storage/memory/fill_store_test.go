package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

func TestFillStore_InsertBulkPreservesEmissionOrder(t *testing.T) {
	store := NewFillStore()
	ctx := context.Background()

	fills := []*domain.Fill{
		{FillID: "f0", EventID: "e0", PositionID: "p1", QuantityDelta: 10},
		{FillID: "f1", EventID: "e1", PositionID: "p1", QuantityDelta: -5},
		{FillID: "f2", EventID: "e2", PositionID: "p2", QuantityDelta: 8},
	}
	if err := store.InsertBulk(ctx, "run1", fills); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	for i, f := range got {
		if f.FillID != fills[i].FillID {
			t.Errorf("index %d: got %s, want %s (emission order)", i, f.FillID, fills[i].FillID)
		}
	}

	byPos, err := store.GetByPositionID(ctx, "run1", "p1")
	if err != nil {
		t.Fatalf("GetByPositionID failed: %v", err)
	}
	if len(byPos) != 2 || byPos[1].QuantityDelta != -5 {
		t.Errorf("unexpected fills for p1: %+v", byPos)
	}
}

func TestFillStore_DuplicateFillID(t *testing.T) {
	store := NewFillStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, "run1", []*domain.Fill{{FillID: "f0", EventID: "e0", PositionID: "p1"}}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, "run1", []*domain.Fill{{FillID: "f0", EventID: "e9", PositionID: "p9"}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}
