package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

func TestBlueprintStore_InsertAndGet(t *testing.T) {
	store := NewBlueprintStore()
	ctx := context.Background()

	b := &domain.TradeBlueprint{
		SignalID:      "sig1",
		ContractID:    "mint1",
		EntryTime:     1000,
		EntryPriceRaw: 0.5,
		PartialExits: []domain.PartialExitLevel{
			{Time: 2000, TargetMultiple: 2.0, FractionOfOriginal: 0.5, RawPrice: 1.0},
		},
	}

	if err := store.Insert(ctx, b); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetBySignalID(ctx, "sig1")
	if err != nil {
		t.Fatalf("GetBySignalID failed: %v", err)
	}
	if got.EntryPriceRaw != 0.5 || len(got.PartialExits) != 1 {
		t.Errorf("stored blueprint mismatch: %+v", got)
	}

	// Mutating the returned copy must not affect stored state.
	got.PartialExits[0].RawPrice = 99
	again, _ := store.GetBySignalID(ctx, "sig1")
	if again.PartialExits[0].RawPrice != 1.0 {
		t.Error("store returned a shared ladder slice")
	}
}

func TestBlueprintStore_DuplicateKey(t *testing.T) {
	store := NewBlueprintStore()
	ctx := context.Background()

	b := &domain.TradeBlueprint{SignalID: "sig1", ContractID: "mint1", EntryTime: 1000, EntryPriceRaw: 1}
	if err := store.Insert(ctx, b); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, b)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestBlueprintStore_NotFound(t *testing.T) {
	store := NewBlueprintStore()

	_, err := store.GetBySignalID(context.Background(), "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestBlueprintStore_GetAllOrdering(t *testing.T) {
	store := NewBlueprintStore()
	ctx := context.Background()

	blueprints := []*domain.TradeBlueprint{
		{SignalID: "sig-b", ContractID: "m", EntryTime: 2000, EntryPriceRaw: 1},
		{SignalID: "sig-c", ContractID: "m", EntryTime: 1000, EntryPriceRaw: 1},
		{SignalID: "sig-a", ContractID: "m", EntryTime: 2000, EntryPriceRaw: 1},
	}
	if err := store.InsertBulk(ctx, blueprints); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	wantOrder := []string{"sig-c", "sig-a", "sig-b"}
	for i, want := range wantOrder {
		if all[i].SignalID != want {
			t.Errorf("position %d: got %s, want %s", i, all[i].SignalID, want)
		}
	}
}

func TestBlueprintStore_BulkFailsAtomically(t *testing.T) {
	store := NewBlueprintStore()
	ctx := context.Background()

	batch := []*domain.TradeBlueprint{
		{SignalID: "sig1", ContractID: "m", EntryTime: 1000, EntryPriceRaw: 1},
		{SignalID: "sig1", ContractID: "m", EntryTime: 2000, EntryPriceRaw: 1},
	}
	if err := store.InsertBulk(ctx, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}

	if _, err := store.GetBySignalID(ctx, "sig1"); !errors.Is(err, storage.ErrNotFound) {
		t.Error("failed batch must not leave partial inserts behind")
	}
}
