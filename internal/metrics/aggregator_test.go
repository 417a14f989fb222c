package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage/memory"
)

func TestAggregator_ComputeAndStore(t *testing.T) {
	ctx := context.Background()
	positions := memory.NewPositionStore()
	aggregates := memory.NewAggregateStore()

	if err := positions.InsertBulk(ctx, "run1", []*domain.Position{
		closedPos("p1", 1000, 10, 1),
		closedPos("p2", 2000, -4, 1),
	}); err != nil {
		t.Fatalf("seed positions: %v", err)
	}

	agg, err := NewAggregator(positions, aggregates).ComputeAndStore(ctx, "run1")
	if err != nil {
		t.Fatalf("ComputeAndStore failed: %v", err)
	}
	if agg.RunID != "run1" || agg.ClosedPositions != 2 || agg.Wins != 1 {
		t.Errorf("aggregate mismatch: %+v", agg)
	}

	stored, err := aggregates.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("aggregate was not persisted: %v", err)
	}
	if stored.WinRate != 0.5 {
		t.Errorf("stored win rate = %f, want 0.5", stored.WinRate)
	}

	// Aggregates are append-only per run.
	if _, err := NewAggregator(positions, aggregates).ComputeAndStore(ctx, "run1"); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey on recompute, got %v", err)
	}
}

func TestAggregator_NoClosedPositions(t *testing.T) {
	ctx := context.Background()
	positions := memory.NewPositionStore()
	aggregates := memory.NewAggregateStore()

	if err := positions.Insert(ctx, "run1", &domain.Position{PositionID: "p1", Status: domain.PositionOpen}); err != nil {
		t.Fatalf("seed position: %v", err)
	}

	_, err := NewAggregator(positions, aggregates).ComputeAggregate(ctx, "run1")
	if !errors.Is(err, ErrNoClosedPositions) {
		t.Errorf("Expected ErrNoClosedPositions, got %v", err)
	}
}
