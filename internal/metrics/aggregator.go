// Package metrics computes the performance aggregate of a finished run
// from its stored positions.
package metrics

import (
	"context"
	"errors"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

// ErrNoClosedPositions is returned when a run has nothing to aggregate.
var ErrNoClosedPositions = errors.New("no closed positions available for aggregation")

// Aggregator computes run aggregates from stored positions.
type Aggregator struct {
	positionStore  storage.PositionStore
	aggregateStore storage.RunAggregateStore
}

// NewAggregator creates a metrics aggregator.
func NewAggregator(positionStore storage.PositionStore, aggregateStore storage.RunAggregateStore) *Aggregator {
	return &Aggregator{
		positionStore:  positionStore,
		aggregateStore: aggregateStore,
	}
}

// ComputeAggregate loads a run's positions and computes its aggregate.
// Returns ErrNoClosedPositions if the run closed nothing.
func (a *Aggregator) ComputeAggregate(ctx context.Context, runID string) (*domain.RunAggregate, error) {
	positions, err := a.positionStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	agg := computeFromPositions(positions)
	if agg.ClosedPositions == 0 {
		return nil, ErrNoClosedPositions
	}
	agg.RunID = runID
	return agg, nil
}

// ComputeAndStore computes and persists the aggregate.
// Returns storage.ErrDuplicateKey if the aggregate already exists (append-only).
func (a *Aggregator) ComputeAndStore(ctx context.Context, runID string) (*domain.RunAggregate, error) {
	agg, err := a.ComputeAggregate(ctx, runID)
	if err != nil {
		return nil, err
	}
	if err := a.aggregateStore.Insert(ctx, agg); err != nil {
		return nil, err
	}
	return agg, nil
}

// Aggregate computes the aggregate directly from in-memory positions,
// without touching storage. Used by the runner before persistence.
func Aggregate(runID string, positions []*domain.Position) *domain.RunAggregate {
	agg := computeFromPositions(positions)
	agg.RunID = runID
	return agg
}
