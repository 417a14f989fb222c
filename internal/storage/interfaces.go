package storage

import (
	"context"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

// BlueprintStore provides access to trade_blueprints storage.
type BlueprintStore interface {
	// Insert adds a new blueprint. Returns ErrDuplicateKey if signal_id exists.
	Insert(ctx context.Context, b *domain.TradeBlueprint) error

	// InsertBulk adds multiple blueprints atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, blueprints []*domain.TradeBlueprint) error

	// GetBySignalID retrieves a blueprint by its signal ID. Returns ErrNotFound if not exists.
	GetBySignalID(ctx context.Context, signalID string) (*domain.TradeBlueprint, error)

	// GetAll retrieves all blueprints, ordered by entry_time ASC, signal_id ASC.
	GetAll(ctx context.Context) ([]*domain.TradeBlueprint, error)
}

// PositionStore provides access to positions storage.
type PositionStore interface {
	// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
	Insert(ctx context.Context, runID string, p *domain.Position) error

	// InsertBulk adds multiple positions atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, runID string, positions []*domain.Position) error

	// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, positionID string) (*domain.Position, error)

	// GetByRunID retrieves all positions of a run, ordered by entry_time ASC, position_id ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.Position, error)
}

// EventStore provides access to the append-only event ledger.
type EventStore interface {
	// InsertBulk adds multiple events. Fails entire batch on any duplicate (run_id, seq).
	InsertBulk(ctx context.Context, runID string, events []*domain.Event) error

	// GetByRunID retrieves all events of a run, ordered by seq ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.Event, error)

	// GetByPositionID retrieves all events referencing a position, ordered by seq ASC.
	GetByPositionID(ctx context.Context, runID, positionID string) ([]*domain.Event, error)
}

// FillStore provides access to the append-only fills ledger.
type FillStore interface {
	// InsertBulk adds multiple fills. Fails entire batch on any duplicate fill_id.
	InsertBulk(ctx context.Context, runID string, fills []*domain.Fill) error

	// GetByRunID retrieves all fills of a run, in emission order.
	GetByRunID(ctx context.Context, runID string) ([]*domain.Fill, error)

	// GetByPositionID retrieves all fills of a position, in emission order.
	GetByPositionID(ctx context.Context, runID, positionID string) ([]*domain.Fill, error)
}

// RunSummaryStore provides access to run_summaries storage.
type RunSummaryStore interface {
	// Insert adds a new summary. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, s *domain.RunSummary) error

	// GetByRunID retrieves a summary by run ID. Returns ErrNotFound if not exists.
	GetByRunID(ctx context.Context, runID string) (*domain.RunSummary, error)

	// GetAll retrieves all summaries, ordered by run_id ASC.
	GetAll(ctx context.Context) ([]*domain.RunSummary, error)
}

// RunAggregateStore provides access to run_aggregates storage.
type RunAggregateStore interface {
	// Insert adds a new aggregate. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, a *domain.RunAggregate) error

	// GetByRunID retrieves an aggregate by run ID. Returns ErrNotFound if not exists.
	GetByRunID(ctx context.Context, runID string) (*domain.RunAggregate, error)

	// GetAll retrieves all aggregates, ordered by run_id ASC.
	GetAll(ctx context.Context) ([]*domain.RunAggregate, error)
}
