package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

// AggregateStore implements storage.RunAggregateStore using PostgreSQL.
type AggregateStore struct {
	pool *Pool
}

// NewAggregateStore creates a new AggregateStore.
func NewAggregateStore(pool *Pool) *AggregateStore {
	return &AggregateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunAggregateStore = (*AggregateStore)(nil)

const aggregateSelectColumns = `
	run_id,
	closed_positions, wins, losses, win_rate,
	pnl_mean, pnl_median, pnl_p10, pnl_p25, pnl_p75, pnl_p90, pnl_min, pnl_max, pnl_stddev,
	max_drawdown, max_consecutive_losses,
	gross_profit, gross_loss, total_fees, net_pnl, profit_factor
`

// Insert adds a new aggregate. Returns ErrDuplicateKey if run_id exists.
func (s *AggregateStore) Insert(ctx context.Context, a *domain.RunAggregate) error {
	query := `
		INSERT INTO run_aggregates (
			run_id,
			closed_positions, wins, losses, win_rate,
			pnl_mean, pnl_median, pnl_p10, pnl_p25, pnl_p75, pnl_p90, pnl_min, pnl_max, pnl_stddev,
			max_drawdown, max_consecutive_losses,
			gross_profit, gross_loss, total_fees, net_pnl, profit_factor
		) VALUES (
			$1,
			$2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16,
			$17, $18, $19, $20, $21
		)
	`

	_, err := s.pool.Exec(ctx, query,
		a.RunID,
		a.ClosedPositions, a.Wins, a.Losses, a.WinRate,
		a.PnLMean, a.PnLMedian, a.PnLP10, a.PnLP25, a.PnLP75, a.PnLP90, a.PnLMin, a.PnLMax, a.PnLStddev,
		a.MaxDrawdown, a.MaxConsecutiveLosses,
		a.GrossProfit, a.GrossLoss, a.TotalFees, a.NetPnL, a.ProfitFactor,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run aggregate: %w", err)
	}
	return nil
}

// GetByRunID retrieves an aggregate by run ID. Returns ErrNotFound if not exists.
func (s *AggregateStore) GetByRunID(ctx context.Context, runID string) (*domain.RunAggregate, error) {
	query := `SELECT ` + aggregateSelectColumns + ` FROM run_aggregates WHERE run_id = $1`

	row := s.pool.QueryRow(ctx, query, runID)
	a, err := scanAggregate(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run aggregate: %w", err)
	}
	return a, nil
}

// GetAll retrieves all aggregates, ordered by run_id ASC.
func (s *AggregateStore) GetAll(ctx context.Context) ([]*domain.RunAggregate, error) {
	query := `SELECT ` + aggregateSelectColumns + ` FROM run_aggregates ORDER BY run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all run aggregates: %w", err)
	}
	defer rows.Close()

	var aggregates []*domain.RunAggregate
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run aggregate row: %w", err)
		}
		aggregates = append(aggregates, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run aggregate rows: %w", err)
	}
	return aggregates, nil
}

func scanAggregate(row pgx.Row) (*domain.RunAggregate, error) {
	var a domain.RunAggregate

	err := row.Scan(
		&a.RunID,
		&a.ClosedPositions, &a.Wins, &a.Losses, &a.WinRate,
		&a.PnLMean, &a.PnLMedian, &a.PnLP10, &a.PnLP25, &a.PnLP75, &a.PnLP90, &a.PnLMin, &a.PnLMax, &a.PnLStddev,
		&a.MaxDrawdown, &a.MaxConsecutiveLosses,
		&a.GrossProfit, &a.GrossLoss, &a.TotalFees, &a.NetPnL, &a.ProfitFactor,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
