package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

// SummaryStore implements storage.RunSummaryStore using PostgreSQL.
type SummaryStore struct {
	pool *Pool
}

// NewSummaryStore creates a new SummaryStore.
func NewSummaryStore(pool *Pool) *SummaryStore {
	return &SummaryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunSummaryStore = (*SummaryStore)(nil)

const summarySelectColumns = `
	run_id, cost_preset_id,
	blueprint_count, admitted_count, risk_skipped,
	positions_opened, positions_closed, partial_exits,
	closed_strategy_exit, closed_profit_reset, closed_capacity_prune, closed_max_hold, closed_end_of_data,
	profit_resets, prune_episodes, avg_pruned_hold_ms, forced_closure_share,
	final_balance, final_equity, cycle_start_equity,
	end_timestamp_ms, warnings
`

// Insert adds a new summary. Returns ErrDuplicateKey if run_id exists.
func (s *SummaryStore) Insert(ctx context.Context, sum *domain.RunSummary) error {
	query := `
		INSERT INTO run_summaries (
			run_id, cost_preset_id,
			blueprint_count, admitted_count, risk_skipped,
			positions_opened, positions_closed, partial_exits,
			closed_strategy_exit, closed_profit_reset, closed_capacity_prune, closed_max_hold, closed_end_of_data,
			profit_resets, prune_episodes, avg_pruned_hold_ms, forced_closure_share,
			final_balance, final_equity, cycle_start_equity,
			end_timestamp_ms, warnings
		) VALUES (
			$1, $2,
			$3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20,
			$21, $22
		)
	`

	_, err := s.pool.Exec(ctx, query,
		sum.RunID, sum.CostPresetID,
		sum.BlueprintCount, sum.AdmittedCount, sum.RiskSkipped,
		sum.PositionsOpened, sum.PositionsClosed, sum.PartialExits,
		sum.ClosedStrategyExit, sum.ClosedProfitReset, sum.ClosedCapacityPrune, sum.ClosedMaxHold, sum.ClosedEndOfData,
		sum.ProfitResets, sum.PruneEpisodes, sum.AvgPrunedHoldMs, sum.ForcedClosureShare,
		sum.FinalBalance, sum.FinalEquity, sum.CycleStartEquity,
		sum.EndTimestampMs, sum.Warnings,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run summary: %w", err)
	}
	return nil
}

// GetByRunID retrieves a summary by run ID. Returns ErrNotFound if not exists.
func (s *SummaryStore) GetByRunID(ctx context.Context, runID string) (*domain.RunSummary, error) {
	query := `SELECT ` + summarySelectColumns + ` FROM run_summaries WHERE run_id = $1`

	row := s.pool.QueryRow(ctx, query, runID)
	sum, err := scanSummary(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run summary: %w", err)
	}
	return sum, nil
}

// GetAll retrieves all summaries, ordered by run_id ASC.
func (s *SummaryStore) GetAll(ctx context.Context) ([]*domain.RunSummary, error) {
	query := `SELECT ` + summarySelectColumns + ` FROM run_summaries ORDER BY run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all run summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*domain.RunSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run summary row: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run summary rows: %w", err)
	}
	return summaries, nil
}

func scanSummary(row pgx.Row) (*domain.RunSummary, error) {
	var sum domain.RunSummary

	err := row.Scan(
		&sum.RunID, &sum.CostPresetID,
		&sum.BlueprintCount, &sum.AdmittedCount, &sum.RiskSkipped,
		&sum.PositionsOpened, &sum.PositionsClosed, &sum.PartialExits,
		&sum.ClosedStrategyExit, &sum.ClosedProfitReset, &sum.ClosedCapacityPrune, &sum.ClosedMaxHold, &sum.ClosedEndOfData,
		&sum.ProfitResets, &sum.PruneEpisodes, &sum.AvgPrunedHoldMs, &sum.ForcedClosureShare,
		&sum.FinalBalance, &sum.FinalEquity, &sum.CycleStartEquity,
		&sum.EndTimestampMs, &sum.Warnings,
	)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}
