package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionInsertQuery = `
	INSERT INTO positions (
		position_id, run_id, signal_id, contract_id,
		entry_time, exit_time, status,
		original_size, remaining_size,
		entry_price_raw, entry_price_executed, exit_price_raw, exit_price_executed,
		realized_pnl, fees_total, close_reason,
		peak_multiple, mark_price_raw, mark_price_fallback, market_cap_proxy,
		reset_trigger, synthetic_marker
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7,
		$8, $9,
		$10, $11, $12, $13,
		$14, $15, $16,
		$17, $18, $19, $20,
		$21, $22
	)
`

const positionSelectColumns = `
	position_id, signal_id, contract_id,
	entry_time, exit_time, status,
	original_size, remaining_size,
	entry_price_raw, entry_price_executed, exit_price_raw, exit_price_executed,
	realized_pnl, fees_total, close_reason,
	peak_multiple, mark_price_raw, mark_price_fallback, market_cap_proxy,
	reset_trigger, synthetic_marker
`

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(ctx context.Context, runID string, p *domain.Position) error {
	if _, err := s.pool.Exec(ctx, positionInsertQuery, positionArgs(runID, p)...); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// InsertBulk adds multiple positions atomically. Fails entire batch on any duplicate.
func (s *PositionStore) InsertBulk(ctx context.Context, runID string, positions []*domain.Position) error {
	if len(positions) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range positions {
		if _, err := tx.Exec(ctx, positionInsertQuery, positionArgs(runID, p)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert position in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(ctx context.Context, positionID string) (*domain.Position, error) {
	query := `SELECT ` + positionSelectColumns + ` FROM positions WHERE position_id = $1`

	row := s.pool.QueryRow(ctx, query, positionID)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by id: %w", err)
	}
	return p, nil
}

// GetByRunID retrieves all positions of a run, ordered by entry_time ASC, position_id ASC.
func (s *PositionStore) GetByRunID(ctx context.Context, runID string) ([]*domain.Position, error) {
	query := `SELECT ` + positionSelectColumns + ` FROM positions WHERE run_id = $1 ORDER BY entry_time ASC, position_id ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get positions by run id: %w", err)
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}
	return positions, nil
}

func positionArgs(runID string, p *domain.Position) []any {
	return []any{
		p.PositionID, runID, p.SignalID, p.ContractID,
		p.EntryTime, p.ExitTime, string(p.Status),
		p.OriginalSize, p.RemainingSize,
		p.EntryPriceRaw, p.EntryPriceExecuted, p.ExitPriceRaw, p.ExitPriceExecuted,
		p.RealizedPnL, p.FeesTotal, string(p.CloseReason),
		p.PeakMultiple, p.MarkPriceRaw, p.MarkPriceFallback, p.MarketCapProxy,
		p.ResetFlags.ResetTrigger, p.ResetFlags.SyntheticMarker,
	}
}

func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	var status, closeReason string

	err := row.Scan(
		&p.PositionID, &p.SignalID, &p.ContractID,
		&p.EntryTime, &p.ExitTime, &status,
		&p.OriginalSize, &p.RemainingSize,
		&p.EntryPriceRaw, &p.EntryPriceExecuted, &p.ExitPriceRaw, &p.ExitPriceExecuted,
		&p.RealizedPnL, &p.FeesTotal, &closeReason,
		&p.PeakMultiple, &p.MarkPriceRaw, &p.MarkPriceFallback, &p.MarketCapProxy,
		&p.ResetFlags.ResetTrigger, &p.ResetFlags.SyntheticMarker,
	)
	if err != nil {
		return nil, err
	}

	p.Status = domain.PositionStatus(status)
	p.CloseReason = domain.CloseReason(closeReason)
	return &p, nil
}
