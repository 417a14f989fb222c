package clickhouse

import (
	"context"
	"fmt"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

// FillStore implements storage.FillStore using ClickHouse. The ordinal
// column preserves emission order, which has no other natural sort key.
type FillStore struct {
	conn *Conn
}

// NewFillStore creates a new FillStore.
func NewFillStore(conn *Conn) *FillStore {
	return &FillStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FillStore = (*FillStore)(nil)

const fillSelectColumns = `ordinal, fill_id, event_id, position_id, timestamp_ms,
		quantity_delta, raw_price, executed_price, fees, realized_pnl_delta`

// InsertBulk adds multiple fills. Fails entire batch on duplicate fill_id.
func (s *FillStore) InsertBulk(ctx context.Context, runID string, fills []*domain.Fill) error {
	if len(fills) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{})
	for _, f := range fills {
		if _, exists := seen[f.FillID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[f.FillID] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, f := range fills {
		exists, err := s.exists(ctx, runID, f.FillID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO sim_fills (
			run_id, ordinal, fill_id, event_id, position_id, timestamp_ms,
			quantity_delta, raw_price, executed_price, fees, realized_pnl_delta
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, f := range fills {
		err = batch.Append(
			runID, f.Ordinal, f.FillID, f.EventID, f.PositionID, f.TimestampMs,
			f.QuantityDelta, f.RawPrice, f.ExecutedPrice, f.Fees, f.RealizedPnLDelta,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves all fills of a run in emission order.
func (s *FillStore) GetByRunID(ctx context.Context, runID string) ([]*domain.Fill, error) {
	query := `
		SELECT ` + fillSelectColumns + `
		FROM sim_fills
		WHERE run_id = ?
		ORDER BY ordinal ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query fills by run id: %w", err)
	}
	defer rows.Close()

	return scanFills(rows)
}

// GetByPositionID retrieves a position's fills within a run in emission order.
func (s *FillStore) GetByPositionID(ctx context.Context, runID, positionID string) ([]*domain.Fill, error) {
	query := `
		SELECT ` + fillSelectColumns + `
		FROM sim_fills
		WHERE run_id = ? AND position_id = ?
		ORDER BY ordinal ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, positionID)
	if err != nil {
		return nil, fmt.Errorf("query fills by position id: %w", err)
	}
	defer rows.Close()

	return scanFills(rows)
}

// exists checks if a fill with the given id exists within a run.
func (s *FillStore) exists(ctx context.Context, runID, fillID string) (bool, error) {
	query := `
		SELECT count(*) FROM sim_fills
		WHERE run_id = ? AND fill_id = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, runID, fillID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanFills scans multiple rows.
func scanFills(rows chRows) ([]*domain.Fill, error) {
	var fills []*domain.Fill

	for rows.Next() {
		var f domain.Fill

		err := rows.Scan(
			&f.Ordinal, &f.FillID, &f.EventID, &f.PositionID, &f.TimestampMs,
			&f.QuantityDelta, &f.RawPrice, &f.ExecutedPrice, &f.Fees, &f.RealizedPnLDelta,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fill row: %w", err)
		}

		fills = append(fills, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fill rows: %w", err)
	}

	return fills, nil
}
