package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

// BlueprintStore implements storage.BlueprintStore using PostgreSQL.
// The partial-exit ladder is stored as JSONB; blueprints are read back
// whole, never queried by rung.
type BlueprintStore struct {
	pool *Pool
}

// NewBlueprintStore creates a new BlueprintStore.
func NewBlueprintStore(pool *Pool) *BlueprintStore {
	return &BlueprintStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BlueprintStore = (*BlueprintStore)(nil)

const blueprintInsertQuery = `
	INSERT INTO trade_blueprints (
		signal_id, contract_id, entry_time, entry_price_raw,
		partial_exits,
		final_exit_time, final_exit_price, final_exit_reason,
		last_known_raw_price, market_cap_proxy
	) VALUES (
		$1, $2, $3, $4,
		$5,
		$6, $7, $8,
		$9, $10
	)
`

const blueprintSelectColumns = `
	signal_id, contract_id, entry_time, entry_price_raw,
	partial_exits,
	final_exit_time, final_exit_price, final_exit_reason,
	last_known_raw_price, market_cap_proxy
`

// Insert adds a new blueprint. Returns ErrDuplicateKey if signal_id exists.
func (s *BlueprintStore) Insert(ctx context.Context, b *domain.TradeBlueprint) error {
	args, err := blueprintArgs(b)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, blueprintInsertQuery, args...); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert blueprint: %w", err)
	}
	return nil
}

// InsertBulk adds multiple blueprints atomically. Fails entire batch on any duplicate.
func (s *BlueprintStore) InsertBulk(ctx context.Context, blueprints []*domain.TradeBlueprint) error {
	if len(blueprints) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, b := range blueprints {
		args, err := blueprintArgs(b)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, blueprintInsertQuery, args...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert blueprint in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetBySignalID retrieves a blueprint by its signal ID. Returns ErrNotFound if not exists.
func (s *BlueprintStore) GetBySignalID(ctx context.Context, signalID string) (*domain.TradeBlueprint, error) {
	query := `SELECT ` + blueprintSelectColumns + ` FROM trade_blueprints WHERE signal_id = $1`

	row := s.pool.QueryRow(ctx, query, signalID)
	b, err := scanBlueprint(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get blueprint by signal id: %w", err)
	}
	return b, nil
}

// GetAll retrieves all blueprints, ordered by entry_time ASC, signal_id ASC.
func (s *BlueprintStore) GetAll(ctx context.Context) ([]*domain.TradeBlueprint, error) {
	query := `SELECT ` + blueprintSelectColumns + ` FROM trade_blueprints ORDER BY entry_time ASC, signal_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all blueprints: %w", err)
	}
	defer rows.Close()

	var blueprints []*domain.TradeBlueprint
	for rows.Next() {
		b, err := scanBlueprint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blueprint row: %w", err)
		}
		blueprints = append(blueprints, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blueprint rows: %w", err)
	}
	return blueprints, nil
}

func blueprintArgs(b *domain.TradeBlueprint) ([]any, error) {
	ladder, err := json.Marshal(b.PartialExits)
	if err != nil {
		return nil, fmt.Errorf("marshal partial exits: %w", err)
	}

	var feTime *int64
	var fePrice *float64
	var feReason *string
	if b.FinalExit != nil {
		feTime = &b.FinalExit.Time
		fePrice = &b.FinalExit.RawPrice
		feReason = &b.FinalExit.Reason
	}

	return []any{
		b.SignalID, b.ContractID, b.EntryTime, b.EntryPriceRaw,
		ladder,
		feTime, fePrice, feReason,
		b.LastKnownRawPrice, b.MarketCapProxy,
	}, nil
}

func scanBlueprint(row pgx.Row) (*domain.TradeBlueprint, error) {
	var b domain.TradeBlueprint
	var ladder []byte
	var feTime *int64
	var fePrice *float64
	var feReason *string

	err := row.Scan(
		&b.SignalID, &b.ContractID, &b.EntryTime, &b.EntryPriceRaw,
		&ladder,
		&feTime, &fePrice, &feReason,
		&b.LastKnownRawPrice, &b.MarketCapProxy,
	)
	if err != nil {
		return nil, err
	}

	if len(ladder) > 0 {
		if err := json.Unmarshal(ladder, &b.PartialExits); err != nil {
			return nil, fmt.Errorf("unmarshal partial exits: %w", err)
		}
	}
	if feTime != nil && fePrice != nil {
		fe := domain.FinalExit{Time: *feTime, RawPrice: *fePrice}
		if feReason != nil {
			fe.Reason = *feReason
		}
		b.FinalExit = &fe
	}
	return &b, nil
}
