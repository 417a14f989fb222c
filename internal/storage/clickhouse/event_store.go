package clickhouse

import (
	"context"
	"fmt"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

// EventStore implements storage.EventStore using ClickHouse. Events are
// append-only and read back in sequence order, never updated.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const eventSelectColumns = `seq, event_id, timestamp_ms, event_type, position_id, reason, meta`

// InsertBulk adds multiple events. Fails entire batch on duplicate (run_id, seq).
func (s *EventStore) InsertBulk(ctx context.Context, runID string, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[int64]struct{})
	for _, e := range events {
		if _, exists := seen[e.Seq]; exists {
			return storage.ErrDuplicateKey
		}
		seen[e.Seq] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, e := range events {
		exists, err := s.exists(ctx, runID, e.Seq)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO sim_events (
			run_id, seq, event_id, timestamp_ms, event_type, position_id, reason, meta
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		meta := e.Meta
		if meta == nil {
			meta = domain.Meta{}
		}
		err = batch.Append(
			runID, e.Seq, e.EventID, e.TimestampMs,
			string(e.Type), e.PositionID, string(e.Reason),
			map[string]string(meta),
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

// GetByRunID retrieves all events of a run, ordered by seq ASC.
func (s *EventStore) GetByRunID(ctx context.Context, runID string) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventSelectColumns + `
		FROM sim_events
		WHERE run_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query events by run id: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByPositionID retrieves a position's events within a run, ordered by seq ASC.
func (s *EventStore) GetByPositionID(ctx context.Context, runID, positionID string) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventSelectColumns + `
		FROM sim_events
		WHERE run_id = ? AND position_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, positionID)
	if err != nil {
		return nil, fmt.Errorf("query events by position id: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// exists checks if an event with the given (run_id, seq) exists.
func (s *EventStore) exists(ctx context.Context, runID string, seq int64) (bool, error) {
	query := `
		SELECT count(*) FROM sim_events
		WHERE run_id = ? AND seq = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, runID, seq).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanEvents scans multiple rows.
func scanEvents(rows chRows) ([]*domain.Event, error) {
	var events []*domain.Event

	for rows.Next() {
		var e domain.Event
		var eventType, reason string
		var meta map[string]string

		err := rows.Scan(
			&e.Seq, &e.EventID, &e.TimestampMs,
			&eventType, &e.PositionID, &reason,
			&meta,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		e.Type = domain.EventType(eventType)
		e.Reason = domain.CloseReason(reason)
		if len(meta) > 0 {
			e.Meta = domain.Meta(meta)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return events, nil
}
