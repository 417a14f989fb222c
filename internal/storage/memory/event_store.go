package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu    sync.RWMutex
	byRun map[string][]*domain.Event // run_id -> events
	seen  map[string]struct{}        // run_id + "|" + seq
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		byRun: make(map[string][]*domain.Event),
		seen:  make(map[string]struct{}),
	}
}

// InsertBulk adds multiple events. Fails entire batch on any duplicate (run_id, seq).
func (s *EventStore) InsertBulk(_ context.Context, runID string, events []*domain.Event) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		key := seqKey(runID, e.Seq)
		if _, exists := s.seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, e := range events {
		s.seen[seqKey(runID, e.Seq)] = struct{}{}
		s.byRun[runID] = append(s.byRun[runID], copyEvent(e))
	}
	return nil
}

// GetByRunID retrieves all events of a run, ordered by seq ASC.
func (s *EventStore) GetByRunID(_ context.Context, runID string) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.byRun[runID]
	result := make([]*domain.Event, 0, len(stored))
	for _, e := range stored {
		result = append(result, copyEvent(e))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	return result, nil
}

// GetByPositionID retrieves all events referencing a position, ordered by seq ASC.
func (s *EventStore) GetByPositionID(_ context.Context, runID, positionID string) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Event
	for _, e := range s.byRun[runID] {
		if e.PositionID == positionID {
			result = append(result, copyEvent(e))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	return result, nil
}

func seqKey(runID string, seq int64) string {
	return runID + "|" + strconv.FormatInt(seq, 10)
}

// copyEvent copies the event including its meta map.
func copyEvent(e *domain.Event) *domain.Event {
	eventCopy := *e
	if e.Meta != nil {
		eventCopy.Meta = make(domain.Meta, len(e.Meta))
		for k, v := range e.Meta {
			eventCopy.Meta[k] = v
		}
	}
	return &eventCopy
}

var _ storage.EventStore = (*EventStore)(nil)
