package memory

import (
	"context"
	"sync"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

// FillStore is an in-memory implementation of storage.FillStore.
type FillStore struct {
	mu    sync.RWMutex
	byRun map[string][]*domain.Fill // run_id -> fills in emission order
	seen  map[string]struct{}       // fill_id
}

// NewFillStore creates a new in-memory fill store.
func NewFillStore() *FillStore {
	return &FillStore{
		byRun: make(map[string][]*domain.Fill),
		seen:  make(map[string]struct{}),
	}
}

// InsertBulk adds multiple fills. Fails entire batch on any duplicate fill_id.
func (s *FillStore) InsertBulk(_ context.Context, runID string, fills []*domain.Fill) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(fills) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(fills))
	for _, f := range fills {
		if f == nil || f.FillID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.seen[f.FillID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[f.FillID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[f.FillID] = struct{}{}
	}

	for _, f := range fills {
		fillCopy := *f
		s.seen[f.FillID] = struct{}{}
		s.byRun[runID] = append(s.byRun[runID], &fillCopy)
	}
	return nil
}

// GetByRunID retrieves all fills of a run, in emission order.
func (s *FillStore) GetByRunID(_ context.Context, runID string) ([]*domain.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.byRun[runID]
	result := make([]*domain.Fill, 0, len(stored))
	for _, f := range stored {
		fillCopy := *f
		result = append(result, &fillCopy)
	}
	return result, nil
}

// GetByPositionID retrieves all fills of a position, in emission order.
func (s *FillStore) GetByPositionID(_ context.Context, runID, positionID string) ([]*domain.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Fill
	for _, f := range s.byRun[runID] {
		if f.PositionID == positionID {
			fillCopy := *f
			result = append(result, &fillCopy)
		}
	}
	return result, nil
}

var _ storage.FillStore = (*FillStore)(nil)
