package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.Position // keyed by position_id
	byRun map[string][]string         // run_id -> position_ids in insert order
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data:  make(map[string]*domain.Position),
		byRun: make(map[string][]string),
	}
}

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(_ context.Context, runID string, p *domain.Position) error {
	if p == nil || p.PositionID == "" || runID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(runID, p)
}

// InsertBulk adds multiple positions atomically. Fails entire batch on any duplicate.
func (s *PositionStore) InsertBulk(_ context.Context, runID string, positions []*domain.Position) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(positions) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		if p == nil || p.PositionID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[p.PositionID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[p.PositionID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[p.PositionID] = struct{}{}
	}

	for _, p := range positions {
		if err := s.insertLocked(runID, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *PositionStore) insertLocked(runID string, p *domain.Position) error {
	if _, exists := s.data[p.PositionID]; exists {
		return storage.ErrDuplicateKey
	}
	positionCopy := *p
	s.data[p.PositionID] = &positionCopy
	s.byRun[runID] = append(s.byRun[runID], p.PositionID)
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(_ context.Context, positionID string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[positionID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	positionCopy := *p
	return &positionCopy, nil
}

// GetByRunID retrieves all positions of a run, ordered by entry_time ASC, position_id ASC.
func (s *PositionStore) GetByRunID(_ context.Context, runID string) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byRun[runID]
	result := make([]*domain.Position, 0, len(ids))
	for _, id := range ids {
		positionCopy := *s.data[id]
		result = append(result, &positionCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].EntryTime != result[j].EntryTime {
			return result[i].EntryTime < result[j].EntryTime
		}
		return result[i].PositionID < result[j].PositionID
	})

	return result, nil
}

var _ storage.PositionStore = (*PositionStore)(nil)
