package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

// AggregateStore is an in-memory implementation of storage.RunAggregateStore.
type AggregateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunAggregate // keyed by run_id
}

// NewAggregateStore creates a new in-memory run aggregate store.
func NewAggregateStore() *AggregateStore {
	return &AggregateStore{
		data: make(map[string]*domain.RunAggregate),
	}
}

// Insert adds a new aggregate. Returns ErrDuplicateKey if run_id exists.
func (s *AggregateStore) Insert(_ context.Context, a *domain.RunAggregate) error {
	if a == nil || a.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	aggCopy := *a
	s.data[a.RunID] = &aggCopy
	return nil
}

// GetByRunID retrieves an aggregate by run ID. Returns ErrNotFound if not exists.
func (s *AggregateStore) GetByRunID(_ context.Context, runID string) (*domain.RunAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	aggCopy := *a
	return &aggCopy, nil
}

// GetAll retrieves all aggregates, ordered by run_id ASC.
func (s *AggregateStore) GetAll(_ context.Context) ([]*domain.RunAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RunAggregate, 0, len(s.data))
	for _, a := range s.data {
		aggCopy := *a
		result = append(result, &aggCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RunID < result[j].RunID
	})

	return result, nil
}

var _ storage.RunAggregateStore = (*AggregateStore)(nil)
