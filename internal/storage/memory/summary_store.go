package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

// SummaryStore is an in-memory implementation of storage.RunSummaryStore.
type SummaryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunSummary // keyed by run_id
}

// NewSummaryStore creates a new in-memory run summary store.
func NewSummaryStore() *SummaryStore {
	return &SummaryStore{
		data: make(map[string]*domain.RunSummary),
	}
}

// Insert adds a new summary. Returns ErrDuplicateKey if run_id exists.
func (s *SummaryStore) Insert(_ context.Context, sum *domain.RunSummary) error {
	if sum == nil || sum.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sum.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[sum.RunID] = copySummary(sum)
	return nil
}

// GetByRunID retrieves a summary by run ID. Returns ErrNotFound if not exists.
func (s *SummaryStore) GetByRunID(_ context.Context, runID string) (*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copySummary(sum), nil
}

// GetAll retrieves all summaries, ordered by run_id ASC.
func (s *SummaryStore) GetAll(_ context.Context) ([]*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RunSummary, 0, len(s.data))
	for _, sum := range s.data {
		result = append(result, copySummary(sum))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RunID < result[j].RunID
	})

	return result, nil
}

// copySummary copies the summary including its warnings slice.
func copySummary(sum *domain.RunSummary) *domain.RunSummary {
	summaryCopy := *sum
	if len(sum.Warnings) > 0 {
		summaryCopy.Warnings = make([]string, len(sum.Warnings))
		copy(summaryCopy.Warnings, sum.Warnings)
	}
	return &summaryCopy
}

var _ storage.RunSummaryStore = (*SummaryStore)(nil)
