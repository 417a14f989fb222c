package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

// BlueprintStore is an in-memory implementation of storage.BlueprintStore.
type BlueprintStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeBlueprint // keyed by signal_id
}

// NewBlueprintStore creates a new in-memory blueprint store.
func NewBlueprintStore() *BlueprintStore {
	return &BlueprintStore{
		data: make(map[string]*domain.TradeBlueprint),
	}
}

// Insert adds a new blueprint. Returns ErrDuplicateKey if signal_id exists.
func (s *BlueprintStore) Insert(_ context.Context, b *domain.TradeBlueprint) error {
	if b == nil || b.SignalID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[b.SignalID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[b.SignalID] = copyBlueprint(b)
	return nil
}

// InsertBulk adds multiple blueprints atomically. Fails entire batch on any duplicate.
func (s *BlueprintStore) InsertBulk(_ context.Context, blueprints []*domain.TradeBlueprint) error {
	if len(blueprints) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(blueprints))
	for _, b := range blueprints {
		if b == nil || b.SignalID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[b.SignalID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[b.SignalID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[b.SignalID] = struct{}{}
	}

	for _, b := range blueprints {
		s.data[b.SignalID] = copyBlueprint(b)
	}
	return nil
}

// GetBySignalID retrieves a blueprint by its signal ID. Returns ErrNotFound if not exists.
func (s *BlueprintStore) GetBySignalID(_ context.Context, signalID string) (*domain.TradeBlueprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.data[signalID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyBlueprint(b), nil
}

// GetAll retrieves all blueprints, ordered by entry_time ASC, signal_id ASC.
func (s *BlueprintStore) GetAll(_ context.Context) ([]*domain.TradeBlueprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TradeBlueprint, 0, len(s.data))
	for _, b := range s.data {
		result = append(result, copyBlueprint(b))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].EntryTime != result[j].EntryTime {
			return result[i].EntryTime < result[j].EntryTime
		}
		return result[i].SignalID < result[j].SignalID
	})

	return result, nil
}

// copyBlueprint copies the blueprint including its exit ladder so callers
// cannot mutate stored state.
func copyBlueprint(b *domain.TradeBlueprint) *domain.TradeBlueprint {
	blueprintCopy := *b
	if len(b.PartialExits) > 0 {
		blueprintCopy.PartialExits = make([]domain.PartialExitLevel, len(b.PartialExits))
		copy(blueprintCopy.PartialExits, b.PartialExits)
	}
	if b.FinalExit != nil {
		feCopy := *b.FinalExit
		blueprintCopy.FinalExit = &feCopy
	}
	return &blueprintCopy
}

var _ storage.BlueprintStore = (*BlueprintStore)(nil)
