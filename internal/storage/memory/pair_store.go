package memory

import (
	"context"
	"sort"
	"sync"

	"dexcharts/internal/domain"
	"dexcharts/internal/storage"
)

// PairStore is an in-memory implementation of storage.PairStore.
type PairStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PairStats // keyed by pair key
}

// NewPairStore creates a new in-memory pair store.
func NewPairStore() *PairStore {
	return &PairStore{
		data: make(map[string]*domain.PairStats),
	}
}

// Compile-time interface check.
var _ storage.PairStore = (*PairStore)(nil)

// Upsert inserts or refreshes one pair snapshot.
func (s *PairStore) Upsert(_ context.Context, stats *domain.PairStats) error {
	if stats == nil || stats.Pair.Key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	statsCopy := *stats
	s.data[stats.Pair.Key] = &statsCopy
	return nil
}

// GetByKey returns one pair's snapshot.
func (s *PairStore) GetByKey(_ context.Context, key string) (*domain.PairStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	statsCopy := *stats
	return &statsCopy, nil
}

// GetAll returns every registered pair, ordered by pair key.
func (s *PairStore) GetAll(_ context.Context) ([]*domain.PairStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.PairStats, 0, len(s.data))
	for _, stats := range s.data {
		statsCopy := *stats
		result = append(result, &statsCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Pair.Key < result[j].Pair.Key
	})
	return result, nil
}
