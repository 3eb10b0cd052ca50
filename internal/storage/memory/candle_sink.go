// Package memory provides in-memory store implementations for tests and
// single-process deployments without external databases.
package memory

import (
	"context"
	"sort"
	"sync"

	"dexcharts/internal/domain"
	"dexcharts/internal/storage"
)

// CandleSink is an in-memory implementation of storage.CandleSink.
type CandleSink struct {
	mu      sync.RWMutex
	candles []*domain.Candle
}

// NewCandleSink creates a new in-memory candle sink.
func NewCandleSink() *CandleSink {
	return &CandleSink{}
}

// Compile-time interface check.
var _ storage.CandleSink = (*CandleSink)(nil)

// InsertBatch appends a batch of closed candles.
func (s *CandleSink) InsertBatch(_ context.Context, batch []*domain.Candle) error {
	if len(batch) == 0 {
		return nil
	}
	for _, c := range batch {
		if c == nil || c.Pair == "" || c.Timeframe == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range batch {
		candleCopy := *c
		s.candles = append(s.candles, &candleCopy)
	}
	return nil
}

// GetByPair returns stored candles for (pair, timeframe), ordered by
// bucket start ASC.
func (s *CandleSink) GetByPair(_ context.Context, pair, timeframe string) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candle
	for _, c := range s.candles {
		if c.Pair == pair && c.Timeframe == timeframe {
			candleCopy := *c
			result = append(result, &candleCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].BucketStart < result[j].BucketStart
	})
	return result, nil
}

// Count returns the total number of stored candles.
func (s *CandleSink) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candles)
}
