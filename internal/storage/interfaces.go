// Package storage defines persistence interfaces for closed candles and
// the pair registry, plus the async plumbing that feeds them from the
// streaming pipeline.
package storage

import (
	"context"

	"dexcharts/internal/domain"
)

// CandleSink persists closed candles. Candle history in memory is
// bounded; the sink is the durable copy.
type CandleSink interface {
	// InsertBatch writes a batch of closed candles.
	InsertBatch(ctx context.Context, batch []*domain.Candle) error
}

// PairStore is the registry of observed trading pairs and their
// cumulative stats.
type PairStore interface {
	// Upsert inserts or refreshes one pair snapshot.
	Upsert(ctx context.Context, stats *domain.PairStats) error

	// GetByKey returns one pair's snapshot; ErrNotFound if absent.
	GetByKey(ctx context.Context, key string) (*domain.PairStats, error)

	// GetAll returns every registered pair, ordered by pair key.
	GetAll(ctx context.Context) ([]*domain.PairStats, error)
}
