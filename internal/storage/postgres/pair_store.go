package postgres

import (
	"context"
	"fmt"

	"dexcharts/internal/domain"
	"dexcharts/internal/storage"
)

// PairStore implements storage.PairStore using PostgreSQL.
type PairStore struct {
	pool *Pool
}

// NewPairStore creates a new PairStore.
func NewPairStore(pool *Pool) *PairStore {
	return &PairStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PairStore = (*PairStore)(nil)

// Upsert inserts or refreshes one pair snapshot, keyed by pair_key.
func (s *PairStore) Upsert(ctx context.Context, stats *domain.PairStats) error {
	if stats == nil || stats.Pair.Key == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pairs (
			pair_key, base_mint, quote_mint, dex,
			last_price, quote_volume, trade_count, first_seen_ms, last_seen_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (pair_key) DO UPDATE SET
			last_price = EXCLUDED.last_price,
			quote_volume = EXCLUDED.quote_volume,
			trade_count = EXCLUDED.trade_count,
			last_seen_ms = EXCLUDED.last_seen_ms
	`

	_, err := s.pool.Exec(ctx, query,
		stats.Pair.Key,
		stats.Pair.BaseMint,
		stats.Pair.QuoteMint,
		stats.Pair.Dex,
		stats.LastPrice,
		stats.QuoteVolume,
		stats.TradeCount,
		stats.FirstSeenMs,
		stats.LastSeenMs,
	)
	if err != nil {
		return fmt.Errorf("upsert pair: %w", err)
	}
	return nil
}

// GetByKey returns one pair's snapshot.
func (s *PairStore) GetByKey(ctx context.Context, key string) (*domain.PairStats, error) {
	query := `
		SELECT pair_key, base_mint, quote_mint, dex,
		       last_price, quote_volume, trade_count, first_seen_ms, last_seen_ms
		FROM pairs
		WHERE pair_key = $1
	`

	var stats domain.PairStats
	err := s.pool.QueryRow(ctx, query, key).Scan(
		&stats.Pair.Key, &stats.Pair.BaseMint, &stats.Pair.QuoteMint, &stats.Pair.Dex,
		&stats.LastPrice, &stats.QuoteVolume, &stats.TradeCount,
		&stats.FirstSeenMs, &stats.LastSeenMs,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pair by key: %w", err)
	}
	return &stats, nil
}

// GetAll returns every registered pair, ordered by pair key.
func (s *PairStore) GetAll(ctx context.Context) ([]*domain.PairStats, error) {
	query := `
		SELECT pair_key, base_mint, quote_mint, dex,
		       last_price, quote_volume, trade_count, first_seen_ms, last_seen_ms
		FROM pairs
		ORDER BY pair_key ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all pairs: %w", err)
	}
	defer rows.Close()

	var result []*domain.PairStats
	for rows.Next() {
		var stats domain.PairStats
		err := rows.Scan(
			&stats.Pair.Key, &stats.Pair.BaseMint, &stats.Pair.QuoteMint, &stats.Pair.Dex,
			&stats.LastPrice, &stats.QuoteVolume, &stats.TradeCount,
			&stats.FirstSeenMs, &stats.LastSeenMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pair row: %w", err)
		}
		result = append(result, &stats)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pair rows: %w", err)
	}

	return result, nil
}
