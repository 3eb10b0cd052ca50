package clickhouse

import (
	"context"
	"fmt"

	"dexcharts/internal/domain"
	"dexcharts/internal/storage"
)

// CandleSink implements storage.CandleSink using ClickHouse.
//
// The candles table is a ReplacingMergeTree keyed by
// (pair, timeframe, bucket_start), so re-delivering a closed candle after
// a restart converges on the latest row instead of failing.
type CandleSink struct {
	conn *Conn
}

// NewCandleSink creates a new CandleSink.
func NewCandleSink(conn *Conn) *CandleSink {
	return &CandleSink{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleSink = (*CandleSink)(nil)

// InsertBatch writes a batch of closed candles.
func (s *CandleSink) InsertBatch(ctx context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	for _, c := range candles {
		if c == nil || c.Pair == "" || c.Timeframe == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			pair, timeframe, bucket_start, open, high, low, close, volume, trades
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			c.Pair, c.Timeframe, uint64(c.BucketStart),
			c.Open, c.High, c.Low, c.Close, c.Volume, uint32(c.Trades),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPair retrieves stored candles for (pair, timeframe), ordered by
// bucket start ASC.
func (s *CandleSink) GetByPair(ctx context.Context, pair, timeframe string) ([]*domain.Candle, error) {
	query := `
		SELECT pair, timeframe, bucket_start, open, high, low, close, volume, trades
		FROM candles FINAL
		WHERE pair = ? AND timeframe = ?
		ORDER BY bucket_start ASC
	`

	rows, err := s.conn.Query(ctx, query, pair, timeframe)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var candles []*domain.Candle
	for rows.Next() {
		var c domain.Candle
		var bucketStart uint64
		var trades uint32

		err := rows.Scan(
			&c.Pair, &c.Timeframe, &bucketStart,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &trades,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		c.BucketStart = int64(bucketStart)
		c.Trades = int(trades)
		candles = append(candles, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
