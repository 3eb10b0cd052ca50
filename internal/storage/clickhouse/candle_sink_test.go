package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"dexcharts/internal/domain"
	"dexcharts/internal/storage"
)

func testCandle(bucket int64, close float64) *domain.Candle {
	return &domain.Candle{
		Pair:        "mintA/So11111111111111111111111111111111111111112",
		Timeframe:   "1m",
		BucketStart: bucket,
		Open:        1.0,
		High:        1.5,
		Low:         0.9,
		Close:       close,
		Volume:      42.5,
		Trades:      7,
	}
}

func TestCandleSink_InsertBatchAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	sink := NewCandleSink(conn)
	ctx := context.Background()

	batch := []*domain.Candle{
		testCandle(120_000, 1.2),
		testCandle(60_000, 1.1),
	}
	require.NoError(t, sink.InsertBatch(ctx, batch))

	got, err := sink.GetByPair(ctx, batch[0].Pair, "1m")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by bucket start ASC.
	require.Equal(t, int64(60_000), got[0].BucketStart)
	require.Equal(t, int64(120_000), got[1].BucketStart)
	require.Equal(t, 1.1, got[0].Close)
	require.Equal(t, 42.5, got[0].Volume)
	require.Equal(t, 7, got[0].Trades)
}

func TestCandleSink_RedeliveryConverges(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	sink := NewCandleSink(conn)
	ctx := context.Background()

	require.NoError(t, sink.InsertBatch(ctx, []*domain.Candle{testCandle(60_000, 1.1)}))
	// Re-delivery after a restart: same key collapses to a single row
	// instead of failing or duplicating.
	require.NoError(t, sink.InsertBatch(ctx, []*domain.Candle{testCandle(60_000, 1.1)}))

	got, err := sink.GetByPair(ctx, testCandle(0, 0).Pair, "1m")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 1.1, got[0].Close)
}

func TestCandleSink_EmptyBatch(t *testing.T) {
	sink := NewCandleSink(nil)

	require.NoError(t, sink.InsertBatch(context.Background(), nil))
}

func TestCandleSink_InvalidInput(t *testing.T) {
	sink := NewCandleSink(nil)

	err := sink.InsertBatch(context.Background(), []*domain.Candle{{Pair: ""}})
	require.ErrorIs(t, err, storage.ErrInvalidInput)
}
