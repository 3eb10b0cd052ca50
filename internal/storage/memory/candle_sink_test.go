package memory

import (
	"context"
	"errors"
	"testing"

	"dexcharts/internal/domain"
	"dexcharts/internal/storage"
)

func TestCandleSink_InsertBatchAndGet(t *testing.T) {
	sink := NewCandleSink()
	ctx := context.Background()

	batch := []*domain.Candle{
		{Pair: "A/B", Timeframe: "1m", BucketStart: 120_000, Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15, Volume: 10, Trades: 3},
		{Pair: "A/B", Timeframe: "1m", BucketStart: 60_000, Open: 1.0, High: 1.1, Low: 0.9, Close: 1.1, Volume: 5, Trades: 2},
		{Pair: "A/B", Timeframe: "5m", BucketStart: 0, Open: 1.0, High: 1.2, Low: 0.9, Close: 1.15, Volume: 15, Trades: 5},
	}

	if err := sink.InsertBatch(ctx, batch); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	result, err := sink.GetByPair(ctx, "A/B", "1m")
	if err != nil {
		t.Fatalf("GetByPair failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 candles, got %d", len(result))
	}
	// Ordered by bucket start ASC.
	if result[0].BucketStart != 60_000 || result[1].BucketStart != 120_000 {
		t.Errorf("Wrong order: %d, %d", result[0].BucketStart, result[1].BucketStart)
	}
	if sink.Count() != 3 {
		t.Errorf("Expected 3 stored candles, got %d", sink.Count())
	}
}

func TestCandleSink_InvalidInput(t *testing.T) {
	sink := NewCandleSink()
	ctx := context.Background()

	err := sink.InsertBatch(ctx, []*domain.Candle{{Pair: "", Timeframe: "1m"}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if sink.Count() != 0 {
		t.Errorf("Invalid batch must not be stored")
	}
}

func TestCandleSink_EmptyBatch(t *testing.T) {
	sink := NewCandleSink()

	if err := sink.InsertBatch(context.Background(), nil); err != nil {
		t.Errorf("Empty batch should be a no-op, got %v", err)
	}
}
