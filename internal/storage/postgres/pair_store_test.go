package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"dexcharts/internal/domain"
	"dexcharts/internal/storage"
)

func testPairStats(key string, price float64) *domain.PairStats {
	return &domain.PairStats{
		Pair: domain.Pair{
			Key:       key,
			BaseMint:  "mintA",
			QuoteMint: "So11111111111111111111111111111111111111112",
			Dex:       "pumpfun",
		},
		LastPrice:   price,
		QuoteVolume: 150.5,
		TradeCount:  12,
		FirstSeenMs: 1000,
		LastSeenMs:  5000,
	}
}

func TestPairStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPairStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testPairStats("A/B", 1.0)))

	got, err := store.GetByKey(ctx, "A/B")
	require.NoError(t, err)
	require.Equal(t, 1.0, got.LastPrice)
	require.Equal(t, "pumpfun", got.Pair.Dex)
	require.Equal(t, int64(12), got.TradeCount)
}

func TestPairStore_UpsertRefreshes(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPairStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testPairStats("A/B", 1.0)))

	refreshed := testPairStats("A/B", 2.5)
	refreshed.LastSeenMs = 9000
	refreshed.FirstSeenMs = 4242 // ignored on refresh
	require.NoError(t, store.Upsert(ctx, refreshed))

	got, err := store.GetByKey(ctx, "A/B")
	require.NoError(t, err)
	require.Equal(t, 2.5, got.LastPrice)
	require.Equal(t, int64(9000), got.LastSeenMs)
	// first_seen_ms is sticky on refresh.
	require.Equal(t, int64(1000), got.FirstSeenMs)
}

func TestPairStore_GetByKeyNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPairStore(pool)

	_, err := store.GetByKey(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPairStore_GetAllSorted(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPairStore(pool)
	ctx := context.Background()

	for _, key := range []string{"C/D", "A/B", "B/C"} {
		require.NoError(t, store.Upsert(ctx, testPairStats(key, 1.0)))
	}

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "A/B", all[0].Pair.Key)
	require.Equal(t, "B/C", all[1].Pair.Key)
	require.Equal(t, "C/D", all[2].Pair.Key)
}

func TestPairStore_InvalidInput(t *testing.T) {
	store := NewPairStore(nil)

	require.ErrorIs(t, store.Upsert(context.Background(), nil), storage.ErrInvalidInput)
	require.ErrorIs(t, store.Upsert(context.Background(), &domain.PairStats{}), storage.ErrInvalidInput)
}
