package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-replay-lab/internal/domain"
	"futures-replay-lab/internal/storage"
)

func testCandle(symbol string, openTime int64, close float64) *domain.Candle {
	return &domain.Candle{
		Symbol:    symbol,
		OpenTime:  openTime,
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    100,
		CloseTime: openTime + 59_999,
	}
}

func TestCandleStore_InsertBulkAndGetByTimeRange(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	candles := []*domain.Candle{
		testCandle("XRPUSDT", 120_000, 1.02),
		testCandle("XRPUSDT", 0, 1.00),
		testCandle("XRPUSDT", 60_000, 1.01),
		testCandle("BTCUSDT", 0, 50_000),
	}
	require.NoError(t, store.InsertBulk(ctx, candles))

	got, err := store.GetByTimeRange(ctx, "XRPUSDT", 0, 120_000)
	require.NoError(t, err)

	require.Len(t, got, 3)
	// Ascending open time regardless of insert order
	assert.Equal(t, int64(0), got[0].OpenTime)
	assert.Equal(t, int64(60_000), got[1].OpenTime)
	assert.Equal(t, int64(120_000), got[2].OpenTime)

	// Range bounds are inclusive
	got, err = store.GetByTimeRange(ctx, "XRPUSDT", 60_000, 60_000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 1.01, got[0].Close, 1e-9)
}

func TestCandleStore_InsertBulkDuplicate(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.Candle{testCandle("XRPUSDT", 0, 1.0)}))

	// Duplicate against stored data fails the batch
	err := store.InsertBulk(ctx, []*domain.Candle{
		testCandle("XRPUSDT", 60_000, 1.1),
		testCandle("XRPUSDT", 0, 1.2),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// The failed batch must not be partially applied
	got, err := store.GetByTimeRange(ctx, "XRPUSDT", 0, 120_000)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCandleStore_InsertBulkIntraBatchDuplicate(t *testing.T) {
	store := NewCandleStore()

	err := store.InsertBulk(context.Background(), []*domain.Candle{
		testCandle("XRPUSDT", 0, 1.0),
		testCandle("XRPUSDT", 0, 1.1),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestCandleStore_GetLatestOpenTime(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	_, err := store.GetLatestOpenTime(ctx, "XRPUSDT")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.InsertBulk(ctx, []*domain.Candle{
		testCandle("XRPUSDT", 60_000, 1.0),
		testCandle("XRPUSDT", 120_000, 1.1),
		testCandle("BTCUSDT", 240_000, 50_000),
	}))

	latest, err := store.GetLatestOpenTime(ctx, "XRPUSDT")
	require.NoError(t, err)
	assert.Equal(t, int64(120_000), latest)
}

func TestCandleStore_ReturnsCopies(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	original := testCandle("XRPUSDT", 0, 1.0)
	require.NoError(t, store.InsertBulk(ctx, []*domain.Candle{original}))

	got, err := store.GetByTimeRange(ctx, "XRPUSDT", 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Mutating the returned candle must not affect stored data
	got[0].Close = 99

	again, err := store.GetByTimeRange(ctx, "XRPUSDT", 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, again[0].Close, 1e-9)
}
