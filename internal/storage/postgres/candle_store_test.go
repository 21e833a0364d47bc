package postgres

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
		Open:      close - 0.001,
		High:      close + 0.002,
		Low:       close - 0.003,
		Close:     close,
		Volume:    12345.5,
		CloseTime: openTime + 59_999,
	}
}

func TestCandleStore_InsertBulkAndGetByTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(pool)

	candles := []*domain.Candle{
		testCandle("XRPUSDT", 1700000000000, 0.6140),
		testCandle("XRPUSDT", 1700000060000, 0.6155),
		testCandle("BTCUSDT", 1700000000000, 36000),
	}
	require.NoError(t, store.InsertBulk(ctx, candles))

	got, err := store.GetByTimeRange(ctx, "XRPUSDT", 1700000000000, 1700000120000)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, int64(1700000000000), got[0].OpenTime)
	assert.Equal(t, int64(1700000060000), got[1].OpenTime)
	assert.InDelta(t, 0.6140, got[0].Close, 1e-9)
	assert.InDelta(t, 12345.5, got[0].Volume, 1e-9)
	assert.Equal(t, int64(1700000059999), got[0].CloseTime)
}

func TestCandleStore_InsertBulkDuplicateRollsBack(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.Candle{
		testCandle("XRPUSDT", 1700000000000, 0.6140),
	}))

	// Second batch conflicts on (symbol, open_time); nothing of it lands
	err := store.InsertBulk(ctx, []*domain.Candle{
		testCandle("XRPUSDT", 1700000060000, 0.6155),
		testCandle("XRPUSDT", 1700000000000, 0.9999),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByTimeRange(ctx, "XRPUSDT", 1700000000000, 1700000120000)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCandleStore_GetByTimeRangeEmpty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	got, err := NewCandleStore(pool).GetByTimeRange(context.Background(), "XRPUSDT", 0, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCandleStore_GetLatestOpenTime(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(pool)

	_, err := store.GetLatestOpenTime(ctx, "XRPUSDT")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.InsertBulk(ctx, []*domain.Candle{
		testCandle("XRPUSDT", 1700000000000, 0.6140),
		testCandle("XRPUSDT", 1700000060000, 0.6155),
	}))

	latest, err := store.GetLatestOpenTime(ctx, "XRPUSDT")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000060000), latest)
}
