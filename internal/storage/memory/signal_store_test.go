package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-replay-lab/internal/domain"
	"futures-replay-lab/internal/storage"
)

func TestSignalStore_InsertAssignsSequentialIDs(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	first := &domain.Signal{Symbol: "XRPUSDT", Label: domain.SignalLabelBuy, CreatedAt: 1000}
	second := &domain.Signal{Symbol: "XRPUSDT", Label: domain.SignalLabelSell, CreatedAt: 2000}

	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
}

func TestSignalStore_GetByTimeRange(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.Signal{
		{Symbol: "XRPUSDT", Label: domain.SignalLabelSell, CreatedAt: 180_000},
		{Symbol: "XRPUSDT", Label: domain.SignalLabelBuy, CreatedAt: 60_000},
		{Symbol: "BTCUSDT", Label: domain.SignalLabelBuy, CreatedAt: 60_000},
	}))

	got, err := store.GetByTimeRange(ctx, "XRPUSDT", 0, 200_000)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, int64(60_000), got[0].CreatedAt)
	assert.Equal(t, int64(180_000), got[1].CreatedAt)

	// Window excludes signals outside [start, end]
	got, err = store.GetByTimeRange(ctx, "XRPUSDT", 0, 120_000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.SignalLabelBuy, got[0].Label)
}

func TestSignalStore_InsertionOrderBreaksTies(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	// Same created_at: insertion order decides, matching the serial id
	// tie-breaker of the database stores.
	require.NoError(t, store.Insert(ctx, &domain.Signal{Symbol: "XRPUSDT", Label: domain.SignalLabelSell, CreatedAt: 60_000}))
	require.NoError(t, store.Insert(ctx, &domain.Signal{Symbol: "XRPUSDT", Label: domain.SignalLabelBuy, CreatedAt: 60_000}))

	got, err := store.GetByTimeRange(ctx, "XRPUSDT", 0, 120_000)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, domain.SignalLabelSell, got[0].Label)
	assert.Equal(t, domain.SignalLabelBuy, got[1].Label)
}

func TestSignalStore_InvalidInput(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Insert(ctx, &domain.Signal{Label: domain.SignalLabelBuy}), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.InsertBulk(ctx, []*domain.Signal{
		{Symbol: "XRPUSDT", Label: domain.SignalLabelBuy, CreatedAt: 1000},
		nil,
	}), storage.ErrInvalidInput)
}
