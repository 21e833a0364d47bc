package storage

import (
	"context"

	"futures-replay-lab/internal/domain"
)

// CandleStore provides access to ohlcv_1m storage.
type CandleStore interface {
	// InsertBulk adds multiple candles. Fails the entire batch on a
	// duplicate (symbol, open_time).
	InsertBulk(ctx context.Context, candles []*domain.Candle) error

	// GetByTimeRange retrieves candles for a symbol with open_time
	// within [start, end] (inclusive), ordered by open_time ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Candle, error)

	// GetLatestOpenTime returns the newest stored open_time for a
	// symbol, or ErrNotFound if the symbol has no candles.
	GetLatestOpenTime(ctx context.Context, symbol string) (int64, error)
}

// SignalStore provides access to signals storage.
type SignalStore interface {
	// Insert adds a single signal.
	Insert(ctx context.Context, s *domain.Signal) error

	// InsertBulk adds multiple signals. Fails the entire batch on any error.
	InsertBulk(ctx context.Context, signals []*domain.Signal) error

	// GetByTimeRange retrieves signals for a symbol with created_at
	// within [start, end] (inclusive), ordered by created_at ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Signal, error)
}
