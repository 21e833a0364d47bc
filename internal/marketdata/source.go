package marketdata

import (
	"context"
	"errors"
	"fmt"

	"futures-replay-lab/internal/domain"
	"futures-replay-lab/internal/storage"
)

// Source errors.
var (
	// ErrEmptyCandleWindow is returned when the requested window holds
	// no candles. An empty window fails the run; it is never silently
	// treated as an empty run.
	ErrEmptyCandleWindow = errors.New("candle window is empty")
)

// Source resolves the candle and signal sequences for a run from the
// backing stores. Both sequences are fully loaded and order-checked
// before the replay starts; a store failure aborts the run.
type Source struct {
	candles storage.CandleStore
	signals storage.SignalStore
}

// NewSource creates a Source over the given stores.
func NewSource(candles storage.CandleStore, signals storage.SignalStore) *Source {
	return &Source{candles: candles, signals: signals}
}

// FetchCandles loads the candle sequence for [start, end], ascending by
// open time. Fails on store errors and on an empty window.
func (s *Source) FetchCandles(ctx context.Context, symbol string, start, end int64) ([]*domain.Candle, error) {
	candles, err := s.candles.GetByTimeRange(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch candles for %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s [%d, %d]", ErrEmptyCandleWindow, symbol, start, end)
	}
	return candles, nil
}

// FetchSignals loads the signal sequence for [start, end], ascending by
// creation time. An empty signal list is a valid run input.
func (s *Source) FetchSignals(ctx context.Context, symbol string, start, end int64) ([]*domain.Signal, error) {
	signals, err := s.signals.GetByTimeRange(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch signals for %s: %w", symbol, err)
	}
	return signals, nil
}
