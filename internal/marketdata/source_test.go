package marketdata

import (
	"context"
	"errors"
	"testing"

	"futures-replay-lab/internal/domain"
	"futures-replay-lab/internal/storage/memory"
)

func TestSource_FetchCandles(t *testing.T) {
	ctx := context.Background()
	candleStore := memory.NewCandleStore()
	signalStore := memory.NewSignalStore()

	err := candleStore.InsertBulk(ctx, []*domain.Candle{
		{Symbol: "XRPUSDT", OpenTime: 0, Open: 1, High: 1, Low: 1, Close: 1, CloseTime: 59_999},
		{Symbol: "XRPUSDT", OpenTime: 60_000, Open: 1, High: 1, Low: 1, Close: 1.1, CloseTime: 119_999},
	})
	if err != nil {
		t.Fatalf("seed candles: %v", err)
	}

	source := NewSource(candleStore, signalStore)

	candles, err := source.FetchCandles(ctx, "XRPUSDT", 0, 120_000)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[0].OpenTime != 0 || candles[1].OpenTime != 60_000 {
		t.Errorf("expected ascending open times, got %d, %d", candles[0].OpenTime, candles[1].OpenTime)
	}
}

func TestSource_FetchCandlesEmptyWindow(t *testing.T) {
	source := NewSource(memory.NewCandleStore(), memory.NewSignalStore())

	_, err := source.FetchCandles(context.Background(), "XRPUSDT", 0, 120_000)
	if !errors.Is(err, ErrEmptyCandleWindow) {
		t.Errorf("expected ErrEmptyCandleWindow, got %v", err)
	}
}

func TestSource_FetchSignalsEmptyIsValid(t *testing.T) {
	source := NewSource(memory.NewCandleStore(), memory.NewSignalStore())

	signals, err := source.FetchSignals(context.Background(), "XRPUSDT", 0, 120_000)
	if err != nil {
		t.Fatalf("FetchSignals: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("expected no signals, got %d", len(signals))
	}
}
