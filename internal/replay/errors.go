package replay

import "errors"

// Replay input errors. All are reported before the first step executes.
var (
	// ErrNoCandles is returned when the candle window is empty.
	ErrNoCandles = errors.New("no candles in the requested window")

	// ErrUnorderedCandles is returned when candle open times are not
	// strictly ascending.
	ErrUnorderedCandles = errors.New("candles are not in ascending open-time order")

	// ErrUnorderedSignals is returned when signal creation times are
	// not ascending.
	ErrUnorderedSignals = errors.New("signals are not in ascending created-at order")

	// ErrRunStopped is returned by Tick after Stop has been called.
	ErrRunStopped = errors.New("live run stopped")
)
