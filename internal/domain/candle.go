package domain

// Candle represents one OHLCV candle from the 1-minute kline feed.
// Corresponds to the ohlcv_1m table.
type Candle struct {
	Symbol    string  `json:"symbol"`    // trading pair, e.g. "XRPUSDT"
	OpenTime  int64   `json:"openTime"`  // Unix timestamp in milliseconds, unique per symbol
	Open      float64 `json:"open"`      // opening price
	High      float64 `json:"high"`      // highest price
	Low       float64 `json:"low"`       // lowest price
	Close     float64 `json:"close"`     // closing price
	Volume    float64 `json:"volume"`    // base asset volume
	CloseTime int64   `json:"closeTime"` // Unix timestamp in milliseconds
}

// MinuteBucket returns the timestamp floored to the start of its minute.
// Signals and candles are matched on this bucket.
func MinuteBucket(timestampMs int64) int64 {
	return timestampMs / 60_000 * 60_000
}
