package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"futures-replay-lab/internal/domain"
)

// CSV layouts accepted for signal timestamps. The exporter writes
// "2006-01-02 15:04:05+00:00"; RFC3339 is accepted as well.
var signalTimeLayouts = []string{
	"2006-01-02 15:04:05-07:00",
	time.RFC3339,
}

// ReadCandlesCSV parses a candle export with the header
// openTime,open,high,low,close,volume,closeTime. The symbol is not part
// of the export and is attached to every row.
func ReadCandlesCSV(r io.Reader, symbol string) ([]*domain.Candle, error) {
	reader := csv.NewReader(r)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read candle csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("candle csv is empty")
	}

	var candles []*domain.Candle
	for i, rec := range records {
		if i == 0 && strings.EqualFold(rec[0], "openTime") {
			continue // header row
		}
		if len(rec) < 7 {
			return nil, fmt.Errorf("candle csv row %d: expected 7 columns, got %d", i+1, len(rec))
		}

		c := &domain.Candle{Symbol: symbol}
		if c.OpenTime, err = strconv.ParseInt(rec[0], 10, 64); err != nil {
			return nil, fmt.Errorf("candle csv row %d: parse openTime: %w", i+1, err)
		}
		if c.Open, err = strconv.ParseFloat(rec[1], 64); err != nil {
			return nil, fmt.Errorf("candle csv row %d: parse open: %w", i+1, err)
		}
		if c.High, err = strconv.ParseFloat(rec[2], 64); err != nil {
			return nil, fmt.Errorf("candle csv row %d: parse high: %w", i+1, err)
		}
		if c.Low, err = strconv.ParseFloat(rec[3], 64); err != nil {
			return nil, fmt.Errorf("candle csv row %d: parse low: %w", i+1, err)
		}
		if c.Close, err = strconv.ParseFloat(rec[4], 64); err != nil {
			return nil, fmt.Errorf("candle csv row %d: parse close: %w", i+1, err)
		}
		if c.Volume, err = strconv.ParseFloat(rec[5], 64); err != nil {
			return nil, fmt.Errorf("candle csv row %d: parse volume: %w", i+1, err)
		}
		if c.CloseTime, err = strconv.ParseInt(rec[6], 10, 64); err != nil {
			return nil, fmt.Errorf("candle csv row %d: parse closeTime: %w", i+1, err)
		}
		candles = append(candles, c)
	}

	return candles, nil
}

// ReadSignalsCSV parses a signal export with the header
// symbol,signal,created_at. Timestamps are parsed into millisecond
// epochs.
func ReadSignalsCSV(r io.Reader) ([]*domain.Signal, error) {
	reader := csv.NewReader(r)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read signal csv: %w", err)
	}

	var signals []*domain.Signal
	for i, rec := range records {
		if i == 0 && strings.EqualFold(rec[0], "symbol") {
			continue // header row
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("signal csv row %d: expected 3 columns, got %d", i+1, len(rec))
		}

		createdAt, err := parseSignalTime(rec[2])
		if err != nil {
			return nil, fmt.Errorf("signal csv row %d: %w", i+1, err)
		}

		signals = append(signals, &domain.Signal{
			Symbol:    rec[0],
			Label:     strings.ToLower(rec[1]),
			CreatedAt: createdAt,
		})
	}

	return signals, nil
}

// LoadCandlesFile reads a candle CSV export from disk.
func LoadCandlesFile(path, symbol string) ([]*domain.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candle csv: %w", err)
	}
	defer f.Close()

	return ReadCandlesCSV(f, symbol)
}

// LoadSignalsFile reads a signal CSV export from disk.
func LoadSignalsFile(path string) ([]*domain.Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open signal csv: %w", err)
	}
	defer f.Close()

	return ReadSignalsCSV(f)
}

// parseSignalTime parses a signal timestamp in any accepted layout.
func parseSignalTime(value string) (int64, error) {
	for _, layout := range signalTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("parse created_at %q: unsupported format", value)
}
