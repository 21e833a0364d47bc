package clickhouse

import (
	"context"
	"fmt"
	"time"

	"futures-replay-lab/internal/domain"
	"futures-replay-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse. The
// dense 1-minute OHLCV series is the kind of append-heavy timeseries
// ClickHouse batches well.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds multiple candles. ClickHouse MergeTree does not
// enforce uniqueness at insert time, so duplicates are detected with an
// explicit check before the batch is sent.
func (s *CandleStore) InsertBulk(ctx context.Context, candles []*domain.Candle) (err error) {
	if len(candles) == 0 {
		return nil
	}
	defer observe("ohlcv_insert_bulk", time.Now(), &err)

	// Check for intra-batch duplicates
	type key struct {
		symbol   string
		openTime int64
	}
	seen := make(map[key]struct{}, len(candles))
	for _, c := range candles {
		k := key{c.Symbol, c.OpenTime}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, c := range candles {
		exists, err := s.exists(ctx, c.Symbol, c.OpenTime)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ohlcv_1m (
			symbol, open_time, open, high, low, close, volume, close_time
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			c.Symbol, uint64(c.OpenTime),
			c.Open, c.High, c.Low, c.Close, c.Volume,
			uint64(c.CloseTime),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves candles within [start, end] (inclusive),
// ordered by open_time ASC.
func (s *CandleStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) (candles []*domain.Candle, err error) {
	defer observe("ohlcv_get_range", time.Now(), &err)

	query := `
		SELECT symbol, open_time, open, high, low, close, volume, close_time
		FROM ohlcv_1m
		WHERE symbol = ? AND open_time >= ? AND open_time <= ?
		ORDER BY open_time ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetLatestOpenTime returns the newest stored open_time for a symbol.
func (s *CandleStore) GetLatestOpenTime(ctx context.Context, symbol string) (ts int64, err error) {
	defer observe("ohlcv_latest", time.Now(), &err)

	query := `SELECT count(*), max(open_time) FROM ohlcv_1m WHERE symbol = ?`

	var count, latest uint64
	if err := s.conn.QueryRow(ctx, query, symbol).Scan(&count, &latest); err != nil {
		return 0, fmt.Errorf("get latest open time: %w", err)
	}
	if count == 0 {
		return 0, storage.ErrNotFound
	}
	return int64(latest), nil
}

// exists checks if a candle with the given key exists.
func (s *CandleStore) exists(ctx context.Context, symbol string, openTime int64) (bool, error) {
	query := `
		SELECT count(*) FROM ohlcv_1m
		WHERE symbol = ? AND open_time = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, uint64(openTime)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanCandles scans multiple rows.
func scanCandles(rows chRows) ([]*domain.Candle, error) {
	var candles []*domain.Candle

	for rows.Next() {
		var c domain.Candle
		var openTime, closeTime uint64

		err := rows.Scan(
			&c.Symbol, &openTime,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume,
			&closeTime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		c.OpenTime = int64(openTime)
		c.CloseTime = int64(closeTime)
		candles = append(candles, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}
	return candles, nil
}
