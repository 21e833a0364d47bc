package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"futures-replay-lab/internal/domain"
	"futures-replay-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using PostgreSQL.
type CandleStore struct {
	pool *Pool
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(pool *Pool) *CandleStore {
	return &CandleStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds multiple candles atomically. Fails the entire batch
// on a duplicate (symbol, open_time).
func (s *CandleStore) InsertBulk(ctx context.Context, candles []*domain.Candle) (err error) {
	if len(candles) == 0 {
		return nil
	}
	defer observe("ohlcv_insert_bulk", time.Now(), &err)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO ohlcv_1m (
			symbol, open_time, open, high, low, close, volume, close_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, c := range candles {
		_, err := tx.Exec(ctx, query,
			c.Symbol,
			c.OpenTime,
			c.Open,
			c.High,
			c.Low,
			c.Close,
			c.Volume,
			c.CloseTime,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert candle in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
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
		WHERE symbol = $1 AND open_time >= $2 AND open_time <= $3
		ORDER BY open_time ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("get candles by time range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetLatestOpenTime returns the newest stored open_time for a symbol.
func (s *CandleStore) GetLatestOpenTime(ctx context.Context, symbol string) (ts int64, err error) {
	defer observe("ohlcv_latest", time.Now(), &err)

	query := `SELECT max(open_time) FROM ohlcv_1m WHERE symbol = $1`

	var latest *int64
	if err := s.pool.QueryRow(ctx, query, symbol).Scan(&latest); err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("get latest open time: %w", err)
	}
	if latest == nil {
		return 0, storage.ErrNotFound
	}
	return *latest, nil
}

// scanCandles scans multiple rows into a slice of Candle.
func scanCandles(rows pgx.Rows) ([]*domain.Candle, error) {
	var candles []*domain.Candle

	for rows.Next() {
		var c domain.Candle

		err := rows.Scan(
			&c.Symbol,
			&c.OpenTime,
			&c.Open,
			&c.High,
			&c.Low,
			&c.Close,
			&c.Volume,
			&c.CloseTime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		candles = append(candles, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}
	return candles, nil
}
