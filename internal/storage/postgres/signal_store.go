package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"futures-replay-lab/internal/domain"
	"futures-replay-lab/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// Insert adds a single signal and assigns its serial ID.
func (s *SignalStore) Insert(ctx context.Context, sig *domain.Signal) (err error) {
	defer observe("signals_insert", time.Now(), &err)

	query := `
		INSERT INTO signals (symbol, signal, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	if err := s.pool.QueryRow(ctx, query, sig.Symbol, sig.Label, sig.CreatedAt).Scan(&sig.ID); err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// InsertBulk adds multiple signals atomically.
func (s *SignalStore) InsertBulk(ctx context.Context, signals []*domain.Signal) (err error) {
	if len(signals) == 0 {
		return nil
	}
	defer observe("signals_insert_bulk", time.Now(), &err)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO signals (symbol, signal, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	for _, sig := range signals {
		if err := tx.QueryRow(ctx, query, sig.Symbol, sig.Label, sig.CreatedAt).Scan(&sig.ID); err != nil {
			return fmt.Errorf("insert signal in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves signals within [start, end] (inclusive),
// ordered by created_at ASC with id as tie-breaker.
func (s *SignalStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) (signals []*domain.Signal, err error) {
	defer observe("signals_get_range", time.Now(), &err)

	query := `
		SELECT id, symbol, signal, created_at
		FROM signals
		WHERE symbol = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("get signals by time range: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// scanSignals scans multiple rows into a slice of Signal.
func scanSignals(rows pgx.Rows) ([]*domain.Signal, error) {
	var signals []*domain.Signal

	for rows.Next() {
		var sig domain.Signal

		err := rows.Scan(
			&sig.ID,
			&sig.Symbol,
			&sig.Label,
			&sig.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}

		signals = append(signals, &sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}
	return signals, nil
}
