package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"futures-replay-lab/internal/domain"
	"futures-replay-lab/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Candle // keyed by (symbol, open_time)
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{data: make(map[string]*domain.Candle)}
}

// candleKey generates a unique key for a candle.
func candleKey(symbol string, openTime int64) string {
	return fmt.Sprintf("%s|%d", symbol, openTime)
}

// InsertBulk adds multiple candles. Fails the entire batch on a
// duplicate (symbol, open_time), including intra-batch duplicates.
func (s *CandleStore) InsertBulk(_ context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(candles))
	for _, c := range candles {
		if c == nil || c.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := candleKey(c.Symbol, c.OpenTime)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, c := range candles {
		candleCopy := *c
		s.data[candleKey(c.Symbol, c.OpenTime)] = &candleCopy
	}
	return nil
}

// GetByTimeRange retrieves candles within [start, end], ordered by open_time ASC.
func (s *CandleStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candle
	for _, c := range s.data {
		if c.Symbol == symbol && c.OpenTime >= start && c.OpenTime <= end {
			candleCopy := *c
			result = append(result, &candleCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenTime < result[j].OpenTime
	})
	return result, nil
}

// GetLatestOpenTime returns the newest stored open_time for a symbol.
func (s *CandleStore) GetLatestOpenTime(_ context.Context, symbol string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest int64
	found := false
	for _, c := range s.data {
		if c.Symbol == symbol && (!found || c.OpenTime > latest) {
			latest = c.OpenTime
			found = true
		}
	}
	if !found {
		return 0, storage.ErrNotFound
	}
	return latest, nil
}

var _ storage.CandleStore = (*CandleStore)(nil)
