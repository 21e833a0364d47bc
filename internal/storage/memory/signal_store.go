package memory

import (
	"context"
	"sort"
	"sync"

	"futures-replay-lab/internal/domain"
	"futures-replay-lab/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
// IDs are assigned sequentially on insert, mirroring a serial column.
type SignalStore struct {
	mu     sync.RWMutex
	data   []*domain.Signal
	nextID int64
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{nextID: 1}
}

// Insert adds a single signal and assigns its ID.
func (s *SignalStore) Insert(_ context.Context, sig *domain.Signal) error {
	if sig == nil || sig.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sigCopy := *sig
	sigCopy.ID = s.nextID
	s.nextID++
	s.data = append(s.data, &sigCopy)
	sig.ID = sigCopy.ID
	return nil
}

// InsertBulk adds multiple signals. Fails the entire batch on invalid input.
func (s *SignalStore) InsertBulk(ctx context.Context, signals []*domain.Signal) error {
	for _, sig := range signals {
		if sig == nil || sig.Symbol == "" {
			return storage.ErrInvalidInput
		}
	}
	for _, sig := range signals {
		if err := s.Insert(ctx, sig); err != nil {
			return err
		}
	}
	return nil
}

// GetByTimeRange retrieves signals within [start, end], ordered by
// created_at ASC with insertion order as tie-breaker.
func (s *SignalStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Signal
	for _, sig := range s.data {
		if sig.Symbol == symbol && sig.CreatedAt >= start && sig.CreatedAt <= end {
			sigCopy := *sig
			result = append(result, &sigCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})
	return result, nil
}

var _ storage.SignalStore = (*SignalStore)(nil)
