package simulation

import "futures-replay-lab/internal/domain"

// SignalMatcher finds, for a candle's minute bucket, the signal whose
// creation time falls in the same minute. Signals are indexed by minute
// bucket once at construction; when several signals share a bucket the
// one earliest in the original list order wins, which keeps behavior
// identical to a linear first-match scan of the source list.
type SignalMatcher struct {
	byBucket map[int64]*domain.Signal
}

// NewSignalMatcher builds a matcher over the full signal sequence.
func NewSignalMatcher(signals []*domain.Signal) *SignalMatcher {
	m := &SignalMatcher{byBucket: make(map[int64]*domain.Signal, len(signals))}
	for _, s := range signals {
		bucket := domain.MinuteBucket(s.CreatedAt)
		if _, exists := m.byBucket[bucket]; !exists {
			m.byBucket[bucket] = s
		}
	}
	return m
}

// Match returns the signal sharing the candle's minute bucket, or nil.
// The engine only consults the matcher while flat.
func (m *SignalMatcher) Match(candleOpenTime int64) *domain.Signal {
	return m.byBucket[domain.MinuteBucket(candleOpenTime)]
}
