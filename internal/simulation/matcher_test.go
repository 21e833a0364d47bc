package simulation

import (
	"testing"

	"futures-replay-lab/internal/domain"
)

func TestSignalMatcher_MatchesSameMinute(t *testing.T) {
	signals := []*domain.Signal{
		{Symbol: "XRPUSDT", Label: domain.SignalLabelBuy, CreatedAt: 60_500},
	}
	m := NewSignalMatcher(signals)

	// Candle opening at 60000 shares the signal's minute bucket
	sig := m.Match(60_000)
	if sig == nil {
		t.Fatal("expected a match for the signal's minute bucket")
	}
	if sig.CreatedAt != 60_500 {
		t.Errorf("expected signal at 60500, got %d", sig.CreatedAt)
	}
}

func TestSignalMatcher_NoMatchOutsideMinute(t *testing.T) {
	signals := []*domain.Signal{
		{Symbol: "XRPUSDT", Label: domain.SignalLabelBuy, CreatedAt: 60_500},
	}
	m := NewSignalMatcher(signals)

	if sig := m.Match(120_000); sig != nil {
		t.Errorf("expected no match for the next minute, got %+v", sig)
	}
	if sig := m.Match(0); sig != nil {
		t.Errorf("expected no match for the previous minute, got %+v", sig)
	}
}

func TestSignalMatcher_FirstSignalInBucketWins(t *testing.T) {
	// Two signals inside one minute: the earlier list entry wins, even
	// when a later one has a smaller timestamp.
	signals := []*domain.Signal{
		{Symbol: "XRPUSDT", Label: domain.SignalLabelSell, CreatedAt: 60_900},
		{Symbol: "XRPUSDT", Label: domain.SignalLabelBuy, CreatedAt: 60_100},
	}
	m := NewSignalMatcher(signals)

	sig := m.Match(60_000)
	if sig == nil {
		t.Fatal("expected a match")
	}
	if sig.Label != domain.SignalLabelSell {
		t.Errorf("expected first listed signal to win, got label %q", sig.Label)
	}
}

func TestSignalMatcher_EmptySignals(t *testing.T) {
	m := NewSignalMatcher(nil)

	if sig := m.Match(0); sig != nil {
		t.Errorf("expected no match from empty matcher, got %+v", sig)
	}
}
