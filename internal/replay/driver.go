package replay

import (
	"context"

	"futures-replay-lab/internal/domain"
)

// Run executes a batch replay: every candle is stepped in order and the
// loop halts immediately when the position liquidates. Batch mode is
// implemented as a tight loop over the same incremental run that live
// playback uses, so the two modes cannot diverge in numeric outcome.
func Run(ctx context.Context, cfg domain.SimulationConfig, candles []*domain.Candle, signals []*domain.Signal) (*domain.RunOutcome, error) {
	run, err := NewLiveRun(cfg, candles, signals)
	if err != nil {
		return nil, err
	}

	for !run.Done() {
		if _, _, err := run.Tick(ctx); err != nil {
			return nil, err
		}
	}

	return run.Outcome(), nil
}
