package replay

import (
	"context"

	"futures-replay-lab/internal/domain"
	"futures-replay-lab/internal/simulation"
)

// LiveRun drives the position engine one candle per external tick. Any
// scheduler may own the tick cadence: a timer for live playback, a UI
// event, or a test loop. The run suspends only between candles, never
// inside a step, so cancellation at a tick boundary leaves the recorded
// history intact.
//
// A LiveRun is not safe for concurrent use; the engine requires one
// step to complete before the next begins.
type LiveRun struct {
	engine  *simulation.Engine
	candles []*domain.Candle
	next    int
	outcome *domain.RunOutcome
	stopped bool
}

// NewLiveRun validates inputs and prepares an incremental run. The
// engine state is seeded from the first candle's opening price; no
// steps execute until Tick is called.
func NewLiveRun(cfg domain.SimulationConfig, candles []*domain.Candle, signals []*domain.Signal) (*LiveRun, error) {
	if err := validateInputs(candles, signals); err != nil {
		return nil, err
	}

	engine, err := simulation.NewEngine(cfg, candles[0], signals)
	if err != nil {
		return nil, err
	}

	return &LiveRun{
		engine:  engine,
		candles: candles,
		outcome: &domain.RunOutcome{
			Config:         cfg,
			Final:          engine.State(),
			LiquidatedStep: -1,
		},
	}, nil
}

// Tick processes the next candle and appends its StepResult and events
// to the run history. done is true once every candle has been processed
// or the position was liquidated; further ticks after done return the
// zero StepResult with done=true and no error.
func (r *LiveRun) Tick(ctx context.Context) (domain.StepResult, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.StepResult{}, false, err
	}
	if r.stopped {
		return domain.StepResult{}, true, ErrRunStopped
	}
	if r.Done() {
		return domain.StepResult{}, true, nil
	}

	candle := r.candles[r.next]
	result, add, tp, err := r.engine.Step(candle)
	if err != nil {
		return domain.StepResult{}, false, err
	}
	r.next++

	r.outcome.Steps = append(r.outcome.Steps, result)
	if add != nil {
		r.outcome.AddEntries = append(r.outcome.AddEntries, *add)
	}
	if tp != nil {
		r.outcome.TakeProfits = append(r.outcome.TakeProfits, *tp)
	}
	if r.engine.Liquidated() {
		r.outcome.Liquidated = true
		r.outcome.LiquidatedStep = len(r.outcome.Steps) - 1
		r.outcome.LiquidatedAt = result.Time
	}
	r.outcome.Final = r.engine.State()

	return result, r.Done(), nil
}

// Done reports whether the run has consumed all candles or liquidated.
func (r *LiveRun) Done() bool {
	return r.next >= len(r.candles) || r.engine.Liquidated()
}

// Stop halts the run. History already recorded is never rolled back;
// Tick returns ErrRunStopped afterwards.
func (r *LiveRun) Stop() {
	r.stopped = true
}

// Outcome returns the run outcome accumulated so far. After Done it is
// the final outcome; before that, a prefix of it.
func (r *LiveRun) Outcome() *domain.RunOutcome {
	return r.outcome
}

// validateInputs checks the candle window and input ordering once,
// before any step executes. Malformed input fails the whole run.
func validateInputs(candles []*domain.Candle, signals []*domain.Signal) error {
	if len(candles) == 0 {
		return ErrNoCandles
	}
	for i := 1; i < len(candles); i++ {
		if candles[i].OpenTime <= candles[i-1].OpenTime {
			return ErrUnorderedCandles
		}
	}
	for i := 1; i < len(signals); i++ {
		if signals[i].CreatedAt < signals[i-1].CreatedAt {
			return ErrUnorderedSignals
		}
	}
	return nil
}
