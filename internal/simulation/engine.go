package simulation

import (
	"errors"
	"fmt"

	"futures-replay-lab/internal/domain"
)

// Engine errors.
var (
	// ErrNoCandle is returned when the engine is created without a first candle.
	ErrNoCandle = errors.New("first candle is required to seed the engine")

	// ErrRunLiquidated is returned when Step is called after liquidation.
	// Liquidation terminates the run; no further candles are processed.
	ErrRunLiquidated = errors.New("run already liquidated")

	// ErrInvariantViolated indicates a logic defect, never bad input.
	// It aborts the run instead of being recovered.
	ErrInvariantViolated = errors.New("position invariant violated")
)

// Engine is the position state machine. It owns the current
// PositionState and applies signal-driven entry, average-down,
// take-profit and liquidation rules one candle at a time. It is
// strictly sequential: a Step must complete before the next candle is
// processed, and no two Steps may run concurrently against one Engine.
type Engine struct {
	cfg     domain.SimulationConfig
	matcher *SignalMatcher
	state   domain.PositionState

	// liquidationPrice as reported by the previous step; recorded on
	// average-down events as the pre-averaging threshold.
	lastLiquidationPrice float64

	liquidated bool
}

// NewEngine validates the config and seeds a flat state from the first
// candle's opening price. The seeded entry price is a display
// convenience, not an economic position.
func NewEngine(cfg domain.SimulationConfig, first *domain.Candle, signals []*domain.Signal) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if first == nil {
		return nil, ErrNoCandle
	}

	return &Engine{
		cfg:     cfg,
		matcher: NewSignalMatcher(signals),
		state: domain.PositionState{
			Side:              domain.SideLong,
			FirstEntryPrice:   first.Open,
			AverageEntryPrice: first.Open,
		},
	}, nil
}

// State returns a copy of the current position state.
func (e *Engine) State() domain.PositionState {
	return e.state
}

// Liquidated reports whether the run has been terminated by liquidation.
func (e *Engine) Liquidated() bool {
	return e.liquidated
}

// Step applies the per-candle transition and returns the step snapshot
// plus the averaging and take-profit events it emitted, if any. After a
// liquidation Step returns ErrRunLiquidated for every further candle.
func (e *Engine) Step(c *domain.Candle) (domain.StepResult, *domain.AddEntryRecord, *domain.TakeProfitRecord, error) {
	if e.liquidated {
		return domain.StepResult{}, nil, nil, ErrRunLiquidated
	}

	state, result, add, tp, liquidated, err := step(e.cfg, e.state, e.lastLiquidationPrice, c, e.matcher)
	if err != nil {
		return domain.StepResult{}, nil, nil, err
	}

	e.state = state
	e.lastLiquidationPrice = result.LiquidationPrice
	e.liquidated = liquidated
	return result, add, tp, nil
}

// step is the single transition function shared by batch and live
// replay. It evaluates, in order: signal entry (flat only), unrealized
// PnL, guarded average-down, take-profit against the PRE-averaging PnL%
// of this same candle, then the liquidation check against the updated
// average and quantity. The returned StepResult is rebuilt from the
// final state so closing candles report flat figures.
func step(
	cfg domain.SimulationConfig,
	state domain.PositionState,
	prevLiquidationPrice float64,
	c *domain.Candle,
	matcher *SignalMatcher,
) (domain.PositionState, domain.StepResult, *domain.AddEntryRecord, *domain.TakeProfitRecord, bool, error) {
	price := c.Close
	if price <= 0 {
		return state, domain.StepResult{}, nil, nil, false,
			fmt.Errorf("%w: candle at %d has non-positive close %v", ErrInvariantViolated, c.OpenTime, price)
	}

	// addEntryCount at the start of the step guards against applying
	// more than one average-down per transition.
	startAddEntryCount := state.AddEntryCount

	if !state.HasPosition {
		if sig := matcher.Match(c.OpenTime); sig != nil {
			state.HasPosition = true
			state.Side = sig.Side()
			state.FirstEntryPrice = price
			state.AverageEntryPrice = price
			state.TotalQuantity = cfg.EntryQuantity()
			state.AddEntryCount = 0
		}
	}

	if !state.HasPosition {
		// Flat candle: track the close so the next entry seeds cleanly.
		state.FirstEntryPrice = price
		state.AverageEntryPrice = price
		return state, flatStepResult(state, c), nil, nil, false, nil
	}

	if state.AverageEntryPrice <= 0 {
		return state, domain.StepResult{}, nil, nil, false,
			fmt.Errorf("%w: average entry price %v with quantity %v", ErrInvariantViolated, state.AverageEntryPrice, state.TotalQuantity)
	}

	// PnL before any averaging or take-profit this candle. The
	// take-profit test below deliberately uses these pre-averaging
	// values even when an average-down fires on the same candle.
	priceDiff := directedDiff(state.Side, price, state.AverageEntryPrice)
	pnl := priceDiff * state.TotalQuantity * float64(cfg.Leverage)
	pnlPercent := priceDiff / state.AverageEntryPrice * 100 * float64(cfg.Leverage)

	var add *domain.AddEntryRecord
	if pnlPercent <= -cfg.AddEntryTriggerPercent && state.AddEntryCount == startAddEntryCount {
		oldQty := state.TotalQuantity
		addQty := cfg.EntryQuantity()
		state.TotalQuantity += addQty
		state.AverageEntryPrice = (state.AverageEntryPrice*oldQty + price*addQty) / state.TotalQuantity
		state.AddEntryCount++

		// Post-averaging PnL% is recorded on the event only; the
		// take-profit test keeps the pre-averaging value.
		newDiff := directedDiff(state.Side, price, state.AverageEntryPrice)
		newPnLPercent := newDiff / state.AverageEntryPrice * 100 * float64(cfg.Leverage)

		add = &domain.AddEntryRecord{
			Time:                   c.OpenTime,
			Price:                  price,
			QuantityAdded:          addQty,
			AverageEntryPriceAfter: state.AverageEntryPrice,
			TotalQuantityAfter:     state.TotalQuantity,
			PnLPercentBefore:       pnlPercent,
			PnLPercentAfter:        newPnLPercent,
			LiquidationPriceBefore: prevLiquidationPrice,
			LiquidationPriceAfter:  LiquidationPrice(state.AverageEntryPrice, state.TotalQuantity, cfg.Balance, cfg.Leverage, state.Side),
			Order:                  state.AddEntryCount,
		}
	}

	var tp *domain.TakeProfitRecord
	if pnlPercent >= cfg.TakeProfitPercent {
		tp = &domain.TakeProfitRecord{
			Time:           c.OpenTime,
			Price:          price,
			EntryPrice:     state.AverageEntryPrice,
			PnL:            pnl,
			PnLPercent:     pnlPercent,
			QuantityClosed: state.TotalQuantity,
			Side:           state.Side,
		}
		state.HasPosition = false
		state.TotalQuantity = 0
		state.AverageEntryPrice = price
		state.AddEntryCount = 0
	}

	// Liquidation threshold from the possibly just-updated average and
	// quantity. A position closed by take-profit above cannot liquidate.
	var liquidationPrice float64
	liquidated := false
	if state.HasPosition && state.TotalQuantity > 0 {
		liquidationPrice = LiquidationPrice(state.AverageEntryPrice, state.TotalQuantity, cfg.Balance, cfg.Leverage, state.Side)
		liquidated = (state.Side == domain.SideLong && price <= liquidationPrice) ||
			(state.Side == domain.SideShort && price >= liquidationPrice)
		if liquidated {
			state.HasPosition = false
			state.TotalQuantity = 0
			state.AverageEntryPrice = price
			state.AddEntryCount = 0
		}
	}

	// Final figures from the post-transition state, so take-profit and
	// liquidation candles report the zeroed flat position.
	finalDiff := directedDiff(state.Side, price, state.AverageEntryPrice)
	finalPnL := finalDiff * state.TotalQuantity * float64(cfg.Leverage)
	finalPnLPercent := finalDiff / state.AverageEntryPrice * 100 * float64(cfg.Leverage)
	positionValue := price * state.TotalQuantity
	margin := positionValue / float64(cfg.Leverage)

	entryPrice := price
	if state.HasPosition {
		entryPrice = state.AverageEntryPrice
	}

	result := domain.StepResult{
		Time:             c.OpenTime,
		Price:            price,
		EntryPrice:       entryPrice,
		PnL:              finalPnL,
		PnLPercent:       finalPnLPercent,
		Margin:           margin,
		PositionValue:    positionValue,
		LiquidationPrice: liquidationPrice,
		Position:         state,
	}
	return state, result, add, tp, liquidated, nil
}

// flatStepResult reports a candle processed with no open position.
func flatStepResult(state domain.PositionState, c *domain.Candle) domain.StepResult {
	return domain.StepResult{
		Time:       c.OpenTime,
		Price:      c.Close,
		EntryPrice: c.Close,
		Position:   state,
	}
}

// directedDiff returns the price move in the position's favorable
// direction: close-entry for longs, entry-close for shorts.
func directedDiff(side domain.Side, price, avgEntry float64) float64 {
	if side == domain.SideLong {
		return price - avgEntry
	}
	return avgEntry - price
}
