package domain

import (
	"errors"
	"fmt"
)

// Default configuration values matching the XRPUSDT futures setup.
const (
	DefaultLeverage     = 30
	DefaultUnitsPerSize = 10.0
)

// Config validation errors. All are reported before a run starts;
// the engine never validates mid-run.
var (
	ErrInvalidSize     = errors.New("size must be a positive number")
	ErrInvalidBalance  = errors.New("balance must be a positive number")
	ErrInvalidLeverage = errors.New("leverage must be a positive integer")
	ErrInvalidUnits    = errors.New("units per size must be a positive number")
	ErrInvalidTrigger  = errors.New("add-entry trigger percent must not be negative")
	ErrInvalidTarget   = errors.New("take-profit percent must not be negative")
)

// SimulationConfig holds the parameters of a single run. All values are
// fixed for the whole run; changing any of them requires a new run.
type SimulationConfig struct {
	Leverage               int     `json:"leverage"`               // position leverage multiplier
	UnitsPerSize           float64 `json:"unitsPerSize"`           // size -> quantity conversion (1 size = N units)
	Size                   float64 `json:"size"`                   // order size per entry and per average-down
	Balance                float64 `json:"balance"`                // cross-margin pool backing the position
	AddEntryTriggerPercent float64 `json:"addEntryTriggerPercent"` // average-down when PnL% <= -trigger
	TakeProfitPercent      float64 `json:"takeProfitPercent"`      // close when PnL% >= target
}

// DefaultConfig returns a SimulationConfig with default leverage and
// size conversion. Balance, trigger and target still have to be set.
func DefaultConfig() SimulationConfig {
	return SimulationConfig{
		Leverage:     DefaultLeverage,
		UnitsPerSize: DefaultUnitsPerSize,
		Size:         1,
	}
}

// EntryQuantity returns the quantity added by one entry or one
// average-down order.
func (c SimulationConfig) EntryQuantity() float64 {
	return c.Size * c.UnitsPerSize
}

// Validate checks all config parameters. It is called once at run start.
func (c SimulationConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidSize, c.Size)
	}
	if c.Balance <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidBalance, c.Balance)
	}
	if c.Leverage <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidLeverage, c.Leverage)
	}
	if c.UnitsPerSize <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidUnits, c.UnitsPerSize)
	}
	if c.AddEntryTriggerPercent < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidTrigger, c.AddEntryTriggerPercent)
	}
	if c.TakeProfitPercent < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidTarget, c.TakeProfitPercent)
	}
	return nil
}
