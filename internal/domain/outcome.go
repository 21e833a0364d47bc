package domain

// StepResult is the per-candle snapshot appended to the run history.
// One StepResult is produced for every processed candle; the ordered
// sequence forms the state history of a run.
type StepResult struct {
	Time             int64         `json:"time"`             // candle open time (ms)
	Price            float64       `json:"price"`            // candle close
	EntryPrice       float64       `json:"entryPrice"`       // average entry while open, close while flat
	PnL              float64       `json:"pnl"`              // unrealized PnL after this step
	PnLPercent       float64       `json:"pnlPercent"`       // leveraged unrealized PnL percent
	Margin           float64       `json:"margin"`           // positionValue / leverage
	PositionValue    float64       `json:"positionValue"`    // close * totalQuantity
	LiquidationPrice float64       `json:"liquidationPrice"` // 0 while flat
	Position         PositionState `json:"position"`         // state after this step
}

// AddEntryRecord is appended exactly once per average-down event and
// never mutated afterwards.
type AddEntryRecord struct {
	Time                   int64   `json:"time"`
	Price                  float64 `json:"price"`
	QuantityAdded          float64 `json:"quantityAdded"`
	AverageEntryPriceAfter float64 `json:"averageEntryPriceAfter"`
	TotalQuantityAfter     float64 `json:"totalQuantityAfter"`
	PnLPercentBefore       float64 `json:"pnlPercentBefore"`
	PnLPercentAfter        float64 `json:"pnlPercentAfter"`
	LiquidationPriceBefore float64 `json:"liquidationPriceBefore"`
	LiquidationPriceAfter  float64 `json:"liquidationPriceAfter"`
	Order                  int     `json:"order"` // 1-based within the current position
}

// TakeProfitRecord is appended exactly once per take-profit closure.
// PnL figures are the pre-closure values the target was tested against.
type TakeProfitRecord struct {
	Time           int64   `json:"time"`
	Price          float64 `json:"price"`
	EntryPrice     float64 `json:"entryPrice"` // average entry at close
	PnL            float64 `json:"pnl"`
	PnLPercent     float64 `json:"pnlPercent"`
	QuantityClosed float64 `json:"quantityClosed"`
	Side           Side    `json:"side"`
}

// RunOutcome is the complete result of one replay run.
type RunOutcome struct {
	Config         SimulationConfig   `json:"config"`
	Final          PositionState      `json:"final"`
	Steps          []StepResult       `json:"steps"`
	AddEntries     []AddEntryRecord   `json:"addEntries"`
	TakeProfits    []TakeProfitRecord `json:"takeProfits"`
	Liquidated     bool               `json:"liquidated"`
	LiquidatedStep int                `json:"liquidatedStep"` // index into Steps, -1 if not liquidated
	LiquidatedAt   int64              `json:"liquidatedAt"`   // candle open time (ms), 0 if not liquidated
}
