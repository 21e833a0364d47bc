package domain

// PositionState is the cross-margined position at a candle boundary.
// Created flat at run start, it transitions to open on a matching
// signal and back to flat on take-profit or liquidation. Only the
// position engine mutates it.
type PositionState struct {
	Side              Side    `json:"side"`              // fixed for the lifetime of an open position
	HasPosition       bool    `json:"hasPosition"`       // true while a position is open
	FirstEntryPrice   float64 `json:"firstEntryPrice"`   // price of the initial entry; tracks last close while flat
	AverageEntryPrice float64 `json:"averageEntryPrice"` // blended entry price; tracks last close while flat
	TotalQuantity     float64 `json:"totalQuantity"`     // position quantity including average-downs
	AddEntryCount     int     `json:"addEntryCount"`     // number of average-downs in the current position
}
