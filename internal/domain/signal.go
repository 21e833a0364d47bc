package domain

// Side represents the direction of a position.
type Side string

// Side constants.
const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Signal label constants as stored in the signals table.
const (
	SignalLabelBuy  = "buy"
	SignalLabelSell = "sell"
)

// Signal represents one trade signal.
// Corresponds to the signals table.
type Signal struct {
	ID        int64  `json:"id"`        // storage-assigned identifier
	Symbol    string `json:"symbol"`    // trading pair the signal applies to
	Label     string `json:"signal"`    // "buy" or "sell"
	CreatedAt int64  `json:"createdAt"` // Unix timestamp in milliseconds
}

// Side maps the stored label to a position side: "buy" opens a long,
// anything else opens a short.
func (s *Signal) Side() Side {
	if s.Label == SignalLabelBuy {
		return SideLong
	}
	return SideShort
}
