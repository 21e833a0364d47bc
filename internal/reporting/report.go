package reporting

import (
	"math"
	"sort"
	"time"

	"futures-replay-lab/internal/domain"
)

// RunReport summarizes a completed replay run for display and export.
type RunReport struct {
	// Metadata
	GeneratedAt time.Time               `json:"generatedAt"`
	Symbol      string                  `json:"symbol"`
	Config      domain.SimulationConfig `json:"config"`

	// Window
	StartTime   int64 `json:"startTime"` // first candle open time (ms)
	EndTime     int64 `json:"endTime"`   // last processed candle open time (ms)
	CandleCount int   `json:"candleCount"`

	// Trades
	TakeProfitCount  int     `json:"takeProfitCount"`
	AddEntryCount    int     `json:"addEntryCount"`
	RealizedPnL      float64 `json:"realizedPnl"` // sum of take-profit PnL
	LongTakeProfits  int     `json:"longTakeProfits"`
	ShortTakeProfits int     `json:"shortTakeProfits"`

	// Take-profit PnL% distribution
	PnLPercentMean   float64 `json:"pnlPercentMean"`
	PnLPercentMedian float64 `json:"pnlPercentMedian"`
	PnLPercentP10    float64 `json:"pnlPercentP10"`
	PnLPercentP90    float64 `json:"pnlPercentP90"`
	PnLPercentMin    float64 `json:"pnlPercentMin"`
	PnLPercentMax    float64 `json:"pnlPercentMax"`
	PnLPercentStddev float64 `json:"pnlPercentStddev"`

	// Terminal outcome
	Liquidated   bool                 `json:"liquidated"`
	LiquidatedAt int64                `json:"liquidatedAt"`
	FinalState   domain.PositionState `json:"finalState"`
}

// BuildReport computes the run summary from an outcome.
func BuildReport(symbol string, outcome *domain.RunOutcome) *RunReport {
	r := &RunReport{
		GeneratedAt:     time.Now().UTC(),
		Symbol:          symbol,
		Config:          outcome.Config,
		CandleCount:     len(outcome.Steps),
		TakeProfitCount: len(outcome.TakeProfits),
		AddEntryCount:   len(outcome.AddEntries),
		Liquidated:      outcome.Liquidated,
		LiquidatedAt:    outcome.LiquidatedAt,
		FinalState:      outcome.Final,
	}

	if len(outcome.Steps) > 0 {
		r.StartTime = outcome.Steps[0].Time
		r.EndTime = outcome.Steps[len(outcome.Steps)-1].Time
	}

	if len(outcome.TakeProfits) == 0 {
		return r
	}

	pcts := make([]float64, 0, len(outcome.TakeProfits))
	for _, tp := range outcome.TakeProfits {
		r.RealizedPnL += tp.PnL
		if tp.Side == domain.SideLong {
			r.LongTakeProfits++
		} else {
			r.ShortTakeProfits++
		}
		pcts = append(pcts, tp.PnLPercent)
	}

	mean := computeMean(pcts)
	sorted := make([]float64, len(pcts))
	copy(sorted, pcts)
	sort.Float64s(sorted)

	r.PnLPercentMean = mean
	r.PnLPercentMedian = computePercentile(sorted, 0.50)
	r.PnLPercentP10 = computePercentile(sorted, 0.10)
	r.PnLPercentP90 = computePercentile(sorted, 0.90)
	r.PnLPercentMin = sorted[0]
	r.PnLPercentMax = sorted[len(sorted)-1]
	r.PnLPercentStddev = computeStddev(pcts, mean)

	return r
}

// computeMean calculates the arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation between closest ranks.
// Input must be sorted ascending.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	rank := p * float64(n-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
