package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a run report as Markdown string.
func RenderMarkdown(r *RunReport) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Replay Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Symbol: %s | Candles: %d\n\n", r.Symbol, r.CandleCount))

	// Configuration
	sb.WriteString("## Configuration\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Leverage | %dx |\n", r.Config.Leverage))
	sb.WriteString(fmt.Sprintf("| Units Per Size | %.4f |\n", r.Config.UnitsPerSize))
	sb.WriteString(fmt.Sprintf("| Size | %.4f |\n", r.Config.Size))
	sb.WriteString(fmt.Sprintf("| Balance | %.4f |\n", r.Config.Balance))
	sb.WriteString(fmt.Sprintf("| Add-Entry Trigger | -%.2f%% |\n", r.Config.AddEntryTriggerPercent))
	sb.WriteString(fmt.Sprintf("| Take-Profit Target | %.2f%% |\n", r.Config.TakeProfitPercent))
	sb.WriteString("\n")

	// Window
	sb.WriteString("## Window\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Start (ms) | %d |\n", r.StartTime))
	sb.WriteString(fmt.Sprintf("| End (ms) | %d |\n", r.EndTime))
	sb.WriteString(fmt.Sprintf("| Candles Processed | %d |\n", r.CandleCount))
	sb.WriteString("\n")

	// Trades
	sb.WriteString("## Trades\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Take-Profits | %d |\n", r.TakeProfitCount))
	sb.WriteString(fmt.Sprintf("| Long Take-Profits | %d |\n", r.LongTakeProfits))
	sb.WriteString(fmt.Sprintf("| Short Take-Profits | %d |\n", r.ShortTakeProfits))
	sb.WriteString(fmt.Sprintf("| Average-Downs | %d |\n", r.AddEntryCount))
	sb.WriteString(fmt.Sprintf("| Realized PnL | %.6f |\n", r.RealizedPnL))
	sb.WriteString("\n")

	// PnL% distribution
	sb.WriteString("## Take-Profit PnL Percent Distribution\n\n")
	if r.TakeProfitCount > 0 {
		sb.WriteString("| Mean | Median | P10 | P90 | Min | Max | Stddev |\n")
		sb.WriteString("|------|--------|-----|-----|-----|-----|--------|\n")
		sb.WriteString(fmt.Sprintf("| %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f |\n",
			r.PnLPercentMean, r.PnLPercentMedian, r.PnLPercentP10, r.PnLPercentP90,
			r.PnLPercentMin, r.PnLPercentMax, r.PnLPercentStddev))
	} else {
		sb.WriteString("No take-profits recorded.\n")
	}
	sb.WriteString("\n")

	// Terminal outcome
	sb.WriteString("## Outcome\n\n")
	if r.Liquidated {
		sb.WriteString(fmt.Sprintf("**LIQUIDATED** at %d (ms). Run halted.\n\n", r.LiquidatedAt))
	} else if r.FinalState.HasPosition {
		sb.WriteString(fmt.Sprintf("Open %s position at end of window: avg entry %.8f, quantity %.8f, average-downs %d.\n\n",
			r.FinalState.Side, r.FinalState.AverageEntryPrice, r.FinalState.TotalQuantity, r.FinalState.AddEntryCount))
	} else {
		sb.WriteString("Flat at end of window.\n\n")
	}

	return sb.String()
}
