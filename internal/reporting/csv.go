package reporting

import (
	"fmt"
	"strings"

	"futures-replay-lab/internal/domain"
)

// RenderStepsCSV renders the per-candle step history as CSV string.
func RenderStepsCSV(steps []domain.StepResult) string {
	var sb strings.Builder

	// Header
	sb.WriteString("time,price,entry_price,pnl,pnl_percent,margin,position_value,liquidation_price,")
	sb.WriteString("side,has_position,total_quantity,add_entry_count\n")

	// Rows
	for _, s := range steps {
		sb.WriteString(fmt.Sprintf("%d,%.8f,%.8f,%.8f,%.6f,%.8f,%.8f,%.8f,%s,%t,%.8f,%d\n",
			s.Time,
			s.Price,
			s.EntryPrice,
			s.PnL,
			s.PnLPercent,
			s.Margin,
			s.PositionValue,
			s.LiquidationPrice,
			s.Position.Side,
			s.Position.HasPosition,
			s.Position.TotalQuantity,
			s.Position.AddEntryCount,
		))
	}

	return sb.String()
}

// RenderAddEntriesCSV renders the average-down event log as CSV string.
func RenderAddEntriesCSV(entries []domain.AddEntryRecord) string {
	var sb strings.Builder

	// Header
	sb.WriteString("time,price,quantity_added,average_entry_price_after,total_quantity_after,")
	sb.WriteString("pnl_percent_before,pnl_percent_after,liquidation_price_before,liquidation_price_after,order\n")

	// Rows
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("%d,%.8f,%.8f,%.8f,%.8f,%.6f,%.6f,%.8f,%.8f,%d\n",
			e.Time,
			e.Price,
			e.QuantityAdded,
			e.AverageEntryPriceAfter,
			e.TotalQuantityAfter,
			e.PnLPercentBefore,
			e.PnLPercentAfter,
			e.LiquidationPriceBefore,
			e.LiquidationPriceAfter,
			e.Order,
		))
	}

	return sb.String()
}

// RenderTakeProfitsCSV renders the take-profit event log as CSV string.
func RenderTakeProfitsCSV(takeProfits []domain.TakeProfitRecord) string {
	var sb strings.Builder

	// Header
	sb.WriteString("time,price,entry_price,pnl,pnl_percent,quantity_closed,side\n")

	// Rows
	for _, tp := range takeProfits {
		sb.WriteString(fmt.Sprintf("%d,%.8f,%.8f,%.8f,%.6f,%.8f,%s\n",
			tp.Time,
			tp.Price,
			tp.EntryPrice,
			tp.PnL,
			tp.PnLPercent,
			tp.QuantityClosed,
			tp.Side,
		))
	}

	return sb.String()
}
