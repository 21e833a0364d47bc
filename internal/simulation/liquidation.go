package simulation

import "futures-replay-lab/internal/domain"

// LiquidationPrice computes the price at which a cross-margined
// position is forced closed. The whole account balance backs the
// position, so the price may shift by balance/(qty*leverage) from the
// average entry before the position is liquidated:
//
//	long:  avgEntry - balance/(qty*leverage)
//	short: avgEntry + balance/(qty*leverage)
//
// Callers must guarantee qty > 0 and leverage > 0; the engine only
// calls this while a position is open.
func LiquidationPrice(avgEntry, qty, balance float64, leverage int, side domain.Side) float64 {
	shift := balance / (qty * float64(leverage))
	if side == domain.SideLong {
		return avgEntry - shift
	}
	return avgEntry + shift
}
