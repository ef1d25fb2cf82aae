package gateway

import (
	"fmt"
	"math"

	"spotrisk/exchange"
	"spotrisk/market"
)

// FloorToStep rounds a quantity down to the symbol's lot step. Rounding up
// would order more than intended, so exchanges require the floor.
func FloorToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	return math.Floor(qty/step+1e-9) * step
}

// normalizeQuantity fits a desired quantity to the symbol's filters and the
// available balance. Sequence: floor to the lot step, enforce the minimum
// quantity, bump up to the minimum notional (with 5% headroom, re-floored),
// then verify the spendable balance covers it. free is the balance already
// scaled by leverage and the safety margin.
func normalizeQuantity(desired, price, free float64, f market.SymbolFilters) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("%w: non-positive price", exchange.ErrRejected)
	}

	qty := FloorToStep(desired, f.StepSize)

	if qty < f.MinQty {
		qty = f.MinQty
	}

	if f.MinNotional > 0 && qty*price < f.MinNotional {
		bumped := f.MinNotional * 1.05 / price
		qty = FloorToStep(bumped, f.StepSize)
		if qty*price < f.MinNotional {
			// Flooring dropped below the minimum again: one more step.
			qty += f.StepSize
		}
	}

	if qty <= 0 {
		return 0, fmt.Errorf("%w: quantity normalized to zero", exchange.ErrRejected)
	}

	if cost := qty * price; cost > free {
		return 0, fmt.Errorf("%w: need %.2f, have %.2f", exchange.ErrInsufficientFunds, cost, free)
	}
	return qty, nil
}
