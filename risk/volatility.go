// Package risk holds pre-trade controls: volatility-scaled position sizing
// and the account-level governor that halts trading when loss limits are hit.
package risk

// VolatilityPct normalizes an ATR value against price, yielding the percent
// range a typical bar covers. Comparable across symbols regardless of price
// magnitude.
func VolatilityPct(atr, price float64) float64 {
	if price <= 0 || atr <= 0 {
		return 0
	}
	return atr / price * 100
}
