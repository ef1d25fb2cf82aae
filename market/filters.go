package market

// SymbolFilters are the exchange's order constraints for one symbol.
// Quantities must be floored to StepSize; an order below MinQty or whose
// value is below MinNotional is rejected by the venue.
type SymbolFilters struct {
	StepSize    float64
	MinQty      float64
	MinNotional float64
}
