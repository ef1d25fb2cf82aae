package market

// SignalAction is what an upstream strategy asks the engine to do.
type SignalAction string

const (
	ActionEntry       SignalAction = "ENTRY"
	ActionExit        SignalAction = "EXIT"
	ActionPartialExit SignalAction = "PARTIAL_EXIT"
)

// Volatility regimes attached to entry signals. Trending markets justify
// larger allocations; ranging markets get capped.
const (
	RegimeTrending = "TRENDING"
	RegimeRanging  = "RANGING"
	RegimeNeutral  = "NEUTRAL"
)

// SignalDetails carries the strategy's market context for an entry.
type SignalDetails struct {
	ATR    float64
	Regime string
	Sniper bool
}

// TradeSignal is one instruction from the strategy layer. Score is the
// signal confidence in [0, 1].
type TradeSignal struct {
	Symbol  string
	Action  SignalAction
	Score   float64
	Details SignalDetails
}

// SignalSource hands pending signals to the engine. Next returns false when
// no signal is waiting.
type SignalSource interface {
	Next() (TradeSignal, bool)
}
