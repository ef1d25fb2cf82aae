// Package exit decides what to do with an open position on every price tick:
// hold, ratchet the trailing stop, take partial profit, or close.
package exit

// Action is the primary verdict for a position on one tick.
type Action string

const (
	Hold        Action = "HOLD"
	UpdateStop  Action = "UPDATE_STOP"
	PartialExit Action = "PARTIAL_EXIT"
	Close       Action = "CLOSE"
)

// Exit reasons recorded in the journal and order history. The strings are
// fixed by the persisted trade-log format.
const (
	ReasonDynamicROI    = "DYNAMIC_ROI_HIT"
	ReasonMaxHoldTime   = "MAX_HOLD_TIME"
	ReasonTimeNoProfit  = "TIME_BASED_NO_PROFIT"
	ReasonTrailingStop  = "ATR_TRAILING_STOP_HIT"
	ReasonPartialProfit = "PARTIAL_PROFIT_TARGET"
)

// Decision is the outcome of evaluating one position. NewStop and NewHighest
// always carry the values the position should persist, whether or not they
// changed this tick. ExitFraction is set for PartialExit only.
type Decision struct {
	Action       Action
	Reason       string
	NewStop      float64
	NewHighest   float64
	ExitFraction float64
}
