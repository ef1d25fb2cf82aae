package exit

import (
	"time"

	"go.uber.org/zap"

	"spotrisk/config"
	"spotrisk/ledger"
)

// Engine evaluates exit rules for open positions. Rules are checked in a
// fixed priority order: ROI targets, hold-time limits, the ATR trailing
// stop, then partial profit taking.
type Engine struct {
	cfg             config.ExitConfig
	roundTripFeePct float64
	log             *zap.Logger
}

// NewEngine creates an exit engine. takerFeePct is the per-side fee; ROI
// targets are measured net of a full round trip.
func NewEngine(cfg config.ExitConfig, takerFeePct float64, log *zap.Logger) *Engine {
	return &Engine{cfg: cfg, roundTripFeePct: takerFeePct * 2, log: log}
}

// Evaluate runs the exit rules for one position at the given price. atr is
// the current ATR for the symbol; pass 0 when unavailable and the stop falls
// back to a fixed percentage of price.
func (e *Engine) Evaluate(pos ledger.Position, price, atr float64, now time.Time) Decision {
	age := pos.Age(now)
	netPnLPct := pos.UnrealizedPnLPct(price) - e.roundTripFeePct

	// Time-scaled ROI targets: the longer a position is held, the smaller
	// the net gain it is allowed to walk away with.
	if target, ok := e.roiTarget(age); ok && netPnLPct >= target {
		return e.closeDecision(pos, ReasonDynamicROI)
	}

	if age >= e.holdDuration(e.cfg.MaxHoldTimeHours) {
		return e.closeDecision(pos, ReasonMaxHoldTime)
	}

	if age >= e.holdDuration(e.cfg.TimeBasedExitHours) && netPnLPct <= 0 {
		return e.closeDecision(pos, ReasonTimeNoProfit)
	}

	// First evaluation after entry only seeds the stop; no other rule runs
	// until the next tick.
	if pos.StopPrice <= 0 {
		stop, highest, _ := e.trail(pos, price, atr)
		return Decision{Action: UpdateStop, NewStop: stop, NewHighest: highest}
	}

	stop, highest, changed := e.trail(pos, price, atr)

	if price <= stop {
		return e.closeDecision(pos, ReasonTrailingStop)
	}

	if !pos.PartialExitDone && netPnLPct >= e.cfg.PartialTakeProfitPct {
		return Decision{
			Action:       PartialExit,
			Reason:       ReasonPartialProfit,
			NewStop:      stop,
			NewHighest:   highest,
			ExitFraction: e.cfg.PartialExitRatio,
		}
	}

	if changed {
		return Decision{Action: UpdateStop, NewStop: stop, NewHighest: highest}
	}
	return Decision{Action: Hold, NewStop: stop, NewHighest: highest}
}

func (e *Engine) closeDecision(pos ledger.Position, reason string) Decision {
	e.log.Debug("exit rule fired",
		zap.String("symbol", pos.Symbol),
		zap.String("reason", reason))
	return Decision{
		Action:     Close,
		Reason:     reason,
		NewStop:    pos.StopPrice,
		NewHighest: pos.HighestPrice,
	}
}

// roiTarget returns the net ROI target for the given age: the bracket with
// the largest AfterMinutes not exceeding it. Brackets are sorted ascending.
func (e *Engine) roiTarget(age time.Duration) (float64, bool) {
	minutes := age.Minutes()
	target, found := 0.0, false
	for _, b := range e.cfg.ROIBrackets {
		if minutes >= float64(b.AfterMinutes) {
			target, found = b.TargetPct, true
		}
	}
	return target, found
}

func (e *Engine) holdDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

// stopDistance computes how far below the high-water mark the stop sits.
// Positions that already banked partial profit trail tighter, and sniper
// entries tighter still.
func (e *Engine) stopDistance(pos ledger.Position, price, atr float64) float64 {
	if atr <= 0 {
		return price * e.cfg.FallbackStopPct / 100
	}

	mult := e.cfg.TrailingStopATRMultiplier
	if pos.PartialExitDone {
		mult = e.cfg.TrailingStopTightMultiplier
	}
	if pos.IsSniperEntry {
		mult *= e.cfg.SniperStopFactor
	}
	return atr * mult
}

// trail applies the ratchet. The stop only ever moves up, and the high-water
// mark only advances once price clears it by the configured step, so the stop
// isn't rewritten on every sub-step wiggle.
func (e *Engine) trail(pos ledger.Position, price, atr float64) (stop, highest float64, changed bool) {
	stop, highest = pos.StopPrice, pos.HighestPrice
	dist := e.stopDistance(pos, price, atr)

	if stop <= 0 {
		// First evaluation after entry: seed the stop below the entry price.
		stop = pos.EntryPrice - dist
		if highest < pos.EntryPrice {
			highest = pos.EntryPrice
		}
		return stop, highest, true
	}

	gate := highest * (1 + e.cfg.TrailingStepPct/100)
	if price >= gate {
		highest = price
		if candidate := price - dist; candidate > stop {
			stop = candidate
			changed = true
		}
	}
	return stop, highest, changed
}
