package risk

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"spotrisk/config"
)

// Halt reasons reported by the governor.
const (
	ReasonSurvivalFloor = "SURVIVAL_FLOOR"
	ReasonDailyDrawdown = "DAILY_DRAWDOWN"
)

// Status is the governor's verdict for the current tick.
type Status struct {
	Halted    bool
	Permanent bool
	Reason    string
}

// Governor enforces account-level loss limits. A daily drawdown breach blocks
// new entries for the rest of the UTC day; dropping below the survival floor
// halts the engine permanently until an operator intervenes.
type Governor struct {
	cfg config.RiskConfig
	log *zap.Logger

	mu          sync.Mutex
	dayKey      string
	startEquity float64
	haltedDay   string
	permanent   bool
}

func NewGovernor(cfg config.RiskConfig, log *zap.Logger) *Governor {
	return &Governor{cfg: cfg, log: log}
}

// Check evaluates the limits for the current tick. equity is total account
// value (cash plus marked positions); dayRealizedPnLPct is the day's booked
// PnL as a percentage of start-of-day equity. Once a day's drawdown halt
// fires it sticks for that UTC day even if equity recovers.
func (g *Governor) Check(now time.Time, equity, dayRealizedPnLPct float64) Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.permanent {
		return Status{Halted: true, Permanent: true, Reason: ReasonSurvivalFloor}
	}

	if equity < g.cfg.SurvivalFloorUSD {
		g.permanent = true
		g.log.Error("equity below survival floor, trading halted",
			zap.Float64("equity", equity),
			zap.Float64("floor", g.cfg.SurvivalFloorUSD))
		return Status{Halted: true, Permanent: true, Reason: ReasonSurvivalFloor}
	}

	key := now.UTC().Format("2006-01-02")
	if key != g.dayKey {
		g.dayKey = key
		g.startEquity = equity
	}

	if g.haltedDay == key {
		return Status{Halted: true, Reason: ReasonDailyDrawdown}
	}

	if g.startEquity > 0 {
		drawdownPct := (g.startEquity - equity) / g.startEquity * 100
		if drawdownPct >= g.cfg.MaxDailyLossPct {
			g.haltedDay = key
			g.log.Warn("daily drawdown limit hit, entries blocked until next UTC day",
				zap.Float64("drawdownPct", drawdownPct),
				zap.Float64("limitPct", g.cfg.MaxDailyLossPct),
				zap.Float64("startEquity", g.startEquity),
				zap.Float64("equity", equity))
			return Status{Halted: true, Reason: ReasonDailyDrawdown}
		}
	}

	// Realized losses can breach the limit even while open positions keep
	// marked equity afloat.
	if dayRealizedPnLPct <= -g.cfg.MaxDailyLossPct {
		g.haltedDay = key
		g.log.Warn("daily realized loss limit hit, entries blocked until next UTC day",
			zap.Float64("realizedPnlPct", dayRealizedPnLPct),
			zap.Float64("limitPct", g.cfg.MaxDailyLossPct))
		return Status{Halted: true, Reason: ReasonDailyDrawdown}
	}

	return Status{}
}

// Halted reports the current halt state without re-evaluating limits.
func (g *Governor) Halted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.permanent || (g.haltedDay != "" && g.haltedDay == g.dayKey)
}
