package risk

import (
	"math"

	"spotrisk/config"
	"spotrisk/market"
)

// RiskLevel buckets a symbol's current volatility.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Sizing is the sizer's output for one prospective entry.
type Sizing struct {
	TargetNotional float64
	Leverage       float64
	RiskLevel      RiskLevel
	VolatilityPct  float64
}

// Sizer converts volatility, regime and signal confidence into a target
// notional. Calmer markets get larger allocations and more leverage; volatile
// ones get cut down.
type Sizer struct {
	cfg config.RiskConfig
}

func NewSizer(cfg config.RiskConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// Level buckets a volatility percentage against the configured thresholds.
func (s *Sizer) Level(volPct float64) RiskLevel {
	switch {
	case volPct < s.cfg.VolatilityLowThreshold:
		return RiskLow
	case volPct < s.cfg.VolatilityHighThreshold:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Size computes the target notional for an entry. balance is the free quote
// balance, score the signal confidence in [0, 1].
func (s *Sizer) Size(volPct float64, regime string, balance, score float64) Sizing {
	level := s.Level(volPct)

	// Degenerate inputs produce a do-not-trade decision, never a negative
	// or NaN notional.
	if balance <= 0 || math.IsNaN(balance) || math.IsNaN(volPct) {
		return Sizing{Leverage: 1, RiskLevel: level}
	}

	var allocPct, leverage float64
	switch level {
	case RiskLow:
		allocPct, leverage = s.cfg.PosSizeLowVolPct, s.cfg.LeverageLowVol
	case RiskMedium:
		allocPct, leverage = s.cfg.PosSizeMedVolPct, s.cfg.LeverageMedVol
	default:
		allocPct, leverage = s.cfg.PosSizeHighVolPct, s.cfg.LeverageHighVol
	}

	// Scale by signal confidence: a zero-confidence signal still gets 20% of
	// the bucket allocation, a full-confidence one gets all of it.
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	allocPct *= 0.2 + 0.8*score

	// Regime adjustments. A trending market enforces a minimum allocation
	// unless volatility is already high; a ranging market caps it.
	switch regime {
	case market.RegimeTrending:
		if level != RiskHigh && allocPct < s.cfg.TrendingAllocFloorPct {
			allocPct = s.cfg.TrendingAllocFloorPct
		}
	case market.RegimeRanging:
		if allocPct > s.cfg.RangingAllocCapPct {
			allocPct = s.cfg.RangingAllocCapPct
		}
	}

	return Sizing{
		TargetNotional: balance * allocPct / 100,
		Leverage:       leverage,
		RiskLevel:      level,
		VolatilityPct:  volPct,
	}
}
