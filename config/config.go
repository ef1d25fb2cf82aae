// Package config loads and validates engine configuration from YAML or JSON
// files. A Config is treated as read-only after Load; components receive it by
// value or pointer and never mutate it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ROIBracket maps a minimum holding time to the net ROI (after round-trip
// fees) that triggers a full exit once the position is at least that old.
type ROIBracket struct {
	AfterMinutes int     `yaml:"afterMinutes" json:"afterMinutes"`
	TargetPct    float64 `yaml:"targetPct" json:"targetPct"`
}

// ExchangeConfig covers connectivity, rate limiting and the circuit breaker.
type ExchangeConfig struct {
	QuoteAsset       string  `yaml:"quoteAsset" json:"quoteAsset"`
	Timeframe        string  `yaml:"timeframe" json:"timeframe"`
	CandleLimit      int     `yaml:"candleLimit" json:"candleLimit"`
	RequestsPerMin   int     `yaml:"requestsPerMin" json:"requestsPerMin"`
	RequestTimeoutMS int     `yaml:"requestTimeoutMs" json:"requestTimeoutMs"`
	BreakerThreshold int     `yaml:"breakerThreshold" json:"breakerThreshold"`
	BreakerCooldownS int     `yaml:"breakerCooldownSec" json:"breakerCooldownSec"`
	TakerFeePct      float64 `yaml:"takerFeePct" json:"takerFeePct"`
}

// RiskConfig drives position sizing and the risk governor.
type RiskConfig struct {
	VolatilityLowThreshold  float64 `yaml:"volatilityLowThreshold" json:"volatilityLowThreshold"`
	VolatilityHighThreshold float64 `yaml:"volatilityHighThreshold" json:"volatilityHighThreshold"`

	PosSizeLowVolPct  float64 `yaml:"posSizeLowVolPct" json:"posSizeLowVolPct"`
	PosSizeMedVolPct  float64 `yaml:"posSizeMedVolPct" json:"posSizeMedVolPct"`
	PosSizeHighVolPct float64 `yaml:"posSizeHighVolPct" json:"posSizeHighVolPct"`

	LeverageLowVol  float64 `yaml:"leverageLowVol" json:"leverageLowVol"`
	LeverageMedVol  float64 `yaml:"leverageMedVol" json:"leverageMedVol"`
	LeverageHighVol float64 `yaml:"leverageHighVol" json:"leverageHighVol"`

	TrendingAllocFloorPct float64 `yaml:"trendingAllocFloorPct" json:"trendingAllocFloorPct"`
	RangingAllocCapPct    float64 `yaml:"rangingAllocCapPct" json:"rangingAllocCapPct"`

	MaxDailyLossPct    float64 `yaml:"maxDailyLossPct" json:"maxDailyLossPct"`
	SurvivalFloorUSD   float64 `yaml:"survivalFloorUsd" json:"survivalFloorUsd"`
	MinTradeNotional   float64 `yaml:"minTradeNotional" json:"minTradeNotional"`
	BalanceSafetyRatio float64 `yaml:"balanceSafetyRatio" json:"balanceSafetyRatio"`
}

// ExitConfig drives the exit policy state machine.
type ExitConfig struct {
	ROIBrackets []ROIBracket `yaml:"roiBrackets" json:"roiBrackets"`

	MaxHoldTimeHours   float64 `yaml:"maxHoldTimeHours" json:"maxHoldTimeHours"`
	TimeBasedExitHours float64 `yaml:"timeBasedExitHours" json:"timeBasedExitHours"`

	TrailingStopATRMultiplier   float64 `yaml:"trailingStopAtrMultiplier" json:"trailingStopAtrMultiplier"`
	TrailingStopTightMultiplier float64 `yaml:"trailingStopTightMultiplier" json:"trailingStopTightMultiplier"`
	SniperStopFactor            float64 `yaml:"sniperStopFactor" json:"sniperStopFactor"`
	FallbackStopPct             float64 `yaml:"fallbackStopPct" json:"fallbackStopPct"`
	TrailingStepPct             float64 `yaml:"trailingStepPct" json:"trailingStepPct"`

	PartialTakeProfitPct float64 `yaml:"partialTakeProfitPct" json:"partialTakeProfitPct"`
	PartialExitRatio     float64 `yaml:"partialExitRatio" json:"partialExitRatio"`
}

// LedgerConfig controls state persistence.
type LedgerConfig struct {
	StatePath       string  `yaml:"statePath" json:"statePath"`
	InitialCashUSD  float64 `yaml:"initialCashUsd" json:"initialCashUsd"`
	OrderHistoryCap int     `yaml:"orderHistoryCap" json:"orderHistoryCap"`
}

// JournalConfig selects the trade journal backend.
type JournalConfig struct {
	Backend string `yaml:"backend" json:"backend"` // "csv", "sqlite" or "none"
	Path    string `yaml:"path" json:"path"`
}

// EngineConfig covers the tick loop and served endpoints.
type EngineConfig struct {
	Symbols      []string `yaml:"symbols" json:"symbols"`
	TickInterval string   `yaml:"tickInterval" json:"tickInterval"`
	ATRPeriod    int      `yaml:"atrPeriod" json:"atrPeriod"`
	MetricsAddr  string   `yaml:"metricsAddr" json:"metricsAddr"`
}

// Config is the root configuration document.
type Config struct {
	IsLiveMode bool `yaml:"isLiveMode" json:"isLiveMode"`

	Exchange ExchangeConfig `yaml:"exchange" json:"exchange"`
	Risk     RiskConfig     `yaml:"risk" json:"risk"`
	Exit     ExitConfig     `yaml:"exit" json:"exit"`
	Ledger   LedgerConfig   `yaml:"ledger" json:"ledger"`
	Journal  JournalConfig  `yaml:"journal" json:"journal"`
	Engine   EngineConfig   `yaml:"engine" json:"engine"`
}

// Default returns a configuration with conservative spot-trading defaults.
func Default() *Config {
	return &Config{
		IsLiveMode: false,
		Exchange: ExchangeConfig{
			QuoteAsset:       "USDT",
			Timeframe:        "15m",
			CandleLimit:      100,
			RequestsPerMin:   1200,
			RequestTimeoutMS: 10000,
			BreakerThreshold: 5,
			BreakerCooldownS: 60,
			TakerFeePct:      0.1,
		},
		Risk: RiskConfig{
			VolatilityLowThreshold:  1.0,
			VolatilityHighThreshold: 3.0,
			PosSizeLowVolPct:        50,
			PosSizeMedVolPct:        35,
			PosSizeHighVolPct:       20,
			LeverageLowVol:          3,
			LeverageMedVol:          2,
			LeverageHighVol:         1,
			TrendingAllocFloorPct:   35,
			RangingAllocCapPct:      15,
			MaxDailyLossPct:         5,
			SurvivalFloorUSD:        5,
			MinTradeNotional:        10,
			BalanceSafetyRatio:      0.98,
		},
		Exit: ExitConfig{
			ROIBrackets: []ROIBracket{
				{AfterMinutes: 30, TargetPct: 5},
				{AfterMinutes: 60, TargetPct: 3},
				{AfterMinutes: 180, TargetPct: 1.5},
			},
			MaxHoldTimeHours:            48,
			TimeBasedExitHours:          24,
			TrailingStopATRMultiplier:   3.0,
			TrailingStopTightMultiplier: 1.5,
			SniperStopFactor:            0.8,
			FallbackStopPct:             5,
			TrailingStepPct:             0.5,
			PartialTakeProfitPct:        4,
			PartialExitRatio:            0.5,
		},
		Ledger: LedgerConfig{
			StatePath:       "state.json",
			InitialCashUSD:  1000,
			OrderHistoryCap: 100,
		},
		Journal: JournalConfig{
			Backend: "csv",
			Path:    "journal.csv",
		},
		Engine: EngineConfig{
			Symbols:      []string{"BTCUSDT"},
			TickInterval: "30s",
			ATRPeriod:    14,
			MetricsAddr:  ":9090",
		},
	}
}

// LoadFromFile reads configuration from a YAML or JSON file, applied on top of
// Default. YAML is tried first; if that fails, JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if yerr := yaml.Unmarshal(data, cfg); yerr != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, yerr)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// TickIntervalDuration parses the configured tick interval.
func (e EngineConfig) TickIntervalDuration() (time.Duration, error) {
	d, err := time.ParseDuration(e.TickInterval)
	if err != nil {
		return 0, fmt.Errorf("parse tickInterval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("tickInterval must be positive, got %s", e.TickInterval)
	}
	return d, nil
}

// Validate checks invariants that would make the engine misbehave silently.
func (c *Config) Validate() error {
	if c.Risk.VolatilityLowThreshold <= 0 || c.Risk.VolatilityHighThreshold <= c.Risk.VolatilityLowThreshold {
		return fmt.Errorf("volatility thresholds must satisfy 0 < low < high, got %.2f / %.2f",
			c.Risk.VolatilityLowThreshold, c.Risk.VolatilityHighThreshold)
	}
	if c.Risk.MaxDailyLossPct <= 0 || c.Risk.MaxDailyLossPct > 100 {
		return fmt.Errorf("maxDailyLossPct must be in (0, 100], got %.2f", c.Risk.MaxDailyLossPct)
	}
	if c.Risk.BalanceSafetyRatio <= 0 || c.Risk.BalanceSafetyRatio > 1 {
		return fmt.Errorf("balanceSafetyRatio must be in (0, 1], got %.2f", c.Risk.BalanceSafetyRatio)
	}
	if c.Exit.PartialExitRatio <= 0 || c.Exit.PartialExitRatio >= 1 {
		return fmt.Errorf("partialExitRatio must be in (0, 1), got %.2f", c.Exit.PartialExitRatio)
	}
	if c.Exit.TrailingStopATRMultiplier <= 0 {
		return fmt.Errorf("trailingStopAtrMultiplier must be positive, got %.2f", c.Exit.TrailingStopATRMultiplier)
	}
	if c.Exit.MaxHoldTimeHours <= 0 {
		return fmt.Errorf("maxHoldTimeHours must be positive, got %.2f", c.Exit.MaxHoldTimeHours)
	}
	for i, b := range c.Exit.ROIBrackets {
		if b.AfterMinutes < 0 || b.TargetPct <= 0 {
			return fmt.Errorf("roiBrackets[%d]: afterMinutes must be >= 0 and targetPct > 0", i)
		}
		if i > 0 && b.AfterMinutes <= c.Exit.ROIBrackets[i-1].AfterMinutes {
			return fmt.Errorf("roiBrackets must be sorted by afterMinutes ascending")
		}
	}
	if len(c.Engine.Symbols) == 0 {
		return fmt.Errorf("engine.symbols must not be empty")
	}
	if c.Engine.ATRPeriod <= 0 {
		return fmt.Errorf("atrPeriod must be positive, got %d", c.Engine.ATRPeriod)
	}
	if _, err := c.Engine.TickIntervalDuration(); err != nil {
		return err
	}
	switch c.Journal.Backend {
	case "csv", "sqlite", "none":
	default:
		return fmt.Errorf("journal.backend must be csv, sqlite or none, got %q", c.Journal.Backend)
	}
	if c.Ledger.OrderHistoryCap <= 0 {
		return fmt.Errorf("orderHistoryCap must be positive, got %d", c.Ledger.OrderHistoryCap)
	}
	return nil
}
