// Package ledger is the single source of truth for open positions, cash
// balance, order history and daily statistics, with atomic JSON persistence.
package ledger

import "time"

// Position is one open long spot position. Field names are fixed by the
// persisted state format.
type Position struct {
	Symbol           string    `json:"symbol"`
	EntryPrice       float64   `json:"entryPrice"`
	Quantity         float64   `json:"quantity"`
	OpenedAt         time.Time `json:"openedAt"`
	HighestPrice     float64   `json:"highestPrice"`
	StopPrice        float64   `json:"stopPrice"`
	ATRAtEntry       float64   `json:"atrAtEntry"`
	VolatilityRegime string    `json:"volatilityRegime"`
	Leverage         float64   `json:"leverage"`
	PartialExitDone  bool      `json:"partialExitDone"`
	IsSniperEntry    bool      `json:"isSniperEntry"`
}

// UnrealizedPnLPct returns the percent gain or loss at the given price.
func (p Position) UnrealizedPnLPct(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}

// Age returns how long the position has been open.
func (p Position) Age(now time.Time) time.Duration {
	return now.Sub(p.OpenedAt)
}

// Notional returns the position value at the given price.
func (p Position) Notional(price float64) float64 {
	return p.Quantity * price
}

// OrderRecord is one executed (or attempted) order in the rolling history.
type OrderRecord struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	Symbol   string    `json:"symbol"`
	Side     string    `json:"side"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	Status   string    `json:"status"`
	Reason   string    `json:"reason,omitempty"`
	PnLPct   float64   `json:"pnlPct,omitempty"`
}

// DailyStat accumulates realized results for one UTC day.
type DailyStat struct {
	StartEquity    float64 `json:"startEquity"`
	RealizedPnLUSD float64 `json:"realizedPnlUsd"`
	Trades         int     `json:"trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
}

// Snapshot is the full persisted state document.
type Snapshot struct {
	Positions    map[string]Position  `json:"positions"`
	CashBalance  float64              `json:"cashBalance"`
	OrderHistory []OrderRecord        `json:"orderHistory"`
	DailyStats   map[string]DailyStat `json:"dailyStats"`
	IsLiveMode   bool                 `json:"isLiveMode"`
	LastUpdated  time.Time            `json:"lastUpdated"`
}

// DayKey formats a time as the UTC day key used in DailyStats.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
