// Package journal records executed trades and equity marks to an append-only
// log, with CSV and SQLite backends.
package journal

import "time"

// Entry is one journaled order execution.
type Entry struct {
	ID       string
	Time     time.Time
	Symbol   string
	Side     string
	Price    float64
	Quantity float64
	PnLPct   float64
	Reason   string
	Status   string
}

// EquityPoint is a periodic mark of total account value.
type EquityPoint struct {
	Time   time.Time
	Equity float64
}

// Journal is the trade log contract. Implementations must be safe for
// concurrent use.
type Journal interface {
	RecordTrade(e Entry) error
	RecordEquity(p EquityPoint) error
	Close() error
}

// Nop discards everything. Used when journaling is disabled.
type Nop struct{}

func (Nop) RecordTrade(Entry) error        { return nil }
func (Nop) RecordEquity(EquityPoint) error { return nil }
func (Nop) Close() error                   { return nil }
