package ledger

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Ledger tracks positions, cash, order history and daily stats behind a
// mutex. All accessors return copies; callers never see internal maps.
type Ledger struct {
	mu         sync.Mutex
	positions  map[string]Position
	cash       float64
	history    []OrderRecord
	historyCap int
	dailyStats map[string]DailyStat
	live       bool
	store      *Store
	log        *zap.Logger
}

// New creates an empty ledger persisting to store. historyCap bounds the
// rolling order history.
func New(store *Store, log *zap.Logger, initialCash float64, historyCap int, live bool) *Ledger {
	if historyCap <= 0 {
		historyCap = 100
	}
	return &Ledger{
		positions:  make(map[string]Position),
		cash:       initialCash,
		historyCap: historyCap,
		dailyStats: make(map[string]DailyStat),
		live:       live,
		store:      store,
		log:        log,
	}
}

// Load restores state from the store, if a state file exists. A missing file
// leaves the ledger at its initial values.
func (l *Ledger) Load() error {
	snap, found, err := l.store.Load()
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if snap.Positions != nil {
		l.positions = snap.Positions
	}
	if snap.DailyStats != nil {
		l.dailyStats = snap.DailyStats
	}
	if snap.OrderHistory != nil {
		l.history = snap.OrderHistory
	}
	if snap.CashBalance > 0 {
		l.cash = snap.CashBalance
	}

	l.log.Info("state restored",
		zap.Int("positions", len(l.positions)),
		zap.Float64("cash", l.cash),
		zap.Int("orders", len(l.history)))
	return nil
}

// Get returns the position for a symbol, if open.
func (l *Ledger) Get(symbol string) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[symbol]
	return p, ok
}

// Upsert inserts or replaces a position.
func (l *Ledger) Upsert(p Position) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.positions[p.Symbol] = p
}

// Remove closes out a position entry.
func (l *Ledger) Remove(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.positions, symbol)
}

// Positions returns all open positions sorted by symbol.
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Cash returns the tracked cash balance.
func (l *Ledger) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// AdjustCash applies a signed delta to the cash balance.
func (l *Ledger) AdjustCash(delta float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cash += delta
}

// SetCash overwrites the cash balance, used when syncing from the exchange.
func (l *Ledger) SetCash(amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cash = amount
}

// AppendOrder adds a record to the rolling order history, evicting the oldest
// entries beyond the cap.
func (l *Ledger) AppendOrder(rec OrderRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.history = append(l.history, rec)
	if len(l.history) > l.historyCap {
		l.history = l.history[len(l.history)-l.historyCap:]
	}
}

// OrderHistory returns a copy of the rolling order history, oldest first.
func (l *Ledger) OrderHistory() []OrderRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]OrderRecord, len(l.history))
	copy(out, l.history)
	return out
}

// EnsureDay records the start-of-day equity for now's UTC day if this is the
// first observation, and returns the day's stats.
func (l *Ledger) EnsureDay(now time.Time, equity float64) DailyStat {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := DayKey(now)
	stat, ok := l.dailyStats[key]
	if !ok {
		stat = DailyStat{StartEquity: equity}
		l.dailyStats[key] = stat
	}
	return stat
}

// RecordTrade books a realized result into the day's stats.
func (l *Ledger) RecordTrade(now time.Time, pnlUSD float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := DayKey(now)
	stat := l.dailyStats[key]
	stat.RealizedPnLUSD += pnlUSD
	stat.Trades++
	if pnlUSD >= 0 {
		stat.Wins++
	} else {
		stat.Losses++
	}
	l.dailyStats[key] = stat
}

// DayStats returns the stats for now's UTC day.
func (l *Ledger) DayStats(now time.Time) DailyStat {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dailyStats[DayKey(now)]
}

// TotalEquity values the account: cash plus every open position at the given
// prices. Symbols missing from prices are valued at entry.
func (l *Ledger) TotalEquity(prices map[string]float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := l.cash
	for sym, p := range l.positions {
		price, ok := prices[sym]
		if !ok {
			price = p.EntryPrice
		}
		total += p.Notional(price)
	}
	return total
}

// Snapshot assembles the current state document.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{
		Positions:    make(map[string]Position, len(l.positions)),
		CashBalance:  l.cash,
		OrderHistory: make([]OrderRecord, len(l.history)),
		DailyStats:   make(map[string]DailyStat, len(l.dailyStats)),
		IsLiveMode:   l.live,
		LastUpdated:  time.Now().UTC(),
	}
	for k, v := range l.positions {
		snap.Positions[k] = v
	}
	copy(snap.OrderHistory, l.history)
	for k, v := range l.dailyStats {
		snap.DailyStats[k] = v
	}
	return snap
}

// Save persists the current snapshot atomically.
func (l *Ledger) Save() error {
	return l.store.Save(l.Snapshot())
}
