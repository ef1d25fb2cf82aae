package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLedger(t *testing.T, initialCash float64) *Ledger {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "state.json"))
	return New(store, zap.NewNop(), initialCash, 100, false)
}

func TestLedger_PositionLifecycle(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t, 1000)

	_, ok := l.Get("BTCUSDT")
	assert.False(t, ok)

	l.Upsert(Position{Symbol: "BTCUSDT", EntryPrice: 50000, Quantity: 0.01})
	p, ok := l.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 50000.0, p.EntryPrice)

	// Upsert replaces.
	p.StopPrice = 48000
	l.Upsert(p)
	p, _ = l.Get("BTCUSDT")
	assert.Equal(t, 48000.0, p.StopPrice)

	l.Remove("BTCUSDT")
	_, ok = l.Get("BTCUSDT")
	assert.False(t, ok)
}

func TestLedger_PositionsSorted(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t, 0)
	l.Upsert(Position{Symbol: "ETHUSDT"})
	l.Upsert(Position{Symbol: "BTCUSDT"})

	got := l.Positions()
	require.Len(t, got, 2)
	assert.Equal(t, "BTCUSDT", got[0].Symbol)
	assert.Equal(t, "ETHUSDT", got[1].Symbol)
}

func TestLedger_OrderHistoryRing(t *testing.T) {
	t.Parallel()

	store := NewStore(filepath.Join(t.TempDir(), "state.json"))
	l := New(store, zap.NewNop(), 0, 5, false)

	for i := 0; i < 8; i++ {
		l.AppendOrder(OrderRecord{ID: fmt.Sprintf("%03d", i)})
	}

	got := l.OrderHistory()
	require.Len(t, got, 5)
	assert.Equal(t, "003", got[0].ID)
	assert.Equal(t, "007", got[4].ID)
}

func TestLedger_DailyStats(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t, 1000)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	stat := l.EnsureDay(now, 1000)
	assert.Equal(t, 1000.0, stat.StartEquity)

	// A second observation the same day keeps the original start equity.
	stat = l.EnsureDay(now.Add(time.Hour), 950)
	assert.Equal(t, 1000.0, stat.StartEquity)

	l.RecordTrade(now, 25)
	l.RecordTrade(now, -40)

	stat = l.DayStats(now)
	assert.InDelta(t, -15.0, stat.RealizedPnLUSD, 1e-9)
	assert.Equal(t, 2, stat.Trades)
	assert.Equal(t, 1, stat.Wins)
	assert.Equal(t, 1, stat.Losses)

	// Next UTC day starts fresh.
	tomorrow := now.Add(24 * time.Hour)
	assert.Equal(t, DailyStat{}, l.DayStats(tomorrow))
}

func TestLedger_TotalEquity(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t, 500)
	l.Upsert(Position{Symbol: "BTCUSDT", EntryPrice: 50000, Quantity: 0.01})
	l.Upsert(Position{Symbol: "ETHUSDT", EntryPrice: 2000, Quantity: 1})

	// BTC priced, ETH falls back to entry: 500 + 0.01*52000 + 1*2000.
	equity := l.TotalEquity(map[string]float64{"BTCUSDT": 52000})
	assert.InDelta(t, 3020.0, equity, 1e-9)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStore(path)

	l := New(store, zap.NewNop(), 1234.5, 100, true)
	l.Upsert(Position{
		Symbol:           "BTCUSDT",
		EntryPrice:       50000,
		Quantity:         0.01,
		OpenedAt:         time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
		HighestPrice:     51000,
		StopPrice:        48500,
		ATRAtEntry:       600,
		VolatilityRegime: "TRENDING",
		Leverage:         2,
		PartialExitDone:  true,
		IsSniperEntry:    true,
	})
	l.AppendOrder(OrderRecord{ID: "01A", Symbol: "BTCUSDT", Side: "BUY"})
	l.RecordTrade(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), 12.5)
	require.NoError(t, l.Save())

	restored := New(store, zap.NewNop(), 0, 100, true)
	require.NoError(t, restored.Load())

	p, ok := restored.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 48500.0, p.StopPrice)
	assert.True(t, p.PartialExitDone)
	assert.True(t, p.IsSniperEntry)
	assert.Equal(t, "TRENDING", p.VolatilityRegime)
	assert.Equal(t, 1234.5, restored.Cash())
	require.Len(t, restored.OrderHistory(), 1)

	stat := restored.DayStats(time.Date(2026, 8, 30, 23, 0, 0, 0, time.UTC))
	assert.InDelta(t, 12.5, stat.RealizedPnLUSD, 1e-9)
}

func TestStore_LoadMissingFile(t *testing.T) {
	t.Parallel()

	store := NewStore(filepath.Join(t.TempDir(), "absent.json"))
	_, found, err := store.Load()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMigrate_LegacyTopLevelPositions(t *testing.T) {
	t.Parallel()

	legacy := `{
		"BTCUSDT": {"entryPrice": 50000, "quantity": 0.01, "stopPrice": 48000},
		"ETHUSDT": {"entryPrice": 2000, "quantity": 1.5, "symbol": "ETHUSDT"}
	}`

	snap, err := Migrate([]byte(legacy))
	require.NoError(t, err)
	require.Len(t, snap.Positions, 2)

	btc := snap.Positions["BTCUSDT"]
	assert.Equal(t, "BTCUSDT", btc.Symbol, "symbol backfilled from map key")
	assert.Equal(t, 48000.0, btc.StopPrice)
	assert.Equal(t, 1.5, snap.Positions["ETHUSDT"].Quantity)
}

func TestMigrate_CurrentFormat(t *testing.T) {
	t.Parallel()

	current := `{
		"positions": {"BTCUSDT": {"symbol": "BTCUSDT", "entryPrice": 50000, "quantity": 0.01}},
		"cashBalance": 750.25,
		"isLiveMode": true
	}`

	snap, err := Migrate([]byte(current))
	require.NoError(t, err)
	assert.Equal(t, 750.25, snap.CashBalance)
	assert.True(t, snap.IsLiveMode)
	require.Len(t, snap.Positions, 1)
}

func TestMigrate_EmptyAndInvalid(t *testing.T) {
	t.Parallel()

	snap, err := Migrate([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, snap.Positions)

	_, err = Migrate([]byte(`not json`))
	assert.Error(t, err)
}

func TestStore_SaveIsAtomicOverExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"positions":{}}`), 0o644))

	store := NewStore(path)
	require.NoError(t, store.Save(Snapshot{CashBalance: 42}))

	snap, found, err := store.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 42.0, snap.CashBalance)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
