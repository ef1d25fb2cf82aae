package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry(id, symbol string) Entry {
	return Entry{
		ID:       id,
		Time:     time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
		Symbol:   symbol,
		Side:     "SELL",
		Price:    51234.5,
		Quantity: 0.01,
		PnLPct:   2.47,
		Reason:   "DYNAMIC_ROI_HIT",
		Status:   "FILLED",
	}
}

func TestCSV_WritesHeaderAndRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.csv")

	j, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, j.RecordTrade(sampleEntry("01A", "BTCUSDT")))
	require.NoError(t, j.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "BTCUSDT", rows[1][2])
	assert.Equal(t, "DYNAMIC_ROI_HIT", rows[1][7])
}

func TestCSV_AppendSkipsHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.csv")

	j, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, j.RecordTrade(sampleEntry("01A", "BTCUSDT")))
	require.NoError(t, j.Close())

	// Reopen and append: only one header in the file.
	j, err = NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, j.RecordTrade(sampleEntry("01B", "ETHUSDT")))
	require.NoError(t, j.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "01A", rows[1][0])
	assert.Equal(t, "01B", rows[2][0])
}

func TestSQLite_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.RecordTrade(sampleEntry("01A", "BTCUSDT")))
	require.NoError(t, j.RecordTrade(sampleEntry("01B", "ETHUSDT")))
	require.NoError(t, j.RecordEquity(EquityPoint{Time: time.Now(), Equity: 1024.5}))

	all, err := j.Trades("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	btc, err := j.Trades("BTCUSDT")
	require.NoError(t, err)
	require.Len(t, btc, 1)
	assert.Equal(t, "01A", btc[0].ID)
	assert.Equal(t, 51234.5, btc[0].Price)
	assert.InDelta(t, 2.47, btc[0].PnLPct, 1e-9)
}

func TestSQLite_SchemaIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, j.RecordTrade(sampleEntry("01A", "BTCUSDT")))
	require.NoError(t, j.Close())

	j, err = NewSQLite(path)
	require.NoError(t, err)
	defer j.Close()

	all, err := j.Trades("")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
