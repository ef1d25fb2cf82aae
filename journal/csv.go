package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

var csvHeader = []string{"id", "time", "symbol", "side", "price", "quantity", "pnl_pct", "reason", "status"}

// CSV appends trades to a CSV file, writing the header when the file is new.
// Equity points are not recorded by this backend.
type CSV struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

// NewCSV opens (or creates) the journal file at path.
func NewCSV(path string) (*CSV, error) {
	info, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr) || (statErr == nil && info.Size() == 0)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := &CSV{file: f, w: csv.NewWriter(f)}
	if fresh {
		if err := j.w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("write journal header: %w", err)
		}
		j.w.Flush()
	}
	return j, nil
}

func (j *CSV) RecordTrade(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	record := []string{
		e.ID,
		e.Time.UTC().Format(time.RFC3339),
		e.Symbol,
		e.Side,
		strconv.FormatFloat(e.Price, 'f', -1, 64),
		strconv.FormatFloat(e.Quantity, 'f', -1, 64),
		strconv.FormatFloat(e.PnLPct, 'f', 4, 64),
		e.Reason,
		e.Status,
	}
	if err := j.w.Write(record); err != nil {
		return fmt.Errorf("write journal row: %w", err)
	}
	j.w.Flush()
	return j.w.Error()
}

func (j *CSV) RecordEquity(EquityPoint) error { return nil }

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.w.Flush()
	if err := j.w.Error(); err != nil {
		j.file.Close()
		return err
	}
	return j.file.Close()
}

var _ Journal = (*CSV)(nil)
