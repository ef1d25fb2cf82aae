package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite journals trades and equity marks to a local SQLite database, which
// makes post-hoc analysis a SQL query instead of log scraping.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and ensures the schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(e Entry) error {
	_, err := j.db.Exec(
		`INSERT INTO trades (id, time, symbol, side, price, quantity, pnl_pct, reason, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Time.UTC().Format(time.RFC3339), e.Symbol, e.Side,
		e.Price, e.Quantity, e.PnLPct, e.Reason, e.Status,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (j *SQLite) RecordEquity(p EquityPoint) error {
	_, err := j.db.Exec(
		`INSERT OR REPLACE INTO equity (time, equity) VALUES (?, ?)`,
		p.Time.UTC().Format(time.RFC3339), p.Equity,
	)
	if err != nil {
		return fmt.Errorf("insert equity point: %w", err)
	}
	return nil
}

// Trades returns journaled trades for a symbol, oldest first. Pass an empty
// symbol for all trades.
func (j *SQLite) Trades(symbol string) ([]Entry, error) {
	query := `SELECT id, time, symbol, side, price, quantity, pnl_pct, reason, status FROM trades`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY time`

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.Symbol, &e.Side, &e.Price, &e.Quantity, &e.PnLPct, &e.Reason, &e.Status); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		if e.Time, err = time.Parse(time.RFC3339, ts); err != nil {
			return nil, fmt.Errorf("parse trade time: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

var _ Journal = (*SQLite)(nil)
