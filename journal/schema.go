package journal

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id        TEXT PRIMARY KEY,
	time      TEXT NOT NULL,
	symbol    TEXT NOT NULL,
	side      TEXT NOT NULL,
	price     REAL NOT NULL,
	quantity  REAL NOT NULL,
	pnl_pct   REAL NOT NULL DEFAULT 0,
	reason    TEXT NOT NULL DEFAULT '',
	status    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_trades_symbol_time ON trades (symbol, time);

CREATE TABLE IF NOT EXISTS equity (
	time   TEXT PRIMARY KEY,
	equity REAL NOT NULL
);
`
