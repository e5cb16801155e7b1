package journal

const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	model_signature TEXT NOT NULL,
	trading_day TEXT NOT NULL,
	cash REAL NOT NULL,
	total_value REAL NOT NULL,
	positions TEXT NOT NULL,
	prices TEXT NOT NULL,
	PRIMARY KEY (model_signature, trading_day)
);

CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	model_signature TEXT NOT NULL,
	trading_day TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	rationale TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS traces (
	model_signature TEXT NOT NULL,
	trading_day TEXT NOT NULL,
	seq INTEGER NOT NULL,
	step INTEGER NOT NULL,
	state TEXT NOT NULL,
	kind TEXT NOT NULL,
	tool_call_id TEXT NOT NULL,
	record TEXT NOT NULL,
	time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS metrics (
	run_id TEXT NOT NULL,
	model_name TEXT NOT NULL,
	record TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (run_id, model_name)
);

CREATE INDEX IF NOT EXISTS idx_trades_day ON trades(model_signature, trading_day);
CREATE INDEX IF NOT EXISTS idx_traces_day ON traces(model_signature, trading_day);
`
