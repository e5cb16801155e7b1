package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/aitrader/market"
)

// SQLite mirrors the journal into a single database file for ad-hoc queries.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// go-sqlite3 serialises writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordSnapshot(s Snapshot) error {
	positions, err := json.Marshal(s.Positions)
	if err != nil {
		return err
	}
	prices, err := json.Marshal(s.Prices)
	if err != nil {
		return err
	}
	_, err = j.db.Exec(`
		INSERT INTO snapshots
		(model_signature, trading_day, cash, total_value, positions, prices)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ModelSignature, s.TradingDay.String(), s.Cash, s.TotalValue, string(positions), string(prices),
	)
	return err
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, model_signature, trading_day, symbol, side, quantity, price, rationale)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.ModelSignature, t.TradingDay.String(), t.Symbol,
		string(t.Side), t.Quantity, t.Price, t.Rationale,
	)
	return err
}

func (j *SQLite) RecordTrace(recs []TraceRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, r := range recs {
		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO traces
			(model_signature, trading_day, seq, step, state, kind, tool_call_id, record, time)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ModelSignature, r.TradingDay.String(), i, r.Step, r.State,
			string(r.Kind), r.ToolCallID, string(b), r.Time,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (j *SQLite) RecordMetrics(m MetricsRecord) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = j.db.Exec(`
		INSERT INTO metrics (run_id, model_name, record, created_at)
		VALUES (?, ?, ?, ?)`,
		m.RunID, m.ModelName, string(b), m.CreatedAt,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

func (j *SQLite) Snapshots(signature string) ([]Snapshot, error) {
	rows, err := j.db.Query(`
		SELECT model_signature, trading_day, cash, total_value, positions, prices
		FROM snapshots
		WHERE model_signature = ?
		ORDER BY trading_day ASC`, signature)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			s                 Snapshot
			day               string
			positions, prices string
		)
		if err := rows.Scan(&s.ModelSignature, &day, &s.Cash, &s.TotalValue, &positions, &prices); err != nil {
			return nil, err
		}
		s.TradingDay = market.Day(day)
		if err := json.Unmarshal([]byte(positions), &s.Positions); err != nil {
			return nil, fmt.Errorf("snapshot %s %s positions: %w", signature, day, err)
		}
		if err := json.Unmarshal([]byte(prices), &s.Prices); err != nil {
			return nil, fmt.Errorf("snapshot %s %s prices: %w", signature, day, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const tradeColumns = `trade_id, model_signature, trading_day, symbol, side, quantity, price, rationale`

func scanTrade(sc interface{ Scan(...any) error }) (TradeRecord, error) {
	var (
		rec  TradeRecord
		day  string
		side string
	)
	err := sc.Scan(&rec.TradeID, &rec.ModelSignature, &day, &rec.Symbol, &side, &rec.Quantity, &rec.Price, &rec.Rationale)
	rec.TradingDay = market.Day(day)
	rec.Side = Side(side)
	return rec, err
}

func (j *SQLite) queryTrades(query string, args ...any) ([]TradeRecord, error) {
	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Trades returns a model's trades in write order.
func (j *SQLite) Trades(signature string) ([]TradeRecord, error) {
	return j.queryTrades(`
		SELECT `+tradeColumns+`
		FROM trades
		WHERE model_signature = ?
		ORDER BY rowid ASC`, signature)
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(`
		SELECT `+tradeColumns+`
		FROM trades
		WHERE trade_id = ?`, tradeID)

	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q: %w", tradeID, ErrNotFound)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesBetween returns a model's trades with start <= trading_day <= end.
func (j *SQLite) ListTradesBetween(signature string, start, end market.Day) ([]TradeRecord, error) {
	return j.queryTrades(`
		SELECT `+tradeColumns+`
		FROM trades
		WHERE model_signature = ? AND trading_day >= ? AND trading_day <= ?
		ORDER BY trading_day ASC, rowid ASC`, signature, start.String(), end.String())
}

func (j *SQLite) Traces(signature string, day market.Day) ([]TraceRecord, error) {
	rows, err := j.db.Query(`
		SELECT record FROM traces
		WHERE model_signature = ? AND trading_day = ?
		ORDER BY rowid ASC`, signature, day.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TraceRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var r TraceRecord
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("trace %s %s: %w", signature, day, ErrNotFound)
	}
	return out, nil
}

func (j *SQLite) LatestMetrics(signature string) (MetricsRecord, error) {
	var raw string
	err := j.db.QueryRow(`
		SELECT record FROM metrics
		WHERE model_name = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, signature).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return MetricsRecord{}, fmt.Errorf("metrics %s: %w", signature, ErrNotFound)
	}
	if err != nil {
		return MetricsRecord{}, err
	}
	var m MetricsRecord
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return MetricsRecord{}, err
	}
	return m, nil
}
