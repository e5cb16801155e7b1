// Package journal is the append-only event log of a simulation run.
//
// Records are written once and never updated: snapshots and trades as the
// ledger commits them, one decision trace per model per day, and one metrics
// record per model per run. Consumers read these streams as the only
// interface to simulation results.
package journal

import (
	"errors"
	"sync"

	"github.com/rustyeddy/aitrader/market"
)

// Journal persists simulation events.
type Journal interface {
	RecordTrade(TradeRecord) error
	RecordSnapshot(Snapshot) error
	// RecordTrace writes the full trace of one model's trading day. All
	// records share the same signature and day.
	RecordTrace([]TraceRecord) error
	RecordMetrics(MetricsRecord) error
	Close() error
}

// Reader loads persisted streams back, in write order.
type Reader interface {
	Snapshots(signature string) ([]Snapshot, error)
	Trades(signature string) ([]TradeRecord, error)
	Traces(signature string, day market.Day) ([]TraceRecord, error)
	LatestMetrics(signature string) (MetricsRecord, error)
}

// ErrNotFound is returned by readers when a stream has no records.
var ErrNotFound = errors.New("journal: not found")

// Tee writes every event to each journal in order. A failing journal does not
// stop the others; the errors are joined.
func Tee(js ...Journal) Journal {
	return tee(js)
}

type tee []Journal

func (t tee) each(fn func(Journal) error) error {
	var errs []error
	for _, j := range t {
		if err := fn(j); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t tee) RecordTrade(r TradeRecord) error {
	return t.each(func(j Journal) error { return j.RecordTrade(r) })
}

func (t tee) RecordSnapshot(s Snapshot) error {
	return t.each(func(j Journal) error { return j.RecordSnapshot(s) })
}

func (t tee) RecordTrace(recs []TraceRecord) error {
	return t.each(func(j Journal) error { return j.RecordTrace(recs) })
}

func (t tee) RecordMetrics(m MetricsRecord) error {
	return t.each(func(j Journal) error { return j.RecordMetrics(m) })
}

func (t tee) Close() error {
	return t.each(func(j Journal) error { return j.Close() })
}

// Memory keeps events in slices. It backs tests and dry runs. Record calls
// may come from several model runs at once; read the slices after the run.
type Memory struct {
	mu sync.Mutex

	TradeRecords []TradeRecord
	SnapshotLog  []Snapshot
	TraceLog     [][]TraceRecord
	MetricsLog   []MetricsRecord
	Closed       bool

	// Fail, when set, is returned by every Record call.
	Fail error
}

func (m *Memory) RecordTrade(r TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Fail != nil {
		return m.Fail
	}
	m.TradeRecords = append(m.TradeRecords, r)
	return nil
}

func (m *Memory) RecordSnapshot(s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Fail != nil {
		return m.Fail
	}
	m.SnapshotLog = append(m.SnapshotLog, s)
	return nil
}

func (m *Memory) RecordTrace(recs []TraceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Fail != nil {
		return m.Fail
	}
	m.TraceLog = append(m.TraceLog, recs)
	return nil
}

func (m *Memory) RecordMetrics(r MetricsRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Fail != nil {
		return m.Fail
	}
	m.MetricsLog = append(m.MetricsLog, r)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Closed = true
	return nil
}
