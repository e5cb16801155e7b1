package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rustyeddy/aitrader/market"
)

// File names of the JSONL layout, relative to <dir>/<signature>/.
const (
	positionFile = "position/position.jsonl"
	tradesFile   = "trades/trades.jsonl"
	metricsFile  = "metrics/performance_metrics.jsonl"
	logDir       = "log"
	logFile      = "log.jsonl"
)

// maxLogVersions bounds how many trace files one day may collect across
// restarts of the same run.
const maxLogVersions = 100

// JSONL writes one newline-delimited JSON stream per model signature:
//
//	<dir>/<signature>/position/position.jsonl
//	<dir>/<signature>/trades/trades.jsonl
//	<dir>/<signature>/log/<day>/log.jsonl
//	<dir>/<signature>/metrics/performance_metrics.jsonl
//
// Every record is synced to disk before the call returns. Day logs are
// created exclusively and never rewritten.
type JSONL struct {
	dir string

	mu    sync.Mutex
	files map[string]*appendFile
}

type appendFile struct {
	mu sync.Mutex
	f  *os.File
}

// NewJSONL returns a journal rooted at dir, creating it if needed.
func NewJSONL(dir string) (*JSONL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	return &JSONL{dir: dir, files: make(map[string]*appendFile)}, nil
}

// Dir is the journal root.
func (j *JSONL) Dir() string { return j.dir }

// SignatureDir is where the streams of one model live.
func (j *JSONL) SignatureDir(signature string) string {
	return filepath.Join(j.dir, SanitizeFilename(signature))
}

func (j *JSONL) path(signature, name string) string {
	return filepath.Join(j.SignatureDir(signature), filepath.FromSlash(name))
}

func (j *JSONL) open(path string) (*appendFile, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if af, ok := j.files[path]; ok {
		return af, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	af := &appendFile{f: f}
	j.files[path] = af
	return af, nil
}

func (j *JSONL) append(path string, v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	af, err := j.open(path)
	if err != nil {
		return err
	}

	af.mu.Lock()
	defer af.mu.Unlock()
	if _, err := af.f.Write(append(line, '\n')); err != nil {
		return err
	}
	return af.f.Sync()
}

func (j *JSONL) RecordSnapshot(s Snapshot) error {
	if err := j.append(j.path(s.ModelSignature, positionFile), s); err != nil {
		return fmt.Errorf("record snapshot %s %s: %w", s.ModelSignature, s.TradingDay, err)
	}
	return nil
}

func (j *JSONL) RecordTrade(t TradeRecord) error {
	if err := j.append(j.path(t.ModelSignature, tradesFile), t); err != nil {
		return fmt.Errorf("record trade %s: %w", t.TradeID, err)
	}
	return nil
}

func (j *JSONL) RecordMetrics(m MetricsRecord) error {
	if err := j.append(j.path(m.ModelName, metricsFile), m); err != nil {
		return fmt.Errorf("record metrics %s: %w", m.ModelName, err)
	}
	return nil
}

// RecordTrace writes the day's trace to a new file. If a previous attempt at
// the same day already left a log, the next free log.<n>.jsonl is used.
func (j *JSONL) RecordTrace(recs []TraceRecord) error {
	if len(recs) == 0 {
		return nil
	}
	sig, day := recs[0].ModelSignature, recs[0].TradingDay
	dir := filepath.Join(j.SignatureDir(sig), logDir, day.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("record trace %s %s: %w", sig, day, err)
	}

	f, err := createExclusive(dir)
	if err != nil {
		return fmt.Errorf("record trace %s %s: %w", sig, day, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("record trace %s %s: %w", sig, day, err)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

func createExclusive(dir string) (*os.File, error) {
	name := logFile
	for n := 1; n <= maxLogVersions; n++ {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		name = fmt.Sprintf("log.%d.jsonl", n)
	}
	return nil, fmt.Errorf("too many trace logs in %s", dir)
}

func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var errs []error
	for path, af := range j.files {
		af.mu.Lock()
		if err := af.f.Close(); err != nil {
			errs = append(errs, err)
		}
		af.mu.Unlock()
		delete(j.files, path)
	}
	return errors.Join(errs...)
}

func (j *JSONL) Snapshots(signature string) ([]Snapshot, error) {
	return readLines[Snapshot](j.path(signature, positionFile))
}

func (j *JSONL) Trades(signature string) ([]TradeRecord, error) {
	return readLines[TradeRecord](j.path(signature, tradesFile))
}

// Traces returns the first trace log of a day.
func (j *JSONL) Traces(signature string, day market.Day) ([]TraceRecord, error) {
	path := filepath.Join(j.SignatureDir(signature), logDir, day.String(), logFile)
	recs, err := readLines[TraceRecord](path)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("trace %s %s: %w", signature, day, ErrNotFound)
	}
	return recs, nil
}

func (j *JSONL) LatestMetrics(signature string) (MetricsRecord, error) {
	recs, err := readLines[MetricsRecord](j.path(signature, metricsFile))
	if err != nil {
		return MetricsRecord{}, err
	}
	if len(recs) == 0 {
		return MetricsRecord{}, fmt.Errorf("metrics %s: %w", signature, ErrNotFound)
	}
	return recs[len(recs)-1], nil
}

// readLines decodes every line of a JSONL file. A missing file yields no
// records. A torn final line, left by a crash mid-write, is ignored.
func readLines[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		out     []T
		pending error
	)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if pending != nil {
			return nil, pending
		}
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			pending = fmt.Errorf("%s:%d: %w", path, line, err)
			continue
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
