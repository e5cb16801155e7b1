package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DataUnavailableError reports a day with no market data. The orchestrator
// treats it as a non-trading day for the affected model.
type DataUnavailableError struct {
	Day    Day
	Symbol string
}

func (e *DataUnavailableError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("no market data for %s on %s", e.Symbol, e.Day)
	}
	return fmt.Sprintf("no market data on %s", e.Day)
}

// IsDataUnavailable reports whether err is (or wraps) a DataUnavailableError.
func IsDataUnavailable(err error) bool {
	var du *DataUnavailableError
	return errors.As(err, &du)
}

// PriceBook holds one quoted price per symbol per trading day. It is filled
// once at startup and read concurrently afterwards.
type PriceBook struct {
	days map[Day]map[string]float64
}

// NewPriceBook returns an empty book.
func NewPriceBook() *PriceBook {
	return &PriceBook{days: make(map[Day]map[string]float64)}
}

// Set records the quoted price for symbol on day.
func (b *PriceBook) Set(day Day, symbol string, price float64) {
	m, ok := b.days[day]
	if !ok {
		m = make(map[string]float64)
		b.days[day] = m
	}
	m[strings.ToUpper(symbol)] = price
}

// Prices returns a copy of every quote for day.
func (b *PriceBook) Prices(day Day) (map[string]float64, error) {
	m, ok := b.days[day]
	if !ok || len(m) == 0 {
		return nil, &DataUnavailableError{Day: day}
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}

// Price returns the quote for one symbol on day.
func (b *PriceBook) Price(symbol string, day Day) (float64, error) {
	p, ok := b.days[day][strings.ToUpper(symbol)]
	if !ok {
		return 0, &DataUnavailableError{Day: day, Symbol: strings.ToUpper(symbol)}
	}
	return p, nil
}

// Days returns every day with at least one quote, ascending.
func (b *PriceBook) Days() []Day {
	out := make([]Day, 0, len(b.days))
	for d := range b.days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Symbols returns every symbol quoted anywhere in the book, sorted.
func (b *PriceBook) Symbols() []string {
	seen := map[string]struct{}{}
	for _, m := range b.days {
		for s := range m {
			seen[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// LoadPriceBook reads every CSV matching pattern (doublestar syntax, so
// "data/**/*.csv" works) into one book.
func LoadPriceBook(pattern string) (*PriceBook, error) {
	paths, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no price files match %q", pattern)
	}
	sort.Strings(paths)

	b := NewPriceBook()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		err = b.ReadCSV(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return b, nil
}

// ReadCSV loads rows of the form
//
//	date,symbol,price
//
// A header row is optional. When present, the price column is located by name
// ("close", "price" or "open", in that order of preference), so OHLC exports
// load without conversion. Empty or short rows are skipped.
func (b *PriceBook) ReadCSV(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	dateCol, symCol, priceCol := 0, 1, 2
	sawFirst := false
	line := 0

	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line++
		if len(row) == 0 {
			continue
		}

		if !sawFirst {
			sawFirst = true
			if isHeader(row) {
				dateCol, symCol, priceCol, err = headerColumns(row)
				if err != nil {
					return err
				}
				continue
			}
		}

		if len(row) <= max(dateCol, symCol, priceCol) {
			continue
		}
		ds := strings.TrimSpace(row[dateCol])
		sym := strings.TrimSpace(row[symCol])
		if ds == "" || sym == "" {
			continue
		}
		day, err := ParseDay(ds)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		px, err := strconv.ParseFloat(strings.TrimSpace(row[priceCol]), 64)
		if err != nil {
			return fmt.Errorf("line %d: bad price %q: %w", line, row[priceCol], err)
		}
		if px <= 0 {
			return fmt.Errorf("line %d: price must be positive, got %v", line, px)
		}
		b.Set(day, sym, px)
	}
}

func isHeader(row []string) bool {
	first := strings.ToLower(strings.TrimSpace(row[0]))
	return first == "date" || first == "day" || first == "time" || first == "trading_day"
}

func headerColumns(row []string) (dateCol, symCol, priceCol int, err error) {
	idx := map[string]int{}
	for i, name := range row {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	dateCol = 0
	symCol, ok := idx["symbol"]
	if !ok {
		if symCol, ok = idx["ticker"]; !ok {
			return 0, 0, 0, fmt.Errorf("header has no symbol column")
		}
	}
	for _, name := range []string{"close", "price", "open"} {
		if i, ok := idx[name]; ok {
			return dateCol, symCol, i, nil
		}
	}
	return 0, 0, 0, fmt.Errorf("header has no close/price/open column")
}
