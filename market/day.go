package market

import (
	"fmt"
	"strings"
	"time"
)

// DayLayout is the canonical trading-day format used in records and file names.
const DayLayout = "2006-01-02"

// Day is a calendar date in UTC with no time-of-day component.
type Day string

// dayLayouts are tried in order by ParseDay.
var dayLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DayLayout,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339,
	time.RFC3339Nano,
	"20060102T150405",
	"20060102T1504",
}

// ParseDay accepts a date with or without a time component and truncates it
// to the calendar day.
func ParseDay(s string) (Day, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("parse day: empty string")
	}
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DayOf(t), nil
		}
	}
	return "", fmt.Errorf("parse day %q: supported formats include %s", s, strings.Join(dayLayouts[:3], ", "))
}

// MustDay is ParseDay for literals in tests and defaults.
func MustDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DayOf truncates t to its calendar date.
func DayOf(t time.Time) Day {
	return Day(t.Format(DayLayout))
}

// Time returns midnight UTC of the day.
func (d Day) Time() time.Time {
	t, _ := time.Parse(DayLayout, string(d))
	return t
}

func (d Day) String() string { return string(d) }

// Before reports whether d is strictly earlier than o.
func (d Day) Before(o Day) bool { return d < o }

// Next returns the following calendar day.
func (d Day) Next() Day {
	return DayOf(d.Time().AddDate(0, 0, 1))
}

// Range is an inclusive span of calendar days.
type Range struct {
	Start Day
	End   Day
}

// Validate rejects empty or inverted ranges.
func (r Range) Validate() error {
	if r.Start == "" || r.End == "" {
		return fmt.Errorf("date range requires start and end")
	}
	if _, err := ParseDay(string(r.Start)); err != nil {
		return err
	}
	if _, err := ParseDay(string(r.End)); err != nil {
		return err
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("date range end %s is before start %s", r.End, r.Start)
	}
	return nil
}

// Days lists every calendar day in the range in ascending order. Whether a
// day is a trading day is decided by the price book, not the calendar.
func (r Range) Days() []Day {
	if r.Validate() != nil {
		return nil
	}
	var out []Day
	for d := r.Start; !r.End.Before(d); d = d.Next() {
		out = append(out, d)
	}
	return out
}
