// Package billing holds the pure month-end billing rules: month keys,
// time-entry aggregation, invoice line building and the error taxonomy.
package billing

import (
	"fmt"
	"strings"
	"time"
)

const (
	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
)

// Month identifies a calendar month. The zero value is not a valid month.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth accepts YYYY-MM or YYYY-MM-DD and returns the month it falls in.
// Any day of a month maps to the same Month.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)

	var t time.Time
	var err error
	switch len(s) {
	case len(monthLayout):
		t, err = time.Parse(monthLayout, s)
	case len(dayLayout):
		t, err = time.Parse(dayLayout, s)
	default:
		err = fmt.Errorf("unexpected length %d", len(s))
	}
	if err != nil {
		return Month{}, &Error{
			Kind:    ErrValidation,
			Code:    CodeMalformedMonth,
			Message: fmt.Sprintf("invalid month %q: expected YYYY-MM or YYYY-MM-DD", s),
			Err:     err,
		}
	}

	return MonthOf(t), nil
}

// MustParseMonth is ParseMonth for literals; it panics on malformed input
func MustParseMonth(s string) Month {
	m, err := ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MonthOf returns the month containing t, evaluated in UTC
func MonthOf(t time.Time) Month {
	t = t.UTC()
	return Month{Year: t.Year(), Month: t.Month()}
}

// IsZero reports whether m is the zero Month
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// Start returns midnight UTC on the first day of the month
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// NextStart returns the first day of the following month; the month's
// entries are those in [Start, NextStart).
func (m Month) NextStart() time.Time {
	return m.Start().AddDate(0, 1, 0)
}

// LastDay returns the last calendar day of the month
func (m Month) LastDay() time.Time {
	return m.NextStart().AddDate(0, 0, -1)
}

// Next returns the following month
func (m Month) Next() Month {
	return MonthOf(m.NextStart())
}

// Prev returns the preceding month
func (m Month) Prev() Month {
	return MonthOf(m.Start().AddDate(0, -1, 0))
}

// Key returns the lock key: the first-of-month date as YYYY-MM-01
func (m Month) Key() string {
	return m.Start().Format(dayLayout)
}

// String returns YYYY-MM
func (m Month) String() string {
	return m.Start().Format(monthLayout)
}

// Reference returns the invoice reference for the month, e.g. "September 2025 Services"
func (m Month) Reference() string {
	return fmt.Sprintf("%s %d Services", m.Month.String(), m.Year)
}

// LastDayOfMonth returns the last calendar day of the month containing t
func LastDayOfMonth(t time.Time) time.Time {
	return MonthOf(t).LastDay()
}
