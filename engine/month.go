/*
month.go - Calendar month arithmetic

PURPOSE:
  MonthKey is the time axis of the whole system: a calendar month in
  "YYYY-MM" form, totally ordered lexicographically. Day-of-month detail
  only enters through hire start dates, which are pro-rated against the
  month they fall in.

PRO-RATA:
  A hire starting on day d of a month with n days costs (n - d + 1) / n
  of their monthly rate that month, a full month thereafter, and nothing
  before. Start on the last day of a 31-day month is 1/31 - small, but
  never zero.

SEE ALSO:
  - commitment.go: applies ProRataFraction to offer costs
*/
package engine

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONTH KEY - "YYYY-MM", first-of-month semantics
// =============================================================================

type MonthKey string

var monthKeyPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ParseMonth validates a "YYYY-MM" string.
func ParseMonth(s string) (MonthKey, error) {
	if !monthKeyPattern.MatchString(s) {
		return "", &InvalidInputError{Field: "month", Value: s, Message: "want YYYY-MM"}
	}
	return MonthKey(s), nil
}

// MustParseMonth panics on invalid input. For tests and literals.
func MustParseMonth(s string) MonthKey {
	m, err := ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MonthOf returns the MonthKey containing t.
func MonthOf(t time.Time) MonthKey {
	return MonthKey(t.Format("2006-01"))
}

func (m MonthKey) Valid() bool { return monthKeyPattern.MatchString(string(m)) }

// Date splits the key into year and month.
func (m MonthKey) Date() (year int, month time.Month, err error) {
	if !m.Valid() {
		return 0, 0, &InvalidInputError{Field: "month", Value: string(m), Message: "want YYYY-MM"}
	}
	t, err := time.Parse("2006-01", string(m))
	if err != nil {
		return 0, 0, &InvalidInputError{Field: "month", Value: string(m), Message: err.Error()}
	}
	return t.Year(), t.Month(), nil
}

// First returns midnight UTC on the first day of the month. A malformed
// key yields the zero time; validate with Valid or ParseMonth first.
func (m MonthKey) First() time.Time {
	t, _ := time.Parse("2006-01", string(m))
	return t
}

// AddMonths returns the key n months later (or earlier for negative n).
func (m MonthKey) AddMonths(n int) MonthKey {
	return MonthOf(m.First().AddDate(0, n, 0))
}

// Before relies on the lexicographic order of YYYY-MM keys.
func (m MonthKey) Before(other MonthKey) bool { return m < other }

func (m MonthKey) String() string { return string(m) }

// =============================================================================
// DAY COUNTS AND PRO-RATA
// =============================================================================

// DaysInMonth returns the calendar day count, leap years included.
func DaysInMonth(m MonthKey) (int, error) {
	year, month, err := m.Date()
	if err != nil {
		return 0, err
	}
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day(), nil
}

// ProRataFraction returns the fraction of the month charged for a hire
// starting at startDate, in (0, 1] when the start falls in or before the
// month and 0 when it falls after. Full decimal precision; callers round
// only at presentation time.
func ProRataFraction(startDate time.Time, m MonthKey) (decimal.Decimal, error) {
	days, err := DaysInMonth(m)
	if err != nil {
		return decimal.Zero, err
	}

	startMonth := MonthOf(startDate)
	switch {
	case startMonth.Before(m):
		return decimal.NewFromInt(1), nil
	case m.Before(startMonth):
		return decimal.Zero, nil
	}

	worked := days - startDate.Day() + 1
	return decimal.NewFromInt(int64(worked)).Div(decimal.NewFromInt(int64(days))), nil
}

// =============================================================================
// WINDOWS
// =============================================================================

// Window returns n consecutive months starting at from, ascending.
func Window(from MonthKey, n int) []MonthKey {
	if n <= 0 {
		return nil
	}
	months := make([]MonthKey, n)
	for i := 0; i < n; i++ {
		months[i] = from.AddMonths(i)
	}
	return months
}

// ValidateWindow rejects empty, malformed or unordered windows.
func ValidateWindow(window []MonthKey) error {
	if len(window) == 0 {
		return &InvalidRequestError{Field: "window", Message: "must contain at least one month"}
	}
	for i, m := range window {
		if !m.Valid() {
			return &InvalidInputError{Field: "window", Value: string(m), Message: "want YYYY-MM"}
		}
		if i > 0 && !window[i-1].Before(m) {
			return &InvalidRequestError{
				Field:   "window",
				Message: fmt.Sprintf("months out of order at index %d: %s >= %s", i, window[i-1], m),
			}
		}
	}
	return nil
}
