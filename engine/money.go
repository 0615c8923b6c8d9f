package engine

import "github.com/shopspring/decimal"

// =============================================================================
// MONEY - Presentation rounding
// =============================================================================
// All engine computation runs at full decimal precision. Rounding to the
// currency minor unit happens exactly once, at the presentation boundary.

// MinorUnitPlaces is the number of decimal places of the currency minor
// unit. Single-currency system; two places covers BRL/USD/EUR.
const MinorUnitPlaces = 2

// RoundMinor rounds a monetary value to the currency minor unit,
// half up. For presentation only - never feed the result back into
// a computation.
func RoundMinor(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorUnitPlaces)
}

// MustDecimal parses a decimal literal, panicking on malformed input.
// For tests and seed data.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
