package engine

import "github.com/shopspring/decimal"

// =============================================================================
// BASELINE RESOLVER - actual > forecast > none
// =============================================================================

// Baseline is a tagged amount: the Source lets callers tell "zero because
// confirmed" apart from "zero because unknown".
type Baseline struct {
	Amount decimal.Decimal
	Source BaselineSource
}

// ResolveBaseline picks the month's baseline spend. An Actual wins over a
// Forecast regardless of its Finalized flag - an unfinalized actual is
// still the best current estimate. With neither present the baseline is
// zero, tagged SourceNone. Total function, no failure modes.
func ResolveBaseline(actual *Actual, forecast *Forecast) Baseline {
	if actual != nil {
		return Baseline{Amount: actual.Amount, Source: SourceActual}
	}
	if forecast != nil {
		return Baseline{Amount: forecast.Amount, Source: SourceForecast}
	}
	return Baseline{Amount: decimal.Zero, Source: SourceNone}
}
