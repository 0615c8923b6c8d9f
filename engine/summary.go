/*
summary.go - Per-month health assembly

PURPOSE:
  Assembles the full MonthHealth record for every month of a window:
  approved budget, baseline (actual > forecast > none), committed hires,
  pipeline potential, remaining and status. This is the "before" picture
  the impact simulator reruns with extra commitments.

INVARIANT:
  remaining = approved - baseline - committed, exactly. Pipeline potential
  is informational and never enters the subtraction.

FRESHNESS:
  Results are recomputed on every call; nothing is cached, inputs are never
  mutated. Safe under concurrent invocation.
*/
package engine

import "github.com/shopspring/decimal"

// SummaryInput carries everything a summary run needs. All records are
// expected to already belong to the org unit; the engine does no fetching
// or cross-unit filtering.
type SummaryInput struct {
	OrgUnit      OrgUnit
	Window       []MonthKey
	Budgets      []Budget
	Forecasts    []Forecast
	Actuals      []Actual
	Offers       []Offer
	Requisitions []Requisition
}

// =============================================================================
// SUMMARY BUILDER
// =============================================================================

// SummaryBuilder assembles MonthHealth sequences. Stateless; the zero
// value is ready to use.
type SummaryBuilder struct{}

// BuildSummary returns one MonthHealth per window month, in chronological
// order. A month with no Budget record has approved = 0.
func (SummaryBuilder) BuildSummary(in SummaryInput) ([]MonthHealth, error) {
	if err := ValidateWindow(in.Window); err != nil {
		return nil, err
	}
	overhead, err := in.OrgUnit.Overhead()
	if err != nil {
		return nil, err
	}

	budgets := make(map[MonthKey]Budget, len(in.Budgets))
	for _, b := range in.Budgets {
		budgets[b.Month] = b
	}
	actuals := make(map[MonthKey]Actual, len(in.Actuals))
	for _, a := range in.Actuals {
		actuals[a.Month] = a
	}
	forecasts := make(map[MonthKey]Forecast, len(in.Forecasts))
	for _, f := range in.Forecasts {
		forecasts[f.Month] = f
	}

	out := make([]MonthHealth, 0, len(in.Window))
	for _, month := range in.Window {
		health, err := buildMonth(month, budgets, actuals, forecasts, in.Offers, in.Requisitions, overhead)
		if err != nil {
			return nil, err
		}
		out = append(out, health)
	}
	return out, nil
}

func buildMonth(
	month MonthKey,
	budgets map[MonthKey]Budget,
	actuals map[MonthKey]Actual,
	forecasts map[MonthKey]Forecast,
	offers []Offer,
	requisitions []Requisition,
	overhead decimal.Decimal,
) (MonthHealth, error) {
	approved := budgets[month].ApprovedAmount

	var actual *Actual
	if a, ok := actuals[month]; ok {
		actual = &a
	}
	var forecast *Forecast
	if f, ok := forecasts[month]; ok {
		forecast = &f
	}
	baseline := ResolveBaseline(actual, forecast)

	committed, err := CommittedForMonth(month, offers, overhead)
	if err != nil {
		return MonthHealth{}, err
	}
	pipeline := PipelinePotential(month, requisitions, overhead)

	remaining := approved.Sub(baseline.Amount).Sub(committed)

	return MonthHealth{
		Month:             month,
		Approved:          approved,
		Baseline:          baseline.Amount,
		BaselineSource:    baseline.Source,
		Committed:         committed,
		PipelinePotential: pipeline,
		Remaining:         remaining,
		Status:            Classify(approved, remaining),
	}, nil
}
