/*
commitment.go - Monthly commitment and pipeline aggregation

PURPOSE:
  Sums what a month already owes to hires in flight. Two distinct figures:

  Committed:
    Offers in a committed status (ACCEPTED or APPROVED), pro-rated for
    their start month and grossed up by the org overhead multiplier.
    This reduces remaining budget.

  Pipeline potential:
    Open/interviewing requisitions targeting the month, grossed up but
    NOT pro-rated. Informational only; it never reduces remaining.

START-DATE POLICY:
  An offer with no start date charges its full cost to every month of the
  window. Skipping undated offers would make projections look healthier
  than the money actually available, so the conservative charge is applied
  until a start date is known.

GUARANTEES:
  - An offer is counted at most once per call.
  - The sum is order-independent (associative/commutative reduction).
  - No rounding mid-computation; decimal precision is kept throughout.
*/
package engine

import "github.com/shopspring/decimal"

// =============================================================================
// COMMITMENT AGGREGATOR
// =============================================================================

// CommittedForMonth sums cost * overhead * proRata over all committed
// offers whose effective start is on or before the last day of month.
// Offers not in a committed status are ignored; use AdditionalForMonth
// for candidate sets charged regardless of status.
func CommittedForMonth(month MonthKey, offers []Offer, overhead decimal.Decimal) (decimal.Decimal, error) {
	total := decimal.Zero
	seen := make(map[OfferID]bool, len(offers))

	for _, o := range offers {
		if !o.Status.Committed() || seen[o.ID] {
			continue
		}
		seen[o.ID] = true

		charge, err := offerChargeForMonth(o, month, overhead)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(charge)
	}
	return total, nil
}

// AdditionalForMonth charges a candidate offer set as if every offer were
// already accepted, whatever its current status. This is the "what happens
// if I approve these now" figure used by the impact simulator.
func AdditionalForMonth(month MonthKey, candidates []Offer, overhead decimal.Decimal) (decimal.Decimal, error) {
	total := decimal.Zero
	seen := make(map[OfferID]bool, len(candidates))

	for _, o := range candidates {
		if seen[o.ID] {
			continue
		}
		seen[o.ID] = true

		charge, err := offerChargeForMonth(o, month, overhead)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(charge)
	}
	return total, nil
}

func offerChargeForMonth(o Offer, month MonthKey, overhead decimal.Decimal) (decimal.Decimal, error) {
	// No start date: treated as started at the beginning of time,
	// a full charge every month. Explicit policy, see file header.
	if o.StartDate == nil {
		return o.MonthlyCost().Mul(overhead), nil
	}

	fraction, err := ProRataFraction(*o.StartDate, month)
	if err != nil {
		return decimal.Zero, err
	}
	if fraction.IsZero() {
		return decimal.Zero, nil
	}
	return o.MonthlyCost().Mul(overhead).Mul(fraction), nil
}

// PipelinePotential sums estimated cost * overhead for requisitions in an
// in-progress status targeting the month. Undiscounted by pro-rata: this
// is a potential, not a commitment, and is reported separately.
func PipelinePotential(month MonthKey, requisitions []Requisition, overhead decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, r := range requisitions {
		if !r.Status.InPipeline() || r.TargetStartMonth != month {
			continue
		}
		total = total.Add(r.EstimatedMonthlyCost.Mul(overhead))
	}
	return total
}
