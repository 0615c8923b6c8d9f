/*
impact.go - Before/after simulation and bottleneck detection

PURPOSE:
  Answers "what happens if I approve these now". The "before" run is the
  current summary; the "after" run adds the candidate commitments - offers
  charged as if accepted regardless of their current status, or purely
  hypothetical positions that never touch persistent state.

BOTTLENECK:
  The bottleneck is the first month, chronologically, that the candidate
  set pushes into RED (statusAfter == RED while statusBefore != RED).
  Later RED months are not flagged; a month that was already RED before
  the simulation is not a bottleneck either.

NO PARTIAL RESULTS:
  Any error aborts the whole simulation. Callers get the full window
  or nothing.
*/
package engine

import "github.com/shopspring/decimal"

// =============================================================================
// IMPACT SIMULATOR
// =============================================================================

// Simulator computes before/after projections. Stateless; the zero value
// is ready to use.
type Simulator struct{}

// PreviewImpact simulates approving the candidate offers on top of the
// current state in. Candidates are charged whatever their status; the
// caller (not the engine) resolves IDs to offers and rejects unknown ones.
func (s Simulator) PreviewImpact(in SummaryInput, candidates []Offer) ([]MonthImpact, error) {
	overhead, err := in.OrgUnit.Overhead()
	if err != nil {
		return nil, err
	}
	return s.simulate(in, func(month MonthKey) (decimal.Decimal, error) {
		return AdditionalForMonth(month, candidates, overhead)
	})
}

// PreviewNewPositions simulates hypothetical positions. Each position may
// carry its own overhead override; otherwise the org unit's applies.
func (s Simulator) PreviewNewPositions(in SummaryInput, positions []WhatIfPosition) ([]MonthImpact, error) {
	defaultOverhead, err := in.OrgUnit.Overhead()
	if err != nil {
		return nil, err
	}
	return s.simulate(in, func(month MonthKey) (decimal.Decimal, error) {
		total := decimal.Zero
		for _, p := range positions {
			fraction, err := ProRataFraction(p.StartDate, month)
			if err != nil {
				return decimal.Zero, err
			}
			if fraction.IsZero() {
				continue
			}
			overhead := defaultOverhead
			if p.OverheadMultiplier != nil {
				overhead = *p.OverheadMultiplier
			}
			total = total.Add(p.MonthlyCost.Mul(overhead).Mul(fraction))
		}
		return total, nil
	})
}

// simulate runs the before summary, applies the additional charge per
// month, and flags the first transition into RED.
func (s Simulator) simulate(in SummaryInput, additionalFor func(MonthKey) (decimal.Decimal, error)) ([]MonthImpact, error) {
	before, err := SummaryBuilder{}.BuildSummary(in)
	if err != nil {
		return nil, err
	}

	impacts := make([]MonthImpact, 0, len(before))
	bottleneckFound := false

	for _, b := range before {
		additional, err := additionalFor(b.Month)
		if err != nil {
			return nil, err
		}

		remainingAfter := b.Remaining.Sub(additional)
		statusAfter := Classify(b.Approved, remainingAfter)

		isBottleneck := false
		if !bottleneckFound && statusAfter == StatusRed && b.Status != StatusRed {
			isBottleneck = true
			bottleneckFound = true
		}

		impacts = append(impacts, MonthImpact{
			Month:           b.Month,
			RemainingBefore: b.Remaining,
			RemainingAfter:  remainingAfter,
			Delta:           additional.Neg(),
			StatusBefore:    b.Status,
			StatusAfter:     statusAfter,
			IsBottleneck:    isBottleneck,
		})
	}
	return impacts, nil
}
