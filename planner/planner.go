/*
Package planner binds the pure budget engine to storage and the clock.

PURPOSE:
  The engine computes over explicit inputs; the planner assembles them.
  For each request it loads the org unit's records, builds the month
  window from the current time, runs the engine, and returns the result.
  Nothing is cached between calls: inputs may have changed, and the
  engine contract is "recomputed fresh, every time".

WINDOWS:
  Summary:  1 month back + current + (monthsCount - 1) forward, matching
            the planning screen's "where did we just land" view.
  Previews: current month + monthsAhead - 1 forward.

VALIDATION:
  monthsCount/monthsAhead outside (0, 120] and unresolvable offer IDs are
  rejected with engine.ErrInvalidRequest before any computation runs.

SEE ALSO:
  - planner/store.go:  the Store interface this package consumes
  - planner/store:     in-memory Store for tests
  - store/sqlite:      production Store
*/
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warp/budget-engine/engine"
)

// MaxWindowMonths bounds every window so computation cost stays
// predictable. Ten years of monthly planning is beyond any real horizon.
const MaxWindowMonths = 120

// Planner serves summaries and simulations for org units.
type Planner struct {
	store Store
	now   func() time.Time
}

// New creates a planner on the given store, using the wall clock.
func New(store Store) *Planner {
	return &Planner{store: store, now: time.Now}
}

// NewWithClock injects a clock for deterministic tests.
func NewWithClock(store Store, now func() time.Time) *Planner {
	return &Planner{store: store, now: now}
}

// =============================================================================
// OPERATIONS
// =============================================================================

// GetMonthlySummary returns per-month health for 1 past month, the current
// month, and monthsCount-1 future months.
func (p *Planner) GetMonthlySummary(ctx context.Context, orgUnitID engine.OrgUnitID, monthsCount int) ([]engine.MonthHealth, error) {
	if err := validateHorizon("months", monthsCount); err != nil {
		return nil, err
	}

	in, err := p.loadInputs(ctx, orgUnitID)
	if err != nil {
		return nil, err
	}
	current := engine.MonthOf(p.now())
	in.Window = engine.Window(current.AddMonths(-1), monthsCount+1)

	return engine.SummaryBuilder{}.BuildSummary(in)
}

// PreviewOfferImpact simulates approving the given offers now. All IDs must
// resolve; the org unit is derived from the first offer's requisition.
func (p *Planner) PreviewOfferImpact(ctx context.Context, offerIDs []engine.OfferID, monthsAhead int) ([]engine.MonthImpact, error) {
	if err := validateHorizon("months_ahead", monthsAhead); err != nil {
		return nil, err
	}
	if len(offerIDs) == 0 {
		return nil, &engine.InvalidRequestError{Field: "offer_ids", Message: "at least one offer id required"}
	}

	candidates := make([]engine.Offer, 0, len(offerIDs))
	var missing []engine.OfferID
	seen := make(map[engine.OfferID]bool, len(offerIDs))
	for _, id := range offerIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		offer, err := p.store.GetOffer(ctx, id)
		if err != nil {
			if errors.Is(err, engine.ErrNotFound) {
				missing = append(missing, id)
				continue
			}
			return nil, err
		}
		candidates = append(candidates, offer)
	}
	if len(missing) > 0 {
		return nil, &engine.UnknownOffersError{OfferIDs: missing}
	}

	req, err := p.store.GetRequisition(ctx, candidates[0].RequisitionID)
	if err != nil {
		return nil, fmt.Errorf("resolving org unit for offer %s: %w", candidates[0].ID, err)
	}

	in, err := p.loadInputs(ctx, req.OrgUnitID)
	if err != nil {
		return nil, err
	}
	in.Window = engine.Window(engine.MonthOf(p.now()), monthsAhead)

	return engine.Simulator{}.PreviewImpact(in, candidates)
}

// PreviewNewPositions simulates hypothetical positions for the org unit.
// Positions are never persisted and never affect real data.
func (p *Planner) PreviewNewPositions(ctx context.Context, orgUnitID engine.OrgUnitID, positions []engine.WhatIfPosition, monthsAhead int) ([]engine.MonthImpact, error) {
	if err := validateHorizon("months_ahead", monthsAhead); err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, &engine.InvalidRequestError{Field: "positions", Message: "at least one position required"}
	}

	in, err := p.loadInputs(ctx, orgUnitID)
	if err != nil {
		return nil, err
	}
	in.Window = engine.Window(engine.MonthOf(p.now()), monthsAhead)

	return engine.Simulator{}.PreviewNewPositions(in, positions)
}

// =============================================================================
// LOADING
// =============================================================================

func (p *Planner) loadInputs(ctx context.Context, orgUnitID engine.OrgUnitID) (engine.SummaryInput, error) {
	unit, err := p.store.GetOrgUnit(ctx, orgUnitID)
	if err != nil {
		return engine.SummaryInput{}, err
	}
	budgets, err := p.store.ListBudgets(ctx, orgUnitID)
	if err != nil {
		return engine.SummaryInput{}, fmt.Errorf("loading budgets: %w", err)
	}
	forecasts, err := p.store.ListForecasts(ctx, orgUnitID)
	if err != nil {
		return engine.SummaryInput{}, fmt.Errorf("loading forecasts: %w", err)
	}
	actuals, err := p.store.ListActuals(ctx, orgUnitID)
	if err != nil {
		return engine.SummaryInput{}, fmt.Errorf("loading actuals: %w", err)
	}
	offers, err := p.store.ListOffersByOrgUnit(ctx, orgUnitID)
	if err != nil {
		return engine.SummaryInput{}, fmt.Errorf("loading offers: %w", err)
	}
	requisitions, err := p.store.ListRequisitionsByOrgUnit(ctx, orgUnitID)
	if err != nil {
		return engine.SummaryInput{}, fmt.Errorf("loading requisitions: %w", err)
	}

	return engine.SummaryInput{
		OrgUnit:      unit,
		Budgets:      budgets,
		Forecasts:    forecasts,
		Actuals:      actuals,
		Offers:       offers,
		Requisitions: requisitions,
	}, nil
}

func validateHorizon(field string, n int) error {
	if n <= 0 {
		return &engine.InvalidRequestError{Field: field, Message: "must be positive"}
	}
	if n > MaxWindowMonths {
		return &engine.InvalidRequestError{Field: field, Message: fmt.Sprintf("must be <= %d", MaxWindowMonths)}
	}
	return nil
}
