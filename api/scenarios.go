/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with realistic
  planning data for demos. Each scenario creates org units, budgets,
  forecasts, actuals, requisitions, and offers that demonstrate a
  specific planning situation.

AVAILABLE SCENARIOS:
  healthy-team:   Comfortable budget, one accepted offer, green across
                  the horizon
  tight-quarter:  Shrinking budget with two offers in flight; the summary
                  walks green -> yellow -> red
  hiring-freeze:  Offers on hold plus a cancelled requisition

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create org units and job catalog entries
 3. Create budgets/forecasts/actuals around the current month
 4. Create requisitions and offers in the relevant statuses

Months are computed relative to time.Now so the summary endpoint always
shows live data regardless of when the scenario is loaded.

NOTE:
  Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: shared write helpers
  - server.go: /api/scenarios routes
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/budget-engine/engine"
	"github.com/warp/budget-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "healthy-team",
		Name:        "Healthy Team",
		Description: "Comfortable budget with one accepted offer; all months green",
	},
	{
		ID:          "tight-quarter",
		Name:        "Tight Quarter",
		Description: "Shrinking budget with offers in flight; health walks green to red",
	},
	{
		ID:          "hiring-freeze",
		Name:        "Hiring Freeze",
		Description: "Offers on hold and a cancelled requisition",
	},
}

// =============================================================================
// HANDLERS
// =============================================================================

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "healthy-team":
		err = loadHealthyTeamScenario(r.Context(), h.Store)
	case "tight-quarter":
		err = loadTightQuarterScenario(r.Context(), h.Store)
	case "hiring-freeze":
		err = loadHiringFreezeScenario(r.Context(), h.Store)
	default:
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Unknown scenario %q", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"loaded": req.ScenarioID})
}

// =============================================================================
// LOADERS
// =============================================================================

// seeder accumulates the first error so loaders read as straight-line
// data declarations.
type seeder struct {
	ctx   context.Context
	store *sqlite.Store
	err   error
}

func (s *seeder) orgUnit(id, name string, overhead float64) {
	if s.err != nil {
		return
	}
	s.err = s.store.SaveOrgUnit(s.ctx, engine.OrgUnit{
		ID:                 engine.OrgUnitID(id),
		Name:               name,
		Currency:           "USD",
		OverheadMultiplier: decimal.NewFromFloat(overhead),
		Active:             true,
	})
}

func (s *seeder) budget(orgUnitID string, month engine.MonthKey, amount float64) {
	if s.err != nil {
		return
	}
	s.err = s.store.SaveBudget(s.ctx, engine.Budget{
		OrgUnitID:      engine.OrgUnitID(orgUnitID),
		Month:          month,
		ApprovedAmount: decimal.NewFromFloat(amount),
		Currency:       "USD",
	})
}

func (s *seeder) forecast(orgUnitID string, month engine.MonthKey, amount float64) {
	if s.err != nil {
		return
	}
	s.err = s.store.SaveForecast(s.ctx, engine.Forecast{
		OrgUnitID: engine.OrgUnitID(orgUnitID),
		Month:     month,
		Amount:    decimal.NewFromFloat(amount),
		Currency:  "USD",
		Source:    "scenario",
	})
}

func (s *seeder) actual(orgUnitID string, month engine.MonthKey, amount float64) {
	if s.err != nil {
		return
	}
	s.err = s.store.SaveActual(s.ctx, engine.Actual{
		OrgUnitID: engine.OrgUnitID(orgUnitID),
		Month:     month,
		Amount:    decimal.NewFromFloat(amount),
		Currency:  "USD",
		Finalized: true,
	})
}

func (s *seeder) requisition(id, orgUnitID, title string, status engine.RequisitionStatus,
	cost float64, target engine.MonthKey) {
	if s.err != nil {
		return
	}
	s.err = s.store.SaveRequisition(s.ctx, engine.Requisition{
		ID:                   engine.RequisitionID(id),
		OrgUnitID:            engine.OrgUnitID(orgUnitID),
		Title:                title,
		Status:               status,
		Priority:             engine.PriorityP1,
		EstimatedMonthlyCost: decimal.NewFromFloat(cost),
		TargetStartMonth:     target,
		Headcount:            1,
	})
}

func (s *seeder) offer(id, reqID, candidate string, status engine.OfferStatus,
	cost float64, start *time.Time) {
	if s.err != nil {
		return
	}
	s.err = s.store.SaveOffer(s.ctx, sqlite.OfferRecord{
		Offer: engine.Offer{
			ID:                  engine.OfferID(id),
			RequisitionID:       engine.RequisitionID(reqID),
			CandidateName:       candidate,
			Status:              status,
			ProposedMonthlyCost: decimal.NewFromFloat(cost),
			Currency:            "USD",
			StartDate:           start,
		},
	})
}

func firstOfMonth(m engine.MonthKey) *time.Time {
	d := m.First()
	return &d
}

func loadHealthyTeamScenario(ctx context.Context, store *sqlite.Store) error {
	now := engine.MonthOf(time.Now().UTC())
	s := &seeder{ctx: ctx, store: store}

	s.orgUnit("platform", "Platform Engineering", 1.8)
	for _, m := range engine.Window(now.AddMonths(-2), 9) {
		s.budget("platform", m, 120000)
	}
	s.actual("platform", now.AddMonths(-2), 61500)
	s.actual("platform", now.AddMonths(-1), 63200)
	s.forecast("platform", now, 64000)
	s.forecast("platform", now.AddMonths(1), 64000)

	s.requisition("req-platform-sre", "platform", "Senior SRE",
		engine.ReqFilled, 11000, now)
	s.offer("offer-sre-accepted", "req-platform-sre", "Dana Kim",
		engine.OfferAccepted, 11000, firstOfMonth(now))

	s.requisition("req-platform-backend", "platform", "Backend Engineer",
		engine.ReqOpen, 9500, now.AddMonths(2))
	return s.err
}

func loadTightQuarterScenario(ctx context.Context, store *sqlite.Store) error {
	now := engine.MonthOf(time.Now().UTC())
	s := &seeder{ctx: ctx, store: store}

	s.orgUnit("growth", "Growth", 1.8)
	// Budget steps down each month while spend holds steady.
	amounts := []float64{90000, 90000, 82000, 74000, 66000, 58000, 50000}
	for i, a := range amounts {
		s.budget("growth", now.AddMonths(i-1), a)
	}
	s.actual("growth", now.AddMonths(-1), 52000)
	for i := 0; i < 6; i++ {
		s.forecast("growth", now.AddMonths(i), 52000)
	}

	s.requisition("req-growth-analyst", "growth", "Data Analyst",
		engine.ReqOfferPending, 7000, now)
	s.offer("offer-analyst-sent", "req-growth-analyst", "Riley Moreno",
		engine.OfferSent, 7000, firstOfMonth(now.AddMonths(1)))

	s.requisition("req-growth-pmm", "growth", "Product Marketing Manager",
		engine.ReqInterviewing, 8500, now.AddMonths(2))
	s.offer("offer-pmm-proposed", "req-growth-pmm", "Sam Okafor",
		engine.OfferProposed, 8500, firstOfMonth(now.AddMonths(2)))
	return s.err
}

func loadHiringFreezeScenario(ctx context.Context, store *sqlite.Store) error {
	now := engine.MonthOf(time.Now().UTC())
	s := &seeder{ctx: ctx, store: store}

	s.orgUnit("infra", "Infrastructure", 1.8)
	for _, m := range engine.Window(now.AddMonths(-1), 7) {
		s.budget("infra", m, 70000)
	}
	s.forecast("infra", now, 68000)

	s.requisition("req-infra-dba", "infra", "Database Engineer",
		engine.ReqOpen, 10000, now.AddMonths(1))
	s.requisition("req-infra-neteng", "infra", "Network Engineer",
		engine.ReqCancelled, 9000, now.AddMonths(1))

	s.offer("offer-dba-hold", "req-infra-dba", "Alex Chen",
		engine.OfferHold, 10000, firstOfMonth(now.AddMonths(1)))
	return s.err
}
