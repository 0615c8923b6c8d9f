/*
handlers_test.go - HTTP-level tests for API handlers

Tests for:
- Org unit CRUD and validation
- Budget upsert and month locking
- Monthly summary endpoint
- Offer lifecycle (create -> approve -> send -> accept)
- Impact previews
- Audit trail writes
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/budget-engine/engine"
	"github.com/warp/budget-engine/store/sqlite"
)

// newTestRouter spins up a full router on an in-memory database.
func newTestRouter(t *testing.T) (http.Handler, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, zerolog.Nop())
	return NewRouter(h), store
}

// do issues a JSON request and decodes the JSON response into out (when
// out is non-nil).
func do(t *testing.T, router http.Handler, method, path string, body, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(out),
			"undecodable response for %s %s: %s", method, path, rec.Body.String())
	}
	return rec
}

func createOrgUnit(t *testing.T, router http.Handler, id string, overhead float64) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/org-units", CreateOrgUnitRequest{
		ID:                 id,
		Name:               "Test Unit " + id,
		Currency:           "USD",
		OverheadMultiplier: overhead,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =============================================================================
// ORG UNITS
// =============================================================================

func TestCreateAndGetOrgUnit(t *testing.T) {
	router, _ := newTestRouter(t)

	// WHEN: Creating an org unit
	createOrgUnit(t, router, "unit-1", 1.8)

	// THEN: It round-trips via GET
	var dto OrgUnitDTO
	rec := do(t, router, http.MethodGet, "/api/org-units/unit-1", nil, &dto)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unit-1", dto.ID)
	assert.Equal(t, 1.8, dto.OverheadMultiplier)
	assert.True(t, dto.Active)
}

func TestGetOrgUnit_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/org-units/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateOrgUnit_RejectsNegativeOverhead(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/org-units", CreateOrgUnitRequest{
		ID: "unit-bad", Name: "Bad", OverheadMultiplier: -1,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateOrgUnit_PartialPatch(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 1.8)

	// WHEN: Patching only the name
	name := "Renamed"
	var dto OrgUnitDTO
	rec := do(t, router, http.MethodPatch, "/api/org-units/unit-1",
		UpdateOrgUnitRequest{Name: &name}, &dto)

	// THEN: Other fields are untouched
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", dto.Name)
	assert.Equal(t, 1.8, dto.OverheadMultiplier)
}

// =============================================================================
// BUDGETS AND LOCKING
// =============================================================================

func TestUpsertBudget_LockedMonthRejected(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 1.0)

	// GIVEN: A budget month that has been locked
	rec := do(t, router, http.MethodPost, "/api/org-units/unit-1/budgets",
		UpsertBudgetRequest{Month: "2026-03", ApprovedAmount: 50000}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/org-units/unit-1/lock-month",
		LockMonthRequest{Month: "2026-03"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN: Writing to the locked month again
	rec = do(t, router, http.MethodPost, "/api/org-units/unit-1/budgets",
		UpsertBudgetRequest{Month: "2026-03", ApprovedAmount: 99999}, nil)

	// THEN: The write is rejected and the old amount survives
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var budgets []BudgetDTO
	do(t, router, http.MethodGet, "/api/org-units/unit-1/budgets", nil, &budgets)
	require.Len(t, budgets, 1)
	assert.Equal(t, 50000.0, budgets[0].ApprovedAmount)
	assert.True(t, budgets[0].Locked)
}

func TestUpsertBudget_InvalidMonth(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 1.0)

	rec := do(t, router, http.MethodPost, "/api/org-units/unit-1/budgets",
		UpsertBudgetRequest{Month: "2026-13", ApprovedAmount: 1}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestGetSummary_EndToEnd(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 1.0)

	// GIVEN: Budgets covering one past month through five future months
	now := engine.MonthOf(time.Now().UTC())
	for _, m := range engine.Window(now.AddMonths(-1), 7) {
		rec := do(t, router, http.MethodPost, "/api/org-units/unit-1/budgets",
			UpsertBudgetRequest{Month: string(m), ApprovedAmount: 100000}, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec := do(t, router, http.MethodPost, "/api/org-units/unit-1/forecasts",
		UpsertForecastRequest{Month: string(now), Amount: 40000}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN: Requesting a six month summary
	var summary []MonthHealthDTO
	rec = do(t, router, http.MethodGet, "/api/org-units/unit-1/summary?months=6", nil, &summary)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: One past month plus the current and five future months
	require.Len(t, summary, 7)
	assert.Equal(t, string(now.AddMonths(-1)), summary[0].Month)

	current := summary[1]
	assert.Equal(t, string(now), current.Month)
	assert.Equal(t, "forecast", current.BaselineSource)
	assert.Equal(t, 60000.0, current.Remaining)
	assert.Equal(t, "green", current.Status)
}

func TestGetSummary_UnknownOrgUnit(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/org-units/missing/summary", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSummary_InvalidHorizon(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 1.0)

	rec := do(t, router, http.MethodGet, "/api/org-units/unit-1/summary?months=0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/org-units/unit-1/summary?months=121", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// REQUISITIONS
// =============================================================================

func createRequisition(t *testing.T, router http.Handler, orgUnitID string) RequisitionDTO {
	t.Helper()
	var dto RequisitionDTO
	rec := do(t, router, http.MethodPost, "/api/requisitions", CreateRequisitionRequest{
		OrgUnitID:            orgUnitID,
		Title:                "Backend Engineer",
		Priority:             "P1",
		EstimatedMonthlyCost: 9000,
		TargetStartMonth:     string(engine.MonthOf(time.Now().UTC()).AddMonths(1)),
	}, &dto)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return dto
}

func TestRequisitionTransitions(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 1.0)
	rq := createRequisition(t, router, "unit-1")
	require.Equal(t, "DRAFT", rq.Status)

	transition := func(status string) *httptest.ResponseRecorder {
		return do(t, router, http.MethodPost,
			fmt.Sprintf("/api/requisitions/%s/transition", rq.ID),
			TransitionRequest{Status: status}, nil)
	}

	// DRAFT cannot jump straight to FILLED
	assert.Equal(t, http.StatusBadRequest, transition("FILLED").Code)

	// The legal path walks the pipeline
	for _, status := range []string{"OPEN", "INTERVIEWING", "OFFER_PENDING", "FILLED"} {
		rec := transition(status)
		assert.Equal(t, http.StatusOK, rec.Code, "to %s: %s", status, rec.Body.String())
	}

	// FILLED is terminal
	assert.Equal(t, http.StatusBadRequest, transition("OPEN").Code)
}

func TestTransitionRequisition_UnknownStatus(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 1.0)
	rq := createRequisition(t, router, "unit-1")

	rec := do(t, router, http.MethodPost,
		fmt.Sprintf("/api/requisitions/%s/transition", rq.ID),
		TransitionRequest{Status: "SHIPPED"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// OFFER LIFECYCLE
// =============================================================================

// createOffer proposes an offer starting the first of next month, so
// impact assertions see a full month charge rather than a pro-rata one.
func createOffer(t *testing.T, router http.Handler, reqID string, cost float64) OfferDTO {
	t.Helper()
	start := engine.MonthOf(time.Now().UTC()).AddMonths(1).First().Format("2006-01-02")
	var dto OfferDTO
	rec := do(t, router, http.MethodPost, "/api/offers", CreateOfferRequest{
		RequisitionID:       reqID,
		CandidateName:       "Jordan Blake",
		ProposedMonthlyCost: cost,
		StartDate:           &start,
	}, &dto)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "PROPOSED", dto.Status)
	return dto
}

func TestOfferLifecycle_AcceptFillsRequisition(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 1.0)
	rq := createRequisition(t, router, "unit-1")
	offer := createOffer(t, router, rq.ID, 9000)

	// WHEN: Walking the lifecycle to acceptance
	var dto OfferDTO
	rec := do(t, router, http.MethodPost, "/api/offers/"+offer.ID+"/approve", struct{}{}, &dto)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "APPROVED", dto.Status)

	rec = do(t, router, http.MethodPost, "/api/offers/"+offer.ID+"/send", struct{}{}, &dto)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "SENT", dto.Status)

	rec = do(t, router, http.MethodPost, "/api/offers/"+offer.ID+"/accept",
		AcceptOfferRequest{}, &dto)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: Final cost defaults to the proposed cost
	assert.Equal(t, "ACCEPTED", dto.Status)
	require.NotNil(t, dto.FinalMonthlyCost)
	assert.Equal(t, 9000.0, *dto.FinalMonthlyCost)

	// AND: The requisition is filled
	var gotReq RequisitionDTO
	do(t, router, http.MethodGet, "/api/requisitions/"+rq.ID, nil, &gotReq)
	assert.Equal(t, "FILLED", gotReq.Status)
}

func TestAcceptOffer_FailedAcceptLeavesRequisitionUntouched(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 1.0)
	rq := createRequisition(t, router, "unit-1")
	offer := createOffer(t, router, rq.ID, 9000)

	do(t, router, http.MethodPost, "/api/offers/"+offer.ID+"/approve", struct{}{}, nil)
	do(t, router, http.MethodPost, "/api/offers/"+offer.ID+"/send", struct{}{}, nil)

	// WHEN: The accept is rejected before the offer write lands
	bad := -1.0
	rec := do(t, router, http.MethodPost, "/api/offers/"+offer.ID+"/accept",
		AcceptOfferRequest{FinalMonthlyCost: &bad}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// THEN: The offer stays SENT and the requisition is not marked filled
	var gotOffer OfferDTO
	do(t, router, http.MethodGet, "/api/offers/"+offer.ID, nil, &gotOffer)
	assert.Equal(t, "SENT", gotOffer.Status)

	var gotReq RequisitionDTO
	do(t, router, http.MethodGet, "/api/requisitions/"+rq.ID, nil, &gotReq)
	assert.NotEqual(t, "FILLED", gotReq.Status)
}

func TestOfferLifecycle_IllegalJumps(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 1.0)
	rq := createRequisition(t, router, "unit-1")
	offer := createOffer(t, router, rq.ID, 9000)

	// A PROPOSED offer cannot be sent or accepted
	rec := do(t, router, http.MethodPost, "/api/offers/"+offer.ID+"/send", struct{}{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/offers/"+offer.ID+"/accept",
		AcceptOfferRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHoldOffer_RecordsReason(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 1.0)
	rq := createRequisition(t, router, "unit-1")
	offer := createOffer(t, router, rq.ID, 9000)

	var dto OfferDTO
	rec := do(t, router, http.MethodPost, "/api/offers/"+offer.ID+"/hold",
		HoldOfferRequest{Reason: "budget review"}, &dto)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "HOLD", dto.Status)
	assert.Equal(t, "budget review", dto.HoldReason)

	// A held offer can be approved again
	rec = do(t, router, http.MethodPost, "/api/offers/"+offer.ID+"/approve", struct{}{}, &dto)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "APPROVED", dto.Status)
}

func TestDeleteOffer_AcceptedRejected(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 1.0)
	rq := createRequisition(t, router, "unit-1")
	offer := createOffer(t, router, rq.ID, 9000)

	do(t, router, http.MethodPost, "/api/offers/"+offer.ID+"/approve", struct{}{}, nil)
	do(t, router, http.MethodPost, "/api/offers/"+offer.ID+"/send", struct{}{}, nil)
	do(t, router, http.MethodPost, "/api/offers/"+offer.ID+"/accept", AcceptOfferRequest{}, nil)

	rec := do(t, router, http.MethodDelete, "/api/offers/"+offer.ID, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangeOfferStartDate(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 1.0)
	rq := createRequisition(t, router, "unit-1")
	offer := createOffer(t, router, rq.ID, 9000)

	var dto OfferDTO
	rec := do(t, router, http.MethodPost, "/api/offers/"+offer.ID+"/change-start-date",
		ChangeStartDateRequest{StartDate: "2026-11-15"}, &dto)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, dto.StartDate)
	assert.Equal(t, "2026-11-15", *dto.StartDate)
}

// =============================================================================
// SIMULATIONS
// =============================================================================

func TestPreviewOfferImpact_EndToEnd(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 1.0)

	now := engine.MonthOf(time.Now().UTC())
	for _, m := range engine.Window(now, 6) {
		rec := do(t, router, http.MethodPost, "/api/org-units/unit-1/budgets",
			UpsertBudgetRequest{Month: string(m), ApprovedAmount: 50000}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rq := createRequisition(t, router, "unit-1")
	offer := createOffer(t, router, rq.ID, 12000) // starts first of next month

	// WHEN: Previewing the offer's impact over three months
	var result ImpactResultDTO
	rec := do(t, router, http.MethodPost, "/api/offers/preview-impact",
		PreviewImpactRequest{OfferIDs: []string{offer.ID}, MonthsAhead: 3}, &result)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: Three months, the current one untouched, later ones charged
	require.Len(t, result.Impacts, 3)
	assert.Equal(t, 0.0, result.Impacts[0].Delta)
	assert.Equal(t, -12000.0, result.Impacts[1].Delta)
	assert.Equal(t, result.Impacts[1].RemainingBefore-12000.0, result.Impacts[1].RemainingAfter)

	// AND: Nothing was persisted; the summary is unchanged
	var summary []MonthHealthDTO
	do(t, router, http.MethodGet, "/api/org-units/unit-1/summary?months=3", nil, &summary)
	for _, m := range summary[1:] {
		assert.Equal(t, 0.0, m.Committed, "month %s", m.Month)
	}
}

func TestPreviewOfferImpact_UnknownOffer(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/offers/preview-impact",
		PreviewImpactRequest{OfferIDs: []string{"ghost"}, MonthsAhead: 3}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewNewPositions_EndToEnd(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 2.0)

	now := engine.MonthOf(time.Now().UTC())
	for _, m := range engine.Window(now, 4) {
		rec := do(t, router, http.MethodPost, "/api/org-units/unit-1/budgets",
			UpsertBudgetRequest{Month: string(m), ApprovedAmount: 50000}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// WHEN: Simulating one hypothetical hire starting next month
	var result ImpactResultDTO
	rec := do(t, router, http.MethodPost, "/api/offers/preview-new-positions",
		PreviewNewPositionsRequest{
			OrgUnitID: "unit-1",
			Positions: []WhatIfPositionRequest{{
				MonthlyCost: 10000,
				StartDate:   now.AddMonths(1).First().Format("2006-01-02"),
			}},
			MonthsAhead: 3,
		}, &result)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The org unit's overhead multiplier applies
	require.Len(t, result.Impacts, 3)
	assert.Equal(t, -20000.0, result.Impacts[1].Delta)
}

func TestPreviewNewPositions_EmptyPositions(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 1.0)

	rec := do(t, router, http.MethodPost, "/api/offers/preview-new-positions",
		PreviewNewPositionsRequest{OrgUnitID: "unit-1", MonthsAhead: 3}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

func TestMutationsAppendAuditEntries(t *testing.T) {
	router, _ := newTestRouter(t)

	// GIVEN: A mutation with an explicit actor
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(CreateOrgUnitRequest{
		ID: "unit-1", Name: "Audited Unit",
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/org-units", &buf)
	req.Header.Set("X-Actor", "casey")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	// THEN: The audit log names the actor and the action
	var entries []AuditEntryDTO
	do(t, router, http.MethodGet, "/api/audit-logs?entity_type=org_unit", nil, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "casey", entries[0].Actor)
	assert.Equal(t, "org_unit.create", entries[0].Action)
	assert.Equal(t, "unit-1", entries[0].EntityID)
}

func TestAuditActorDefaultsToAnonymous(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 1.0)

	var entries []AuditEntryDTO
	do(t, router, http.MethodGet, "/api/audit-logs", nil, &entries)
	require.NotEmpty(t, entries)
	assert.Equal(t, "anonymous", entries[0].Actor)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestLoadScenario_TightQuarter(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios/load",
		LoadScenarioRequest{ScenarioID: "tight-quarter"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The scenario produces a live summary
	var summary []MonthHealthDTO
	rec = do(t, router, http.MethodGet, "/api/org-units/growth/summary?months=6", nil, &summary)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, summary, 7)
}

func TestLoadScenario_Unknown(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios/load",
		LoadScenarioRequest{ScenarioID: "nope"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
