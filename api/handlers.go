/*
handlers.go - HTTP handlers for the budget planning API

PURPOSE:
  Implements all HTTP endpoints. Handlers decode/validate requests, call
  the store or the planner, and encode DTO responses. No projection math
  lives here; that belongs to the engine package.

ERROR MAPPING:
  engine.ErrInvalidInput / engine.ErrInvalidRequest  -> 400
  engine.ErrNotFound                                 -> 404
  anything else                                      -> 500

AUDIT TRAIL:
  Every mutating endpoint appends an audit_log row. The actor comes from
  the X-Actor header and defaults to "anonymous" (no authentication
  middleware currently; all endpoints are public).

LIFECYCLES:
  Offers:       PROPOSED -> APPROVED -> SENT -> ACCEPTED, with HOLD
                reachable from PROPOSED and APPROVED. Accepting an offer
                defaults the final cost to the proposed cost and marks the
                requisition FILLED.
  Requisitions: guarded by requisitionTransitions below.

SEE ALSO:
  - dto.go: Request/response types
  - server.go: Route definitions
  - planner/planner.go: Summary and simulation entry points
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/budget-engine/engine"
	"github.com/warp/budget-engine/planner"
	"github.com/warp/budget-engine/store/sqlite"
)

// Handler holds dependencies for all HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Planner *planner.Planner
	Log     zerolog.Logger
}

// NewHandler creates a handler backed by the given store.
func NewHandler(store *sqlite.Store, log zerolog.Logger) *Handler {
	return &Handler{
		Store:   store,
		Planner: planner.New(store),
		Log:     log,
	}
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps domain errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// actor identifies who performed a mutation, for the audit trail.
func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return "anonymous"
}

// audit appends an audit row. Audit failures are logged, never surfaced:
// the mutation already happened.
func (h *Handler) audit(r *http.Request, action, entityType, entityID string, changes any) {
	blob := ""
	if changes != nil {
		if b, err := json.Marshal(changes); err == nil {
			blob = string(b)
		}
	}
	err := h.Store.AppendAudit(r.Context(), sqlite.AuditEntry{
		Actor:      actor(r),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    blob,
	})
	if err != nil {
		h.Log.Error().Err(err).Str("action", action).Msg("audit append failed")
	}
}

func decodeBody(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// queryInt reads an integer query parameter, falling back when absent.
func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// =============================================================================
// ORG UNITS
// =============================================================================

func (h *Handler) ListOrgUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.Store.ListOrgUnits(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list org units", err)
		return
	}
	dtos := make([]OrgUnitDTO, 0, len(units))
	for _, u := range units {
		dtos = append(dtos, toOrgUnitDTO(u))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateOrgUnit(w http.ResponseWriter, r *http.Request) {
	var req CreateOrgUnitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	if req.OverheadMultiplier < 0 {
		writeError(w, http.StatusBadRequest, "overhead_multiplier must not be negative", nil)
		return
	}

	unit := engine.OrgUnit{
		ID:                 engine.OrgUnitID(req.ID),
		Name:               req.Name,
		Currency:           req.Currency,
		OverheadMultiplier: decimal.NewFromFloat(req.OverheadMultiplier),
		Active:             true,
	}
	if unit.Currency == "" {
		unit.Currency = "USD"
	}

	if err := h.Store.SaveOrgUnit(r.Context(), unit); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create org unit", err)
		return
	}

	h.audit(r, "org_unit.create", "org_unit", req.ID, req)
	writeJSON(w, http.StatusCreated, toOrgUnitDTO(unit))
}

func (h *Handler) GetOrgUnit(w http.ResponseWriter, r *http.Request) {
	id := engine.OrgUnitID(chi.URLParam(r, "id"))
	unit, err := h.Store.GetOrgUnit(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get org unit", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrgUnitDTO(unit))
}

func (h *Handler) UpdateOrgUnit(w http.ResponseWriter, r *http.Request) {
	id := engine.OrgUnitID(chi.URLParam(r, "id"))
	unit, err := h.Store.GetOrgUnit(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get org unit", err)
		return
	}

	var req UpdateOrgUnitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name != nil {
		unit.Name = *req.Name
	}
	if req.Currency != nil {
		unit.Currency = *req.Currency
	}
	if req.OverheadMultiplier != nil {
		if *req.OverheadMultiplier < 0 {
			writeError(w, http.StatusBadRequest, "overhead_multiplier must not be negative", nil)
			return
		}
		unit.OverheadMultiplier = decimal.NewFromFloat(*req.OverheadMultiplier)
	}
	if req.Active != nil {
		unit.Active = *req.Active
	}

	if err := h.Store.SaveOrgUnit(r.Context(), unit); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update org unit", err)
		return
	}

	h.audit(r, "org_unit.update", "org_unit", string(id), req)
	writeJSON(w, http.StatusOK, toOrgUnitDTO(unit))
}

// =============================================================================
// BUDGETS
// =============================================================================

func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	id := engine.OrgUnitID(chi.URLParam(r, "id"))
	budgets, err := h.Store.ListBudgets(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list budgets", err)
		return
	}
	dtos := make([]BudgetDTO, 0, len(budgets))
	for _, b := range budgets {
		dtos = append(dtos, toBudgetDTO(b))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) UpsertBudget(w http.ResponseWriter, r *http.Request) {
	id := engine.OrgUnitID(chi.URLParam(r, "id"))
	if _, err := h.Store.GetOrgUnit(r.Context(), id); err != nil {
		writeEngineError(w, "Failed to get org unit", err)
		return
	}

	var req UpsertBudgetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	month, err := engine.ParseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return
	}

	locked, err := h.Store.IsBudgetLocked(r.Context(), id, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check lock", err)
		return
	}
	if locked {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Budget month %s is locked", month), nil)
		return
	}

	b := engine.Budget{
		OrgUnitID:      id,
		Month:          month,
		ApprovedAmount: decimal.NewFromFloat(req.ApprovedAmount),
		Currency:       req.Currency,
	}
	if b.Currency == "" {
		b.Currency = "USD"
	}

	if err := h.Store.SaveBudget(r.Context(), b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save budget", err)
		return
	}

	h.audit(r, "budget.upsert", "budget", fmt.Sprintf("%s/%s", id, month), req)
	writeJSON(w, http.StatusOK, toBudgetDTO(b))
}

func (h *Handler) LockBudgetMonth(w http.ResponseWriter, r *http.Request) {
	id := engine.OrgUnitID(chi.URLParam(r, "id"))

	var req LockMonthRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	month, err := engine.ParseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return
	}

	if err := h.Store.LockBudgetMonth(r.Context(), id, month, actor(r)); err != nil {
		writeEngineError(w, "Failed to lock budget month", err)
		return
	}

	h.audit(r, "budget.lock", "budget", fmt.Sprintf("%s/%s", id, month), req)
	writeJSON(w, http.StatusOK, map[string]any{"locked": true, "month": string(month)})
}

// =============================================================================
// FORECASTS / ACTUALS
// =============================================================================

func (h *Handler) ListForecasts(w http.ResponseWriter, r *http.Request) {
	id := engine.OrgUnitID(chi.URLParam(r, "id"))
	forecasts, err := h.Store.ListForecasts(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list forecasts", err)
		return
	}
	dtos := make([]ForecastDTO, 0, len(forecasts))
	for _, f := range forecasts {
		dtos = append(dtos, toForecastDTO(f))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) UpsertForecast(w http.ResponseWriter, r *http.Request) {
	id := engine.OrgUnitID(chi.URLParam(r, "id"))
	if _, err := h.Store.GetOrgUnit(r.Context(), id); err != nil {
		writeEngineError(w, "Failed to get org unit", err)
		return
	}

	var req UpsertForecastRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	month, err := engine.ParseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return
	}

	f := engine.Forecast{
		OrgUnitID: id,
		Month:     month,
		Amount:    decimal.NewFromFloat(req.Amount),
		Currency:  req.Currency,
		Source:    req.Source,
	}
	if f.Currency == "" {
		f.Currency = "USD"
	}
	if f.Source == "" {
		f.Source = "manual"
	}

	if err := h.Store.SaveForecast(r.Context(), f); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save forecast", err)
		return
	}

	h.audit(r, "forecast.upsert", "forecast", fmt.Sprintf("%s/%s", id, month), req)
	writeJSON(w, http.StatusOK, toForecastDTO(f))
}

func (h *Handler) ListActuals(w http.ResponseWriter, r *http.Request) {
	id := engine.OrgUnitID(chi.URLParam(r, "id"))
	actuals, err := h.Store.ListActuals(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list actuals", err)
		return
	}
	dtos := make([]ActualDTO, 0, len(actuals))
	for _, a := range actuals {
		dtos = append(dtos, toActualDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) UpsertActual(w http.ResponseWriter, r *http.Request) {
	id := engine.OrgUnitID(chi.URLParam(r, "id"))
	if _, err := h.Store.GetOrgUnit(r.Context(), id); err != nil {
		writeEngineError(w, "Failed to get org unit", err)
		return
	}

	var req UpsertActualRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	month, err := engine.ParseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return
	}

	a := engine.Actual{
		OrgUnitID: id,
		Month:     month,
		Amount:    decimal.NewFromFloat(req.Amount),
		Currency:  req.Currency,
		Finalized: req.Finalized,
	}
	if a.Currency == "" {
		a.Currency = "USD"
	}

	if err := h.Store.SaveActual(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save actual", err)
		return
	}

	h.audit(r, "actual.upsert", "actual", fmt.Sprintf("%s/%s", id, month), req)
	writeJSON(w, http.StatusOK, toActualDTO(a))
}

// =============================================================================
// SUMMARY
// =============================================================================

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id := engine.OrgUnitID(chi.URLParam(r, "id"))
	months, err := queryInt(r, "months", 6)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid months parameter", err)
		return
	}

	healths, err := h.Planner.GetMonthlySummary(r.Context(), id, months)
	if err != nil {
		writeEngineError(w, "Failed to compute summary", err)
		return
	}

	dtos := make([]MonthHealthDTO, 0, len(healths))
	for _, m := range healths {
		dtos = append(dtos, toMonthHealthDTO(m))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// JOB CATALOG
// =============================================================================

func (h *Handler) ListJobCatalog(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	entries, err := h.Store.ListJobCatalog(r.Context(), includeInactive)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list job catalog", err)
		return
	}
	dtos := make([]JobCatalogDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toJobCatalogDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateJobCatalog(w http.ResponseWriter, r *http.Request) {
	var req CreateJobCatalogRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.JobFamily == "" || req.Level == "" {
		writeError(w, http.StatusBadRequest, "job_family and level are required", nil)
		return
	}
	if req.MonthlyCost <= 0 {
		writeError(w, http.StatusBadRequest, "monthly_cost must be positive", nil)
		return
	}

	entry := sqlite.JobCatalogEntry{
		ID:             engine.JobCatalogID(sqlite.NewID()),
		JobFamily:      req.JobFamily,
		Level:          req.Level,
		Title:          req.Title,
		MonthlyCost:    decimal.NewFromFloat(req.MonthlyCost),
		HierarchyLevel: req.HierarchyLevel,
		Currency:       req.Currency,
		Active:         true,
	}
	if entry.Currency == "" {
		entry.Currency = "USD"
	}

	if err := h.Store.SaveJobCatalog(r.Context(), entry); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create catalog entry", err)
		return
	}

	h.audit(r, "job_catalog.create", "job_catalog", string(entry.ID), req)
	writeJSON(w, http.StatusCreated, toJobCatalogDTO(entry))
}

func (h *Handler) GetJobCatalog(w http.ResponseWriter, r *http.Request) {
	id := engine.JobCatalogID(chi.URLParam(r, "id"))
	entry, err := h.Store.GetJobCatalog(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get catalog entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toJobCatalogDTO(entry))
}

func (h *Handler) UpdateJobCatalog(w http.ResponseWriter, r *http.Request) {
	id := engine.JobCatalogID(chi.URLParam(r, "id"))
	entry, err := h.Store.GetJobCatalog(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get catalog entry", err)
		return
	}

	var req UpdateJobCatalogRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Title != nil {
		entry.Title = *req.Title
	}
	if req.MonthlyCost != nil {
		if *req.MonthlyCost <= 0 {
			writeError(w, http.StatusBadRequest, "monthly_cost must be positive", nil)
			return
		}
		entry.MonthlyCost = decimal.NewFromFloat(*req.MonthlyCost)
	}
	if req.Active != nil {
		entry.Active = *req.Active
	}

	if err := h.Store.SaveJobCatalog(r.Context(), entry); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update catalog entry", err)
		return
	}

	h.audit(r, "job_catalog.update", "job_catalog", string(id), req)
	writeJSON(w, http.StatusOK, toJobCatalogDTO(entry))
}

func (h *Handler) DeleteJobCatalog(w http.ResponseWriter, r *http.Request) {
	id := engine.JobCatalogID(chi.URLParam(r, "id"))
	if err := h.Store.DeactivateJobCatalog(r.Context(), id); err != nil {
		writeEngineError(w, "Failed to deactivate catalog entry", err)
		return
	}
	h.audit(r, "job_catalog.deactivate", "job_catalog", string(id), nil)
	writeJSON(w, http.StatusOK, map[string]any{"deactivated": true})
}

// =============================================================================
// REQUISITIONS
// =============================================================================

// requisitionTransitions guards status changes. A requisition can only
// move to a status listed for its current one.
var requisitionTransitions = map[engine.RequisitionStatus][]engine.RequisitionStatus{
	engine.ReqDraft:        {engine.ReqOpen, engine.ReqCancelled},
	engine.ReqOpen:         {engine.ReqInterviewing, engine.ReqCancelled},
	engine.ReqInterviewing: {engine.ReqOfferPending, engine.ReqOpen, engine.ReqCancelled},
	engine.ReqOfferPending: {engine.ReqFilled, engine.ReqInterviewing, engine.ReqCancelled},
	engine.ReqFilled:       {},
	engine.ReqCancelled:    {engine.ReqDraft},
}

func canTransition(from, to engine.RequisitionStatus) bool {
	for _, s := range requisitionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (h *Handler) ListRequisitions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reqs, err := h.Store.ListRequisitions(r.Context(),
		engine.OrgUnitID(q.Get("org_unit_id")), q.Get("status"), q.Get("priority"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requisitions", err)
		return
	}
	dtos := make([]RequisitionDTO, 0, len(reqs))
	for _, rq := range reqs {
		dtos = append(dtos, toRequisitionDTO(rq))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateRequisition(w http.ResponseWriter, r *http.Request) {
	var req CreateRequisitionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OrgUnitID == "" || req.Title == "" {
		writeError(w, http.StatusBadRequest, "org_unit_id and title are required", nil)
		return
	}
	if _, err := h.Store.GetOrgUnit(r.Context(), engine.OrgUnitID(req.OrgUnitID)); err != nil {
		writeEngineError(w, "Failed to get org unit", err)
		return
	}
	target, err := engine.ParseMonth(req.TargetStartMonth)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target_start_month (use YYYY-MM)", err)
		return
	}
	if req.EstimatedMonthlyCost <= 0 {
		writeError(w, http.StatusBadRequest, "estimated_monthly_cost must be positive", nil)
		return
	}

	rq := engine.Requisition{
		ID:                   engine.RequisitionID(sqlite.NewID()),
		OrgUnitID:            engine.OrgUnitID(req.OrgUnitID),
		JobCatalogID:         engine.JobCatalogID(req.JobCatalogID),
		Title:                req.Title,
		Status:               engine.ReqDraft,
		Priority:             engine.RequisitionPriority(req.Priority),
		EstimatedMonthlyCost: decimal.NewFromFloat(req.EstimatedMonthlyCost),
		TargetStartMonth:     target,
		Headcount:            req.Headcount,
	}
	if rq.Priority == "" {
		rq.Priority = engine.PriorityP2
	}
	if rq.Headcount <= 0 {
		rq.Headcount = 1
	}

	if err := h.Store.SaveRequisition(r.Context(), rq); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create requisition", err)
		return
	}

	h.audit(r, "requisition.create", "requisition", string(rq.ID), req)
	writeJSON(w, http.StatusCreated, toRequisitionDTO(rq))
}

func (h *Handler) GetRequisition(w http.ResponseWriter, r *http.Request) {
	id := engine.RequisitionID(chi.URLParam(r, "id"))
	rq, err := h.Store.GetRequisition(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get requisition", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequisitionDTO(rq))
}

func (h *Handler) UpdateRequisition(w http.ResponseWriter, r *http.Request) {
	id := engine.RequisitionID(chi.URLParam(r, "id"))
	rq, err := h.Store.GetRequisition(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get requisition", err)
		return
	}

	var req UpdateRequisitionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Title != nil {
		rq.Title = *req.Title
	}
	if req.Priority != nil {
		rq.Priority = engine.RequisitionPriority(*req.Priority)
	}
	if req.EstimatedMonthlyCost != nil {
		if *req.EstimatedMonthlyCost <= 0 {
			writeError(w, http.StatusBadRequest, "estimated_monthly_cost must be positive", nil)
			return
		}
		rq.EstimatedMonthlyCost = decimal.NewFromFloat(*req.EstimatedMonthlyCost)
	}
	if req.TargetStartMonth != nil {
		target, err := engine.ParseMonth(*req.TargetStartMonth)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid target_start_month (use YYYY-MM)", err)
			return
		}
		rq.TargetStartMonth = target
	}
	if req.Headcount != nil {
		rq.Headcount = *req.Headcount
	}

	if err := h.Store.SaveRequisition(r.Context(), rq); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update requisition", err)
		return
	}

	h.audit(r, "requisition.update", "requisition", string(id), req)
	writeJSON(w, http.StatusOK, toRequisitionDTO(rq))
}

func (h *Handler) TransitionRequisition(w http.ResponseWriter, r *http.Request) {
	id := engine.RequisitionID(chi.URLParam(r, "id"))
	rq, err := h.Store.GetRequisition(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get requisition", err)
		return
	}

	var req TransitionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	to := engine.RequisitionStatus(req.Status)
	if _, known := requisitionTransitions[to]; !known {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Unknown requisition status %q", req.Status), nil)
		return
	}
	if !canTransition(rq.Status, to) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Cannot transition from %s to %s", rq.Status, to), nil)
		return
	}

	from := rq.Status
	rq.Status = to
	if err := h.Store.SaveRequisition(r.Context(), rq); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to transition requisition", err)
		return
	}

	h.audit(r, "requisition.transition", "requisition", string(id),
		map[string]string{"from": string(from), "to": string(to)})
	writeJSON(w, http.StatusOK, toRequisitionDTO(rq))
}

// =============================================================================
// OFFERS
// =============================================================================

func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offers, err := h.Store.ListOffers(r.Context(),
		engine.RequisitionID(q.Get("requisition_id")), q.Get("status"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list offers", err)
		return
	}
	dtos := make([]OfferDTO, 0, len(offers))
	for _, o := range offers {
		dtos = append(dtos, toOfferDTO(o))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var req CreateOfferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.CandidateName == "" {
		writeError(w, http.StatusBadRequest, "candidate_name is required", nil)
		return
	}
	if req.ProposedMonthlyCost <= 0 {
		writeError(w, http.StatusBadRequest, "proposed_monthly_cost must be positive", nil)
		return
	}
	if _, err := h.Store.GetRequisition(r.Context(), engine.RequisitionID(req.RequisitionID)); err != nil {
		writeEngineError(w, "Failed to get requisition", err)
		return
	}

	rec := sqlite.OfferRecord{
		Offer: engine.Offer{
			ID:                  engine.OfferID(sqlite.NewID()),
			RequisitionID:       engine.RequisitionID(req.RequisitionID),
			CandidateName:       req.CandidateName,
			Status:              engine.OfferProposed,
			ProposedMonthlyCost: decimal.NewFromFloat(req.ProposedMonthlyCost),
			Currency:            req.Currency,
		},
		Notes: req.Notes,
	}
	if rec.Currency == "" {
		rec.Currency = "USD"
	}
	if req.StartDate != nil {
		d, err := parseDate(*req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
			return
		}
		rec.StartDate = &d
	}

	if err := h.Store.SaveOffer(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create offer", err)
		return
	}

	h.audit(r, "offer.create", "offer", string(rec.ID), req)
	writeJSON(w, http.StatusCreated, toOfferDTO(rec))
}

func (h *Handler) GetOffer(w http.ResponseWriter, r *http.Request) {
	id := engine.OfferID(chi.URLParam(r, "id"))
	rec, err := h.Store.GetOfferRecord(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get offer", err)
		return
	}
	writeJSON(w, http.StatusOK, toOfferDTO(rec))
}

func (h *Handler) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	id := engine.OfferID(chi.URLParam(r, "id"))
	rec, err := h.Store.GetOfferRecord(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get offer", err)
		return
	}
	if rec.Status == engine.OfferAccepted {
		writeError(w, http.StatusBadRequest,
			"Accepted offers cannot be edited; use change-start-date", nil)
		return
	}

	var req UpdateOfferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.CandidateName != nil {
		rec.CandidateName = *req.CandidateName
	}
	if req.ProposedMonthlyCost != nil {
		if *req.ProposedMonthlyCost <= 0 {
			writeError(w, http.StatusBadRequest, "proposed_monthly_cost must be positive", nil)
			return
		}
		rec.ProposedMonthlyCost = decimal.NewFromFloat(*req.ProposedMonthlyCost)
	}
	if req.StartDate != nil {
		d, err := parseDate(*req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
			return
		}
		rec.StartDate = &d
	}
	if req.Notes != nil {
		rec.Notes = *req.Notes
	}

	if err := h.Store.SaveOffer(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update offer", err)
		return
	}

	h.audit(r, "offer.update", "offer", string(id), req)
	writeJSON(w, http.StatusOK, toOfferDTO(rec))
}

func (h *Handler) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	id := engine.OfferID(chi.URLParam(r, "id"))
	rec, err := h.Store.GetOfferRecord(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get offer", err)
		return
	}
	if rec.Status == engine.OfferAccepted {
		writeError(w, http.StatusBadRequest, "Accepted offers cannot be deleted", nil)
		return
	}
	if err := h.Store.DeleteOffer(r.Context(), id); err != nil {
		writeEngineError(w, "Failed to delete offer", err)
		return
	}
	h.audit(r, "offer.delete", "offer", string(id), nil)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// transitionOffer is the shared guard for lifecycle actions. It reports
// whether the transition was persisted; on false a response has already
// been written and callers must not act on the record.
func (h *Handler) transitionOffer(w http.ResponseWriter, r *http.Request,
	action string, allowed []engine.OfferStatus, to engine.OfferStatus,
	mutate func(*sqlite.OfferRecord) error) (sqlite.OfferRecord, bool) {

	id := engine.OfferID(chi.URLParam(r, "id"))
	rec, err := h.Store.GetOfferRecord(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get offer", err)
		return sqlite.OfferRecord{}, false
	}

	ok := false
	for _, s := range allowed {
		if rec.Status == s {
			ok = true
			break
		}
	}
	if !ok {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Cannot %s an offer in status %s", action, rec.Status), nil)
		return sqlite.OfferRecord{}, false
	}

	from := rec.Status
	rec.Status = to
	if mutate != nil {
		if err := mutate(&rec); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request", err)
			return sqlite.OfferRecord{}, false
		}
	}

	if err := h.Store.SaveOffer(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save offer", err)
		return sqlite.OfferRecord{}, false
	}

	h.audit(r, "offer."+action, "offer", string(id),
		map[string]string{"from": string(from), "to": string(to)})
	writeJSON(w, http.StatusOK, toOfferDTO(rec))
	return rec, true
}

func (h *Handler) ApproveOffer(w http.ResponseWriter, r *http.Request) {
	h.transitionOffer(w, r, "approve",
		[]engine.OfferStatus{engine.OfferProposed, engine.OfferHold},
		engine.OfferApproved, nil)
}

func (h *Handler) SendOffer(w http.ResponseWriter, r *http.Request) {
	h.transitionOffer(w, r, "send",
		[]engine.OfferStatus{engine.OfferApproved},
		engine.OfferSent, nil)
}

func (h *Handler) HoldOffer(w http.ResponseWriter, r *http.Request) {
	var req HoldOfferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	h.transitionOffer(w, r, "hold",
		[]engine.OfferStatus{engine.OfferProposed, engine.OfferApproved},
		engine.OfferHold, func(rec *sqlite.OfferRecord) error {
			rec.HoldReason = req.Reason
			if req.HoldUntil != nil {
				d, err := parseDate(*req.HoldUntil)
				if err != nil {
					return fmt.Errorf("invalid hold_until (use YYYY-MM-DD): %w", err)
				}
				rec.HoldUntil = &d
			}
			return nil
		})
}

func (h *Handler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	var req AcceptOfferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec, ok := h.transitionOffer(w, r, "accept",
		[]engine.OfferStatus{engine.OfferSent},
		engine.OfferAccepted, func(rec *sqlite.OfferRecord) error {
			// Final cost defaults to the proposed cost when the candidate
			// accepted without renegotiation.
			final := rec.ProposedMonthlyCost
			if req.FinalMonthlyCost != nil {
				if *req.FinalMonthlyCost <= 0 {
					return fmt.Errorf("final_monthly_cost must be positive")
				}
				final = decimal.NewFromFloat(*req.FinalMonthlyCost)
			}
			rec.FinalMonthlyCost = &final
			if req.StartDate != nil {
				d, err := parseDate(*req.StartDate)
				if err != nil {
					return fmt.Errorf("invalid start_date (use YYYY-MM-DD): %w", err)
				}
				rec.StartDate = &d
			}
			return nil
		})
	if !ok {
		return
	}

	// An accepted offer fills its requisition. Best effort only once the
	// offer write is confirmed; a stale requisition status is recoverable.
	rq, err := h.Store.GetRequisition(r.Context(), rec.RequisitionID)
	if err == nil && rq.Status != engine.ReqFilled {
		rq.Status = engine.ReqFilled
		if err := h.Store.SaveRequisition(r.Context(), rq); err != nil {
			h.Log.Error().Err(err).Str("requisition_id", string(rec.RequisitionID)).
				Msg("failed to mark requisition filled")
		}
	}
}

func (h *Handler) ChangeOfferStartDate(w http.ResponseWriter, r *http.Request) {
	id := engine.OfferID(chi.URLParam(r, "id"))
	rec, err := h.Store.GetOfferRecord(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get offer", err)
		return
	}
	if rec.Status == engine.OfferRejected || rec.Status == engine.OfferCancelled {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Cannot change start date of a %s offer", rec.Status), nil)
		return
	}

	var req ChangeStartDateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	d, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}

	old := ""
	if rec.StartDate != nil {
		old = rec.StartDate.Format("2006-01-02")
	}
	rec.StartDate = &d

	if err := h.Store.SaveOffer(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save offer", err)
		return
	}

	h.audit(r, "offer.change_start_date", "offer", string(id),
		map[string]string{"from": old, "to": req.StartDate})
	writeJSON(w, http.StatusOK, toOfferDTO(rec))
}

// =============================================================================
// SIMULATIONS
// =============================================================================

func (h *Handler) PreviewOfferImpact(w http.ResponseWriter, r *http.Request) {
	var req PreviewImpactRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ids := make([]engine.OfferID, 0, len(req.OfferIDs))
	for _, id := range req.OfferIDs {
		ids = append(ids, engine.OfferID(id))
	}
	if req.MonthsAhead == 0 {
		req.MonthsAhead = 6
	}

	impacts, err := h.Planner.PreviewOfferImpact(r.Context(), ids, req.MonthsAhead)
	if err != nil {
		writeEngineError(w, "Failed to preview offer impact", err)
		return
	}
	writeJSON(w, http.StatusOK, toImpactResultDTO(impacts))
}

func (h *Handler) PreviewNewPositions(w http.ResponseWriter, r *http.Request) {
	var req PreviewNewPositionsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.MonthsAhead == 0 {
		req.MonthsAhead = 6
	}

	positions := make([]engine.WhatIfPosition, 0, len(req.Positions))
	for i, p := range req.Positions {
		if p.MonthlyCost <= 0 {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("positions[%d].monthly_cost must be positive", i), nil)
			return
		}
		start, err := parseDate(p.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("positions[%d].start_date invalid (use YYYY-MM-DD)", i), err)
			return
		}
		pos := engine.WhatIfPosition{
			JobCatalogID: engine.JobCatalogID(p.JobCatalogID),
			MonthlyCost:  decimal.NewFromFloat(p.MonthlyCost),
			StartDate:    start,
		}
		if p.OverheadMultiplier != nil {
			m := decimal.NewFromFloat(*p.OverheadMultiplier)
			pos.OverheadMultiplier = &m
		}
		positions = append(positions, pos)
	}

	impacts, err := h.Planner.PreviewNewPositions(r.Context(),
		engine.OrgUnitID(req.OrgUnitID), positions, req.MonthsAhead)
	if err != nil {
		writeEngineError(w, "Failed to preview new positions", err)
		return
	}
	writeJSON(w, http.StatusOK, toImpactResultDTO(impacts))
}

// =============================================================================
// AUDIT / ADMIN
// =============================================================================

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit parameter", err)
		return
	}
	entries, err := h.Store.ListAudit(r.Context(), r.URL.Query().Get("entity_type"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list audit logs", err)
		return
	}
	dtos := make([]AuditEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, AuditEntryDTO{
			ID:         e.ID,
			Actor:      e.Actor,
			Action:     e.Action,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Changes:    e.Changes,
			CreatedAt:  e.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reset": true})
}
