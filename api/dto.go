/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  All monetary response fields are float64 rounded to the currency minor
  unit (2 decimal places). Rounding happens HERE and only here; the engine
  and planner carry full decimal precision end to end.

DATES:
  Dates are "YYYY-MM-DD" strings, months are "YYYY-MM" strings on the wire.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/money.go: RoundMinor
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/budget-engine/engine"
	"github.com/warp/budget-engine/store/sqlite"
)

// =============================================================================
// ORG UNITS
// =============================================================================

// OrgUnitDTO represents an org unit in API responses.
type OrgUnitDTO struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Currency           string  `json:"currency"`
	OverheadMultiplier float64 `json:"overhead_multiplier"`
	Active             bool    `json:"active"`
}

// CreateOrgUnitRequest is the request to create an org unit.
type CreateOrgUnitRequest struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Currency           string  `json:"currency"`
	OverheadMultiplier float64 `json:"overhead_multiplier"`
}

// UpdateOrgUnitRequest carries partial updates; nil fields are untouched.
type UpdateOrgUnitRequest struct {
	Name               *string  `json:"name"`
	Currency           *string  `json:"currency"`
	OverheadMultiplier *float64 `json:"overhead_multiplier"`
	Active             *bool    `json:"active"`
}

// =============================================================================
// BUDGETS / FORECASTS / ACTUALS
// =============================================================================

type BudgetDTO struct {
	OrgUnitID      string  `json:"org_unit_id"`
	Month          string  `json:"month"`
	ApprovedAmount float64 `json:"approved_amount"`
	Currency       string  `json:"currency"`
	Locked         bool    `json:"locked"`
}

type UpsertBudgetRequest struct {
	Month          string  `json:"month"`
	ApprovedAmount float64 `json:"approved_amount"`
	Currency       string  `json:"currency"`
}

type LockMonthRequest struct {
	Month string `json:"month"`
}

type ForecastDTO struct {
	OrgUnitID string  `json:"org_unit_id"`
	Month     string  `json:"month"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Source    string  `json:"source,omitempty"`
}

type UpsertForecastRequest struct {
	Month    string  `json:"month"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Source   string  `json:"source"`
}

type ActualDTO struct {
	OrgUnitID string  `json:"org_unit_id"`
	Month     string  `json:"month"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Finalized bool    `json:"finalized"`
}

type UpsertActualRequest struct {
	Month     string  `json:"month"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Finalized bool    `json:"finalized"`
}

// =============================================================================
// JOB CATALOG
// =============================================================================

type JobCatalogDTO struct {
	ID             string  `json:"id"`
	JobFamily      string  `json:"job_family"`
	Level          string  `json:"level"`
	Title          string  `json:"title"`
	MonthlyCost    float64 `json:"monthly_cost"`
	HierarchyLevel int     `json:"hierarchy_level"`
	Currency       string  `json:"currency"`
	Active         bool    `json:"active"`
}

type CreateJobCatalogRequest struct {
	JobFamily      string  `json:"job_family"`
	Level          string  `json:"level"`
	Title          string  `json:"title"`
	MonthlyCost    float64 `json:"monthly_cost"`
	HierarchyLevel int     `json:"hierarchy_level"`
	Currency       string  `json:"currency"`
}

type UpdateJobCatalogRequest struct {
	Title       *string  `json:"title"`
	MonthlyCost *float64 `json:"monthly_cost"`
	Active      *bool    `json:"active"`
}

// =============================================================================
// REQUISITIONS
// =============================================================================

type RequisitionDTO struct {
	ID                   string  `json:"id"`
	OrgUnitID            string  `json:"org_unit_id"`
	JobCatalogID         string  `json:"job_catalog_id,omitempty"`
	Title                string  `json:"title"`
	Status               string  `json:"status"`
	Priority             string  `json:"priority"`
	EstimatedMonthlyCost float64 `json:"estimated_monthly_cost"`
	TargetStartMonth     string  `json:"target_start_month"`
	Headcount            int     `json:"headcount"`
}

type CreateRequisitionRequest struct {
	OrgUnitID            string  `json:"org_unit_id"`
	JobCatalogID         string  `json:"job_catalog_id"`
	Title                string  `json:"title"`
	Priority             string  `json:"priority"`
	EstimatedMonthlyCost float64 `json:"estimated_monthly_cost"`
	TargetStartMonth     string  `json:"target_start_month"`
	Headcount            int     `json:"headcount"`
}

type UpdateRequisitionRequest struct {
	Title                *string  `json:"title"`
	Priority             *string  `json:"priority"`
	EstimatedMonthlyCost *float64 `json:"estimated_monthly_cost"`
	TargetStartMonth     *string  `json:"target_start_month"`
	Headcount            *int     `json:"headcount"`
}

type TransitionRequest struct {
	Status string `json:"status"`
}

// =============================================================================
// OFFERS
// =============================================================================

type OfferDTO struct {
	ID                  string   `json:"id"`
	RequisitionID       string   `json:"requisition_id"`
	CandidateName       string   `json:"candidate_name"`
	Status              string   `json:"status"`
	ProposedMonthlyCost float64  `json:"proposed_monthly_cost"`
	FinalMonthlyCost    *float64 `json:"final_monthly_cost,omitempty"`
	Currency            string   `json:"currency"`
	StartDate           *string  `json:"start_date,omitempty"`
	HoldReason          string   `json:"hold_reason,omitempty"`
	HoldUntil           *string  `json:"hold_until,omitempty"`
	Notes               string   `json:"notes,omitempty"`
}

type CreateOfferRequest struct {
	RequisitionID       string  `json:"requisition_id"`
	CandidateName       string  `json:"candidate_name"`
	ProposedMonthlyCost float64 `json:"proposed_monthly_cost"`
	Currency            string  `json:"currency"`
	StartDate           *string `json:"start_date"`
	Notes               string  `json:"notes"`
}

type UpdateOfferRequest struct {
	CandidateName       *string  `json:"candidate_name"`
	ProposedMonthlyCost *float64 `json:"proposed_monthly_cost"`
	StartDate           *string  `json:"start_date"`
	Notes               *string  `json:"notes"`
}

type HoldOfferRequest struct {
	Reason    string  `json:"reason"`
	HoldUntil *string `json:"hold_until"`
}

type AcceptOfferRequest struct {
	FinalMonthlyCost *float64 `json:"final_monthly_cost"`
	StartDate        *string  `json:"start_date"`
}

type ChangeStartDateRequest struct {
	StartDate string `json:"start_date"`
}

// =============================================================================
// PROJECTIONS
// =============================================================================

// MonthHealthDTO is one row of a monthly summary.
type MonthHealthDTO struct {
	Month             string  `json:"month"`
	Approved          float64 `json:"approved"`
	Baseline          float64 `json:"baseline"`
	BaselineSource    string  `json:"baseline_source"`
	Committed         float64 `json:"committed"`
	PipelinePotential float64 `json:"pipeline_potential"`
	Remaining         float64 `json:"remaining"`
	Status            string  `json:"status"`
}

// MonthImpactDTO is one row of a before/after simulation.
type MonthImpactDTO struct {
	Month           string  `json:"month"`
	RemainingBefore float64 `json:"remaining_before"`
	RemainingAfter  float64 `json:"remaining_after"`
	Delta           float64 `json:"delta"`
	StatusBefore    string  `json:"status_before"`
	StatusAfter     string  `json:"status_after"`
	IsBottleneck    bool    `json:"is_bottleneck"`
}

// ImpactResultDTO wraps a simulation run. BottleneckMonth is the first
// month the addition pushes into the red, nil when the plan stays safe.
type ImpactResultDTO struct {
	Impacts         []MonthImpactDTO `json:"impacts"`
	BottleneckMonth *string          `json:"bottleneck_month"`
}

type PreviewImpactRequest struct {
	OfferIDs    []string `json:"offer_ids"`
	MonthsAhead int      `json:"months_ahead"`
}

type WhatIfPositionRequest struct {
	JobCatalogID       string   `json:"job_catalog_id"`
	MonthlyCost        float64  `json:"monthly_cost"`
	StartDate          string   `json:"start_date"`
	OverheadMultiplier *float64 `json:"overhead_multiplier"`
}

type PreviewNewPositionsRequest struct {
	OrgUnitID   string                  `json:"org_unit_id"`
	Positions   []WhatIfPositionRequest `json:"positions"`
	MonthsAhead int                     `json:"months_ahead"`
}

// =============================================================================
// AUDIT / SCENARIOS / ERRORS
// =============================================================================

type AuditEntryDTO struct {
	ID         string `json:"id"`
	Actor      string `json:"actor"`
	Action     string `json:"action"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Changes    string `json:"changes,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// money rounds to the minor unit and converts for JSON. The only place
// precision is dropped.
func money(d decimal.Decimal) float64 {
	return engine.RoundMinor(d).InexactFloat64()
}

func moneyPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := money(*d)
	return &f
}

func datePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

func toOrgUnitDTO(u engine.OrgUnit) OrgUnitDTO {
	return OrgUnitDTO{
		ID:                 string(u.ID),
		Name:               u.Name,
		Currency:           u.Currency,
		OverheadMultiplier: u.OverheadMultiplier.InexactFloat64(),
		Active:             u.Active,
	}
}

func toBudgetDTO(b engine.Budget) BudgetDTO {
	return BudgetDTO{
		OrgUnitID:      string(b.OrgUnitID),
		Month:          string(b.Month),
		ApprovedAmount: money(b.ApprovedAmount),
		Currency:       b.Currency,
		Locked:         b.Locked,
	}
}

func toForecastDTO(f engine.Forecast) ForecastDTO {
	return ForecastDTO{
		OrgUnitID: string(f.OrgUnitID),
		Month:     string(f.Month),
		Amount:    money(f.Amount),
		Currency:  f.Currency,
		Source:    f.Source,
	}
}

func toActualDTO(a engine.Actual) ActualDTO {
	return ActualDTO{
		OrgUnitID: string(a.OrgUnitID),
		Month:     string(a.Month),
		Amount:    money(a.Amount),
		Currency:  a.Currency,
		Finalized: a.Finalized,
	}
}

func toJobCatalogDTO(e sqlite.JobCatalogEntry) JobCatalogDTO {
	return JobCatalogDTO{
		ID:             string(e.ID),
		JobFamily:      e.JobFamily,
		Level:          e.Level,
		Title:          e.Title,
		MonthlyCost:    money(e.MonthlyCost),
		HierarchyLevel: e.HierarchyLevel,
		Currency:       e.Currency,
		Active:         e.Active,
	}
}

func toRequisitionDTO(q engine.Requisition) RequisitionDTO {
	return RequisitionDTO{
		ID:                   string(q.ID),
		OrgUnitID:            string(q.OrgUnitID),
		JobCatalogID:         string(q.JobCatalogID),
		Title:                q.Title,
		Status:               string(q.Status),
		Priority:             string(q.Priority),
		EstimatedMonthlyCost: money(q.EstimatedMonthlyCost),
		TargetStartMonth:     string(q.TargetStartMonth),
		Headcount:            q.Headcount,
	}
}

func toOfferDTO(o sqlite.OfferRecord) OfferDTO {
	dto := OfferDTO{
		ID:                  string(o.ID),
		RequisitionID:       string(o.RequisitionID),
		CandidateName:       o.CandidateName,
		Status:              string(o.Status),
		ProposedMonthlyCost: money(o.ProposedMonthlyCost),
		FinalMonthlyCost:    moneyPtr(o.FinalMonthlyCost),
		Currency:            o.Currency,
		StartDate:           datePtr(o.StartDate),
		HoldReason:          o.HoldReason,
		Notes:               o.Notes,
	}
	if o.HoldUntil != nil {
		s := o.HoldUntil.Format("2006-01-02")
		dto.HoldUntil = &s
	}
	return dto
}

func toMonthHealthDTO(m engine.MonthHealth) MonthHealthDTO {
	return MonthHealthDTO{
		Month:             string(m.Month),
		Approved:          money(m.Approved),
		Baseline:          money(m.Baseline),
		BaselineSource:    string(m.BaselineSource),
		Committed:         money(m.Committed),
		PipelinePotential: money(m.PipelinePotential),
		Remaining:         money(m.Remaining),
		Status:            string(m.Status),
	}
}

func toImpactResultDTO(impacts []engine.MonthImpact) ImpactResultDTO {
	out := ImpactResultDTO{Impacts: make([]MonthImpactDTO, 0, len(impacts))}
	for _, im := range impacts {
		dto := MonthImpactDTO{
			Month:           string(im.Month),
			RemainingBefore: money(im.RemainingBefore),
			RemainingAfter:  money(im.RemainingAfter),
			Delta:           money(im.Delta),
			StatusBefore:    string(im.StatusBefore),
			StatusAfter:     string(im.StatusAfter),
			IsBottleneck:    im.IsBottleneck,
		}
		if im.IsBottleneck && out.BottleneckMonth == nil {
			m := string(im.Month)
			out.BottleneckMonth = &m
		}
		out.Impacts = append(out.Impacts, dto)
	}
	return out
}
