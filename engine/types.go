/*
Package engine provides the core headcount budget projection engine.

PURPOSE:
  This package contains the pure calculation logic for budget planning:
  given monthly budget/forecast/actual records and a set of committed or
  hypothetical hires, it computes per-month financial health and simulates
  the impact of approving offers before any money is committed.

KEY CONCEPTS IN THIS FILE (types.go):
  - OrgUnit: organizational unit with an overhead multiplier
  - Budget/Forecast/Actual: monthly financial records, at most one per
    (org unit, month)
  - Offer/Requisition: hiring commitments with cost and start point
  - WhatIfPosition: hypothetical hire used purely for simulation
  - MonthHealth/MonthImpact: derived, immutable outputs

DESIGN PRINCIPLES:
  1. Purity: every entry point is a function of its explicit inputs.
     No caching, no shared state, safe under concurrent calls.
  2. Precision: uses decimal.Decimal; monetary values are rounded to the
     currency minor unit only at presentation time, never mid-computation.
  3. Ownership: all inputs are owned by the persistence layer. The engine
     never mutates them; outputs are recomputed fresh on every call.

USAGE:
  builder := engine.SummaryBuilder{}
  months, _ := builder.BuildSummary(engine.SummaryInput{
      OrgUnit: unit,
      Window:  engine.Window(engine.MustParseMonth("2026-01"), 6),
      Budgets: budgets, Forecasts: forecasts, Actuals: actuals,
      Offers: offers, Requisitions: reqs,
  })

SEE ALSO:
  - month.go:      MonthKey and calendar arithmetic
  - baseline.go:   actual > forecast > none resolution
  - commitment.go: committed and pipeline sums
  - health.go:     GREEN/YELLOW/RED classification
  - summary.go:    per-month assembly
  - impact.go:     before/after simulation and bottleneck detection
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OrgUnitID string
type OfferID string
type RequisitionID string
type JobCatalogID string

// =============================================================================
// ORG UNIT - Read-only configuration input
// =============================================================================

// DefaultOverheadMultiplier is applied when an org unit carries no explicit
// multiplier. It is a documented constant rather than a silent 1.0: raw role
// cost understates real spend (benefits, taxes), and an accidental 1.0 would
// make every projection look healthier than it is.
var DefaultOverheadMultiplier = decimal.NewFromFloat(1.8)

// OrgUnit is the planning scope. The engine treats it as read-only input;
// creation and edits belong to the persistence layer.
type OrgUnit struct {
	ID                 OrgUnitID
	Name               string
	Currency           string
	OverheadMultiplier decimal.Decimal // zero value means "unset"
	Active             bool
}

// Overhead returns the effective overhead multiplier, falling back to
// DefaultOverheadMultiplier when unset. Returns ErrConfiguration for a
// negative multiplier.
func (u OrgUnit) Overhead() (decimal.Decimal, error) {
	if u.OverheadMultiplier.IsZero() {
		return DefaultOverheadMultiplier, nil
	}
	if u.OverheadMultiplier.IsNegative() {
		return decimal.Zero, &ConfigurationError{
			OrgUnitID: u.ID,
			Field:     "overhead_multiplier",
			Message:   "must be >= 0",
		}
	}
	return u.OverheadMultiplier, nil
}

// =============================================================================
// MONTHLY FINANCIAL RECORDS
// =============================================================================

// Budget is the approved spend for one org unit and month.
// At most one per (org unit, month).
type Budget struct {
	OrgUnitID      OrgUnitID
	Month          MonthKey
	ApprovedAmount decimal.Decimal
	Currency       string
	Locked         bool
}

// Forecast is predicted spend; used as baseline only when no Actual exists.
type Forecast struct {
	OrgUnitID OrgUnitID
	Month     MonthKey
	Amount    decimal.Decimal
	Currency  string
	Source    string
}

// Actual is realized spend. It outranks a Forecast even when not finalized,
// since an unfinalized actual is still the best current estimate.
type Actual struct {
	OrgUnitID OrgUnitID
	Month     MonthKey
	Amount    decimal.Decimal
	Currency  string
	Finalized bool
}

// =============================================================================
// COMMITMENT ITEMS - Offers, requisitions, hypothetical positions
// =============================================================================

type OfferStatus string

const (
	OfferDraft     OfferStatus = "DRAFT"
	OfferProposed  OfferStatus = "PROPOSED"
	OfferApproved  OfferStatus = "APPROVED"
	OfferSent      OfferStatus = "SENT"
	OfferAccepted  OfferStatus = "ACCEPTED"
	OfferRejected  OfferStatus = "REJECTED"
	OfferHold      OfferStatus = "HOLD"
	OfferCancelled OfferStatus = "CANCELLED"
)

// Committed reports whether an offer in this status counts as committed
// spend. APPROVED counts alongside ACCEPTED: the money is promised the
// moment a manager approves, not when the candidate signs.
func (s OfferStatus) Committed() bool {
	return s == OfferAccepted || s == OfferApproved
}

// Offer is a concrete candidate offer tied to a requisition.
// StartDate == nil means the start is not pinned yet; such offers charge
// their full cost to every month of the window (see CommittedForMonth).
type Offer struct {
	ID                  OfferID
	RequisitionID       RequisitionID
	CandidateName       string
	Status              OfferStatus
	ProposedMonthlyCost decimal.Decimal
	FinalMonthlyCost    *decimal.Decimal
	Currency            string
	StartDate           *time.Time
}

// MonthlyCost prefers the negotiated final cost over the proposed one.
func (o Offer) MonthlyCost() decimal.Decimal {
	if o.FinalMonthlyCost != nil {
		return *o.FinalMonthlyCost
	}
	return o.ProposedMonthlyCost
}

type RequisitionStatus string

const (
	ReqDraft        RequisitionStatus = "DRAFT"
	ReqOpen         RequisitionStatus = "OPEN"
	ReqInterviewing RequisitionStatus = "INTERVIEWING"
	ReqOfferPending RequisitionStatus = "OFFER_PENDING"
	ReqFilled       RequisitionStatus = "FILLED"
	ReqCancelled    RequisitionStatus = "CANCELLED"
)

// InPipeline reports whether a requisition counts toward pipeline potential.
func (s RequisitionStatus) InPipeline() bool {
	return s == ReqOpen || s == ReqInterviewing
}

type RequisitionPriority string

const (
	PriorityP0 RequisitionPriority = "P0"
	PriorityP1 RequisitionPriority = "P1"
	PriorityP2 RequisitionPriority = "P2"
	PriorityP3 RequisitionPriority = "P3"
)

// Requisition is an open hiring need, not yet a commitment.
type Requisition struct {
	ID                   RequisitionID
	OrgUnitID            OrgUnitID
	JobCatalogID         JobCatalogID
	Title                string
	Status               RequisitionStatus
	Priority             RequisitionPriority
	EstimatedMonthlyCost decimal.Decimal
	TargetStartMonth     MonthKey
	Headcount            int
}

// WhatIfPosition is a hypothetical hire for simulation only. It is never
// persisted and never affects real data. OverheadMultiplier, when set,
// overrides the org unit's multiplier for this position.
type WhatIfPosition struct {
	JobCatalogID       JobCatalogID
	MonthlyCost        decimal.Decimal
	StartDate          time.Time
	OverheadMultiplier *decimal.Decimal
}

// =============================================================================
// DERIVED OUTPUTS - Recomputed on every request, never stored
// =============================================================================

// BaselineSource tags where a month's baseline came from, so callers can
// distinguish "zero because confirmed" from "zero because unknown".
type BaselineSource string

const (
	SourceActual   BaselineSource = "actual"
	SourceForecast BaselineSource = "forecast"
	SourceNone     BaselineSource = "none"
)

// MonthHealth is the full per-month financial picture for one org unit.
type MonthHealth struct {
	Month             MonthKey
	Approved          decimal.Decimal
	Baseline          decimal.Decimal
	BaselineSource    BaselineSource
	Committed         decimal.Decimal
	PipelinePotential decimal.Decimal
	Remaining         decimal.Decimal
	Status            HealthStatus
}

// MonthImpact compares a month before and after a simulated approval.
type MonthImpact struct {
	Month           MonthKey
	RemainingBefore decimal.Decimal
	RemainingAfter  decimal.Decimal
	Delta           decimal.Decimal // RemainingAfter - RemainingBefore, <= 0 when adding cost
	StatusBefore    HealthStatus
	StatusAfter     HealthStatus
	IsBottleneck    bool
}
