package planner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/budget-engine/engine"
	"github.com/warp/budget-engine/planner"
	"github.com/warp/budget-engine/planner/store"
)

// fixedNow pins the clock to mid-January 2026 so windows are deterministic.
var fixedNow = func() time.Time {
	return time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC)
}

func d(s string) decimal.Decimal { return engine.MustDecimal(s) }

// seedStore builds an org unit with budgets, a forecast, one accepted offer
// and one proposed offer.
func seedStore(t *testing.T) *store.Memory {
	t.Helper()
	mem := store.NewMemory()

	mem.PutOrgUnit(engine.OrgUnit{
		ID: "unit-1", Name: "Platform", Currency: "BRL",
		OverheadMultiplier: d("1"), Active: true,
	})
	for _, month := range engine.Window("2025-12", 8) {
		mem.PutBudget(engine.Budget{OrgUnitID: "unit-1", Month: month, ApprovedAmount: d("50000")})
	}
	mem.PutForecast(engine.Forecast{OrgUnitID: "unit-1", Month: "2026-01", Amount: d("20000")})

	mem.PutRequisition(engine.Requisition{
		ID: "req-1", OrgUnitID: "unit-1", Title: "Backend Engineer",
		Status: engine.ReqOfferPending, EstimatedMonthlyCost: d("10000"),
		TargetStartMonth: "2026-02",
	})
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	mem.PutOffer(engine.Offer{
		ID: "offer-accepted", RequisitionID: "req-1", CandidateName: "Ana",
		Status: engine.OfferAccepted, ProposedMonthlyCost: d("10000"), StartDate: &start,
	})
	mem.PutOffer(engine.Offer{
		ID: "offer-proposed", RequisitionID: "req-1", CandidateName: "Bruno",
		Status: engine.OfferProposed, ProposedMonthlyCost: d("15000"), StartDate: &start,
	})
	return mem
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestGetMonthlySummary_WindowIsPastPlusCurrentPlusFuture(t *testing.T) {
	p := planner.NewWithClock(seedStore(t), fixedNow)

	months, err := p.GetMonthlySummary(context.Background(), "unit-1", 6)
	require.NoError(t, err)

	// 1 past month + current + 5 future = 7 entries, chronological.
	require.Len(t, months, 7)
	assert.Equal(t, engine.MonthKey("2025-12"), months[0].Month)
	assert.Equal(t, engine.MonthKey("2026-01"), months[1].Month)
	assert.Equal(t, engine.MonthKey("2026-06"), months[6].Month)
}

func TestGetMonthlySummary_OnlyCommittedOffersCount(t *testing.T) {
	p := planner.NewWithClock(seedStore(t), fixedNow)

	months, err := p.GetMonthlySummary(context.Background(), "unit-1", 2)
	require.NoError(t, err)

	// January: approved 50000, forecast baseline 20000, accepted offer 10000.
	// The proposed offer must not count.
	jan := months[1]
	require.Equal(t, engine.MonthKey("2026-01"), jan.Month)
	assert.True(t, jan.Committed.Equal(d("10000")), "committed = %s", jan.Committed)
	assert.True(t, jan.Remaining.Equal(d("20000")), "remaining = %s", jan.Remaining)
	assert.Equal(t, engine.SourceForecast, jan.BaselineSource)
}

func TestGetMonthlySummary_UnknownOrgUnit(t *testing.T) {
	p := planner.NewWithClock(seedStore(t), fixedNow)

	_, err := p.GetMonthlySummary(context.Background(), "nope", 3)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestGetMonthlySummary_HorizonBounds(t *testing.T) {
	p := planner.NewWithClock(seedStore(t), fixedNow)

	_, err := p.GetMonthlySummary(context.Background(), "unit-1", 0)
	assert.ErrorIs(t, err, engine.ErrInvalidRequest)

	_, err = p.GetMonthlySummary(context.Background(), "unit-1", planner.MaxWindowMonths+1)
	assert.ErrorIs(t, err, engine.ErrInvalidRequest)
}

// =============================================================================
// OFFER IMPACT PREVIEW
// =============================================================================

func TestPreviewOfferImpact_BeforeAndAfter(t *testing.T) {
	p := planner.NewWithClock(seedStore(t), fixedNow)

	impacts, err := p.PreviewOfferImpact(context.Background(), []engine.OfferID{"offer-proposed"}, 3)
	require.NoError(t, err)
	require.Len(t, impacts, 3)

	// January before: 50000 - 20000 - 10000 = 20000. The candidate adds
	// its full 15000 (starts Jan 1, overhead 1).
	jan := impacts[0]
	assert.Equal(t, engine.MonthKey("2026-01"), jan.Month)
	assert.True(t, jan.RemainingBefore.Equal(d("20000")), "before = %s", jan.RemainingBefore)
	assert.True(t, jan.RemainingAfter.Equal(d("5000")), "after = %s", jan.RemainingAfter)
	assert.True(t, jan.Delta.Equal(d("-15000")), "delta = %s", jan.Delta)
	assert.Equal(t, engine.StatusGreen, jan.StatusBefore)
	assert.Equal(t, engine.StatusYellow, jan.StatusAfter) // 5000 < 20% of 50000
}

func TestPreviewOfferImpact_UnknownOfferID_NoPartialResult(t *testing.T) {
	p := planner.NewWithClock(seedStore(t), fixedNow)

	impacts, err := p.PreviewOfferImpact(context.Background(), []engine.OfferID{"offer-proposed", "ghost"}, 3)
	assert.ErrorIs(t, err, engine.ErrInvalidRequest)
	assert.Nil(t, impacts)

	var unknown *engine.UnknownOffersError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, []engine.OfferID{"ghost"}, unknown.OfferIDs)
}

func TestPreviewOfferImpact_EmptyIDs(t *testing.T) {
	p := planner.NewWithClock(seedStore(t), fixedNow)

	_, err := p.PreviewOfferImpact(context.Background(), nil, 3)
	assert.ErrorIs(t, err, engine.ErrInvalidRequest)
}

func TestPreviewOfferImpact_NonPositiveHorizon(t *testing.T) {
	p := planner.NewWithClock(seedStore(t), fixedNow)

	_, err := p.PreviewOfferImpact(context.Background(), []engine.OfferID{"offer-proposed"}, 0)
	assert.ErrorIs(t, err, engine.ErrInvalidRequest)
}

// =============================================================================
// WHAT-IF PREVIEW
// =============================================================================

func TestPreviewNewPositions_NeverLeaksIntoSummaries(t *testing.T) {
	mem := seedStore(t)
	p := planner.NewWithClock(mem, fixedNow)
	ctx := context.Background()

	before, err := p.GetMonthlySummary(ctx, "unit-1", 3)
	require.NoError(t, err)

	_, err = p.PreviewNewPositions(ctx, "unit-1", []engine.WhatIfPosition{
		{MonthlyCost: d("99999"), StartDate: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}, 3)
	require.NoError(t, err)

	after, err := p.GetMonthlySummary(ctx, "unit-1", 3)
	require.NoError(t, err)

	require.Len(t, after, len(before))
	for i := range before {
		assert.True(t, before[i].Remaining.Equal(after[i].Remaining),
			"month %s changed after a what-if preview", before[i].Month)
	}
}

func TestPreviewNewPositions_EmptyPositions(t *testing.T) {
	p := planner.NewWithClock(seedStore(t), fixedNow)

	_, err := p.PreviewNewPositions(context.Background(), "unit-1", nil, 3)
	assert.ErrorIs(t, err, engine.ErrInvalidRequest)
}

func TestPreviewNewPositions_UnknownOrgUnit(t *testing.T) {
	p := planner.NewWithClock(seedStore(t), fixedNow)

	_, err := p.PreviewNewPositions(context.Background(), "nope", []engine.WhatIfPosition{
		{MonthlyCost: d("1000"), StartDate: fixedNow()},
	}, 3)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}
