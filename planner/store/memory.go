// Package store provides planner.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/budget-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	orgUnits     map[engine.OrgUnitID]engine.OrgUnit
	budgets      map[engine.OrgUnitID]map[engine.MonthKey]engine.Budget
	forecasts    map[engine.OrgUnitID]map[engine.MonthKey]engine.Forecast
	actuals      map[engine.OrgUnitID]map[engine.MonthKey]engine.Actual
	requisitions map[engine.RequisitionID]engine.Requisition
	offers       map[engine.OfferID]engine.Offer
}

func NewMemory() *Memory {
	return &Memory{
		orgUnits:     make(map[engine.OrgUnitID]engine.OrgUnit),
		budgets:      make(map[engine.OrgUnitID]map[engine.MonthKey]engine.Budget),
		forecasts:    make(map[engine.OrgUnitID]map[engine.MonthKey]engine.Forecast),
		actuals:      make(map[engine.OrgUnitID]map[engine.MonthKey]engine.Actual),
		requisitions: make(map[engine.RequisitionID]engine.Requisition),
		offers:       make(map[engine.OfferID]engine.Offer),
	}
}

// -----------------------------------------------------------------------------
// Writes (upsert semantics; at most one budget/forecast/actual per month)
// -----------------------------------------------------------------------------

func (m *Memory) PutOrgUnit(u engine.OrgUnit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgUnits[u.ID] = u
}

func (m *Memory) PutBudget(b engine.Budget) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.budgets[b.OrgUnitID] == nil {
		m.budgets[b.OrgUnitID] = make(map[engine.MonthKey]engine.Budget)
	}
	m.budgets[b.OrgUnitID][b.Month] = b
}

func (m *Memory) PutForecast(f engine.Forecast) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forecasts[f.OrgUnitID] == nil {
		m.forecasts[f.OrgUnitID] = make(map[engine.MonthKey]engine.Forecast)
	}
	m.forecasts[f.OrgUnitID][f.Month] = f
}

func (m *Memory) PutActual(a engine.Actual) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.actuals[a.OrgUnitID] == nil {
		m.actuals[a.OrgUnitID] = make(map[engine.MonthKey]engine.Actual)
	}
	m.actuals[a.OrgUnitID][a.Month] = a
}

func (m *Memory) PutRequisition(r engine.Requisition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requisitions[r.ID] = r
}

func (m *Memory) PutOffer(o engine.Offer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[o.ID] = o
}

// -----------------------------------------------------------------------------
// planner.Store
// -----------------------------------------------------------------------------

func (m *Memory) GetOrgUnit(_ context.Context, id engine.OrgUnitID) (engine.OrgUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.orgUnits[id]
	if !ok {
		return engine.OrgUnit{}, &engine.NotFoundError{Kind: "org unit", ID: string(id)}
	}
	return u, nil
}

func (m *Memory) ListBudgets(_ context.Context, orgUnitID engine.OrgUnitID) ([]engine.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Budget, 0, len(m.budgets[orgUnitID]))
	for _, b := range m.budgets[orgUnitID] {
		out = append(out, b)
	}
	sortByMonth(out, func(b engine.Budget) engine.MonthKey { return b.Month })
	return out, nil
}

func (m *Memory) ListForecasts(_ context.Context, orgUnitID engine.OrgUnitID) ([]engine.Forecast, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Forecast, 0, len(m.forecasts[orgUnitID]))
	for _, f := range m.forecasts[orgUnitID] {
		out = append(out, f)
	}
	sortByMonth(out, func(f engine.Forecast) engine.MonthKey { return f.Month })
	return out, nil
}

func (m *Memory) ListActuals(_ context.Context, orgUnitID engine.OrgUnitID) ([]engine.Actual, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Actual, 0, len(m.actuals[orgUnitID]))
	for _, a := range m.actuals[orgUnitID] {
		out = append(out, a)
	}
	sortByMonth(out, func(a engine.Actual) engine.MonthKey { return a.Month })
	return out, nil
}

func (m *Memory) ListOffersByOrgUnit(_ context.Context, orgUnitID engine.OrgUnitID) ([]engine.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Offer
	for _, o := range m.offers {
		req, ok := m.requisitions[o.RequisitionID]
		if ok && req.OrgUnitID == orgUnitID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListRequisitionsByOrgUnit(_ context.Context, orgUnitID engine.OrgUnitID) ([]engine.Requisition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Requisition
	for _, r := range m.requisitions {
		if r.OrgUnitID == orgUnitID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetOffer(_ context.Context, id engine.OfferID) (engine.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.offers[id]
	if !ok {
		return engine.Offer{}, &engine.NotFoundError{Kind: "offer", ID: string(id)}
	}
	return o, nil
}

func (m *Memory) GetRequisition(_ context.Context, id engine.RequisitionID) (engine.Requisition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requisitions[id]
	if !ok {
		return engine.Requisition{}, &engine.NotFoundError{Kind: "requisition", ID: string(id)}
	}
	return r, nil
}

func sortByMonth[T any](items []T, month func(T) engine.MonthKey) {
	sort.Slice(items, func(i, j int) bool { return month(items[i]) < month(items[j]) })
}
