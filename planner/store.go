/*
store.go - Persistence interface consumed by the planner

PURPOSE:
  The planner needs read access to the records the engine computes over.
  It defines the interface it consumes; implementations live elsewhere
  (store/sqlite for production, planner/store for in-memory testing).

OWNERSHIP:
  The store owns all record lifecycles. The engine never fetches, the
  planner never writes: loading happens here, computing happens in engine.
*/
package planner

import (
	"context"

	"github.com/warp/budget-engine/engine"
)

// Store is the read surface the planner requires.
type Store interface {
	// GetOrgUnit returns the org unit or engine.ErrNotFound.
	GetOrgUnit(ctx context.Context, id engine.OrgUnitID) (engine.OrgUnit, error)

	// ListBudgets returns all budgets for the org unit, any order.
	ListBudgets(ctx context.Context, orgUnitID engine.OrgUnitID) ([]engine.Budget, error)

	// ListForecasts returns all forecasts for the org unit.
	ListForecasts(ctx context.Context, orgUnitID engine.OrgUnitID) ([]engine.Forecast, error)

	// ListActuals returns all actuals for the org unit.
	ListActuals(ctx context.Context, orgUnitID engine.OrgUnitID) ([]engine.Actual, error)

	// ListOffersByOrgUnit returns every offer whose requisition belongs
	// to the org unit, whatever its status.
	ListOffersByOrgUnit(ctx context.Context, orgUnitID engine.OrgUnitID) ([]engine.Offer, error)

	// ListRequisitionsByOrgUnit returns every requisition of the org unit.
	ListRequisitionsByOrgUnit(ctx context.Context, orgUnitID engine.OrgUnitID) ([]engine.Requisition, error)

	// GetOffer returns the offer or engine.ErrNotFound.
	GetOffer(ctx context.Context, id engine.OfferID) (engine.Offer, error)

	// GetRequisition returns the requisition or engine.ErrNotFound.
	GetRequisition(ctx context.Context, id engine.RequisitionID) (engine.Requisition, error)
}
