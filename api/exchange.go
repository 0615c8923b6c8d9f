/*
exchange.go - CSV export and import endpoints

PURPOSE:
  Bulk data exchange with spreadsheets, which is how finance teams
  actually move budget numbers around. Exports stream text/csv; imports
  accept a CSV body and upsert row by row.

FORMATS:
  org-units:   id,name,currency,overhead_multiplier,active
  job-catalog: id,job_family,level,title,monthly_cost,hierarchy_level,currency,active
  budgets:     org_unit_id,month,approved_amount,currency
  actuals:     org_unit_id,month,amount,currency,finalized

IMPORT SEMANTICS:
  - First row must be the header above (validated by column count only).
  - Rows are upserted in order; the first bad row aborts with 400 and
    reports its line number. Earlier rows stay written: imports are not
    transactional, matching how partial spreadsheet loads get fixed in
    practice (re-run the corrected file).
  - Budget imports respect month locks.

SEE ALSO:
  - server.go: /api/export and /api/import routes
*/
package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/budget-engine/engine"
	"github.com/warp/budget-engine/store/sqlite"
)

// =============================================================================
// EXPORTS
// =============================================================================

func writeCSV(w http.ResponseWriter, filename string, header []string, rows [][]string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	cw := csv.NewWriter(w)
	cw.Write(header)
	cw.WriteAll(rows)
}

func (h *Handler) ExportOrgUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.Store.ListOrgUnits(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list org units", err)
		return
	}
	rows := make([][]string, 0, len(units))
	for _, u := range units {
		rows = append(rows, []string{
			string(u.ID), u.Name, u.Currency,
			u.OverheadMultiplier.String(), strconv.FormatBool(u.Active),
		})
	}
	writeCSV(w, "org-units.csv",
		[]string{"id", "name", "currency", "overhead_multiplier", "active"}, rows)
}

func (h *Handler) ExportJobCatalog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.ListJobCatalog(r.Context(), true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list job catalog", err)
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			string(e.ID), e.JobFamily, e.Level, e.Title,
			e.MonthlyCost.String(), strconv.Itoa(e.HierarchyLevel),
			e.Currency, strconv.FormatBool(e.Active),
		})
	}
	writeCSV(w, "job-catalog.csv",
		[]string{"id", "job_family", "level", "title", "monthly_cost", "hierarchy_level", "currency", "active"},
		rows)
}

func (h *Handler) ExportBudgets(w http.ResponseWriter, r *http.Request) {
	id := engine.OrgUnitID(chi.URLParam(r, "id"))
	budgets, err := h.Store.ListBudgets(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list budgets", err)
		return
	}
	rows := make([][]string, 0, len(budgets))
	for _, b := range budgets {
		rows = append(rows, []string{
			string(b.OrgUnitID), string(b.Month), b.ApprovedAmount.String(), b.Currency,
		})
	}
	writeCSV(w, fmt.Sprintf("budgets-%s.csv", id),
		[]string{"org_unit_id", "month", "approved_amount", "currency"}, rows)
}

func (h *Handler) ExportActuals(w http.ResponseWriter, r *http.Request) {
	id := engine.OrgUnitID(chi.URLParam(r, "id"))
	actuals, err := h.Store.ListActuals(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list actuals", err)
		return
	}
	rows := make([][]string, 0, len(actuals))
	for _, a := range actuals {
		rows = append(rows, []string{
			string(a.OrgUnitID), string(a.Month), a.Amount.String(),
			a.Currency, strconv.FormatBool(a.Finalized),
		})
	}
	writeCSV(w, fmt.Sprintf("actuals-%s.csv", id),
		[]string{"org_unit_id", "month", "amount", "currency", "finalized"}, rows)
}

// =============================================================================
// IMPORTS
// =============================================================================

// readCSVBody parses the request body, validating the column count.
// Returns data rows only (header stripped).
func readCSVBody(r *http.Request, wantCols int) ([][]string, error) {
	cr := csv.NewReader(r.Body)
	cr.FieldsPerRecord = wantCols
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty CSV body")
	}
	return records[1:], nil
}

func importError(w http.ResponseWriter, line int, err error) {
	// +2: one for the header, one for 1-based numbering.
	writeError(w, http.StatusBadRequest, fmt.Sprintf("Row at line %d is invalid", line+2), err)
}

func (h *Handler) ImportOrgUnits(w http.ResponseWriter, r *http.Request) {
	rows, err := readCSVBody(r, 5)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid CSV", err)
		return
	}
	for i, row := range rows {
		overhead, err := decimal.NewFromString(row[3])
		if err != nil {
			importError(w, i, fmt.Errorf("overhead_multiplier: %w", err))
			return
		}
		if overhead.IsNegative() {
			importError(w, i, fmt.Errorf("overhead_multiplier must not be negative"))
			return
		}
		active, err := strconv.ParseBool(row[4])
		if err != nil {
			importError(w, i, fmt.Errorf("active: %w", err))
			return
		}
		unit := engine.OrgUnit{
			ID:                 engine.OrgUnitID(row[0]),
			Name:               row[1],
			Currency:           row[2],
			OverheadMultiplier: overhead,
			Active:             active,
		}
		if unit.ID == "" || unit.Name == "" {
			importError(w, i, fmt.Errorf("id and name are required"))
			return
		}
		if err := h.Store.SaveOrgUnit(r.Context(), unit); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save org unit", err)
			return
		}
	}
	h.audit(r, "org_unit.import", "org_unit", "*", map[string]int{"rows": len(rows)})
	writeJSON(w, http.StatusOK, map[string]any{"imported": len(rows)})
}

func (h *Handler) ImportJobCatalog(w http.ResponseWriter, r *http.Request) {
	rows, err := readCSVBody(r, 8)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid CSV", err)
		return
	}
	for i, row := range rows {
		cost, err := decimal.NewFromString(row[4])
		if err != nil {
			importError(w, i, fmt.Errorf("monthly_cost: %w", err))
			return
		}
		level, err := strconv.Atoi(row[5])
		if err != nil {
			importError(w, i, fmt.Errorf("hierarchy_level: %w", err))
			return
		}
		active, err := strconv.ParseBool(row[7])
		if err != nil {
			importError(w, i, fmt.Errorf("active: %w", err))
			return
		}
		entry := sqlite.JobCatalogEntry{
			ID:             engine.JobCatalogID(row[0]),
			JobFamily:      row[1],
			Level:          row[2],
			Title:          row[3],
			MonthlyCost:    cost,
			HierarchyLevel: level,
			Currency:       row[6],
			Active:         active,
		}
		if entry.ID == "" {
			entry.ID = engine.JobCatalogID(sqlite.NewID())
		}
		if err := h.Store.SaveJobCatalog(r.Context(), entry); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save catalog entry", err)
			return
		}
	}
	h.audit(r, "job_catalog.import", "job_catalog", "*", map[string]int{"rows": len(rows)})
	writeJSON(w, http.StatusOK, map[string]any{"imported": len(rows)})
}

func (h *Handler) ImportBudgets(w http.ResponseWriter, r *http.Request) {
	rows, err := readCSVBody(r, 4)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid CSV", err)
		return
	}
	for i, row := range rows {
		orgUnitID := engine.OrgUnitID(row[0])
		month, err := engine.ParseMonth(row[1])
		if err != nil {
			importError(w, i, err)
			return
		}
		amount, err := decimal.NewFromString(row[2])
		if err != nil {
			importError(w, i, fmt.Errorf("approved_amount: %w", err))
			return
		}

		locked, err := h.Store.IsBudgetLocked(r.Context(), orgUnitID, month)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to check lock", err)
			return
		}
		if locked {
			importError(w, i, fmt.Errorf("budget month %s is locked", month))
			return
		}

		b := engine.Budget{
			OrgUnitID:      orgUnitID,
			Month:          month,
			ApprovedAmount: amount,
			Currency:       row[3],
		}
		if err := h.Store.SaveBudget(r.Context(), b); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save budget", err)
			return
		}
	}
	h.audit(r, "budget.import", "budget", "*", map[string]int{"rows": len(rows)})
	writeJSON(w, http.StatusOK, map[string]any{"imported": len(rows)})
}

func (h *Handler) ImportActuals(w http.ResponseWriter, r *http.Request) {
	rows, err := readCSVBody(r, 5)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid CSV", err)
		return
	}
	for i, row := range rows {
		month, err := engine.ParseMonth(row[1])
		if err != nil {
			importError(w, i, err)
			return
		}
		amount, err := decimal.NewFromString(row[2])
		if err != nil {
			importError(w, i, fmt.Errorf("amount: %w", err))
			return
		}
		finalized, err := strconv.ParseBool(row[4])
		if err != nil {
			importError(w, i, fmt.Errorf("finalized: %w", err))
			return
		}
		a := engine.Actual{
			OrgUnitID: engine.OrgUnitID(row[0]),
			Month:     month,
			Amount:    amount,
			Currency:  row[3],
			Finalized: finalized,
		}
		if err := h.Store.SaveActual(r.Context(), a); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save actual", err)
			return
		}
	}
	h.audit(r, "actual.import", "actual", "*", map[string]int{"rows": len(rows)})
	writeJSON(w, http.StatusOK, map[string]any{"imported": len(rows)})
}
