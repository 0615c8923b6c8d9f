/*
exchange_test.go - CSV export/import tests

Tests for:
- Org unit CSV round trip
- Budget import respecting month locks
- Malformed CSV rejection with row numbers
*/
package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postCSV(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestImportThenExportOrgUnits(t *testing.T) {
	router, _ := newTestRouter(t)

	// GIVEN: A CSV with two org units
	csvBody := "id,name,currency,overhead_multiplier,active\n" +
		"platform,Platform Engineering,USD,1.8,true\n" +
		"growth,Growth,EUR,1.5,false\n"

	// WHEN: Importing it
	rec := postCSV(t, router, "/api/import/org-units", csvBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: Both units exist
	var dto OrgUnitDTO
	do(t, router, http.MethodGet, "/api/org-units/growth", nil, &dto)
	assert.Equal(t, "Growth", dto.Name)
	assert.Equal(t, "EUR", dto.Currency)
	assert.False(t, dto.Active)

	// AND: The export contains both rows plus a header
	req := httptest.NewRequest(http.MethodGet, "/api/export/org-units", nil)
	out := httptest.NewRecorder()
	router.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)
	assert.Equal(t, "text/csv", out.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(out.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,name,currency,overhead_multiplier,active", lines[0])
	assert.Contains(t, out.Body.String(), "platform,Platform Engineering,USD,1.8,true")
}

func TestImportBudgets_RespectsLock(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 1.0)

	rec := do(t, router, http.MethodPost, "/api/org-units/unit-1/budgets",
		UpsertBudgetRequest{Month: "2026-05", ApprovedAmount: 30000}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodPost, "/api/org-units/unit-1/lock-month",
		LockMonthRequest{Month: "2026-05"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// WHEN: Importing a CSV touching the locked month
	csvBody := "org_unit_id,month,approved_amount,currency\n" +
		"unit-1,2026-04,25000,USD\n" +
		"unit-1,2026-05,99999,USD\n"
	out := postCSV(t, router, "/api/import/budgets", csvBody)

	// THEN: The import aborts on the locked row
	assert.Equal(t, http.StatusBadRequest, out.Code)
	assert.Contains(t, out.Body.String(), "line 3")

	// AND: The locked amount is untouched, the earlier row landed
	var budgets []BudgetDTO
	do(t, router, http.MethodGet, "/api/org-units/unit-1/budgets", nil, &budgets)
	require.Len(t, budgets, 2)
	assert.Equal(t, 25000.0, budgets[0].ApprovedAmount)
	assert.Equal(t, 30000.0, budgets[1].ApprovedAmount)
}

func TestImportOrgUnits_NegativeOverheadRejected(t *testing.T) {
	router, _ := newTestRouter(t)

	// Imports enforce the same bound as the JSON create path: a negative
	// multiplier would poison every later summary for the unit.
	rec := postCSV(t, router, "/api/import/org-units",
		"id,name,currency,overhead_multiplier,active\n"+
			"unit-neg,Negative,USD,-1.5,true\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "line 2")

	out := do(t, router, http.MethodGet, "/api/org-units/unit-neg", nil, nil)
	assert.Equal(t, http.StatusNotFound, out.Code)
}

func TestImportOrgUnits_BadColumnCount(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postCSV(t, router, "/api/import/org-units",
		"id,name\nunit-1,Too Short\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportActuals_BadAmount(t *testing.T) {
	router, _ := newTestRouter(t)
	createOrgUnit(t, router, "unit-1", 1.0)

	rec := postCSV(t, router, "/api/import/actuals",
		"org_unit_id,month,amount,currency,finalized\n"+
			"unit-1,2026-02,not-a-number,USD,true\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "line 2")
}
