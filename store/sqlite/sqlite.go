/*
Package sqlite provides the SQLite-backed implementation of persistence.

PURPOSE:
  Owns every record lifecycle the engine consumes: org units, job catalog,
  budgets, forecasts, actuals, requisitions, offers, and the audit log.
  Implements planner.Store for the projection engine and the wider CRUD
  surface for the HTTP API. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  org_units:    planning scopes with overhead multiplier
  job_catalog:  role cost reference data
  budgets:      approved amount per (org unit, month), lockable
  forecasts:    predicted spend per (org unit, month)
  actuals:      realized spend per (org unit, month)
  requisitions: open hiring needs
  offers:       candidate offers with lifecycle status
  audit_log:    who changed what, append-only

UNIQUENESS:
  budgets/forecasts/actuals carry UNIQUE(org_unit_id, month): at most one
  record per org unit per month, enforced by the database, upserted by the
  Save methods.

MONEY:
  Monetary columns are stored as TEXT and parsed with shopspring/decimal.
  REAL would silently lose cents; TEXT keeps what was written.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/budget.db")  // or ":memory:"
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - planner/store.go: the read interface the planner consumes
  - planner/store:    in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/budget-engine/engine"
)

// Store implements planner.Store plus the CRUD surface of the HTTP API.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS org_units (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		overhead_multiplier TEXT NOT NULL DEFAULT '1.8',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS job_catalog (
		id TEXT PRIMARY KEY,
		job_family TEXT NOT NULL,
		level TEXT NOT NULL,
		title TEXT NOT NULL,
		monthly_cost TEXT NOT NULL,
		hierarchy_level INTEGER NOT NULL DEFAULT 100,
		currency TEXT NOT NULL DEFAULT 'USD',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS budgets (
		id TEXT PRIMARY KEY,
		org_unit_id TEXT NOT NULL REFERENCES org_units(id),
		month TEXT NOT NULL,
		approved_amount TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		locked INTEGER NOT NULL DEFAULT 0,
		locked_by TEXT,
		locked_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(org_unit_id, month)
	);

	CREATE TABLE IF NOT EXISTS forecasts (
		id TEXT PRIMARY KEY,
		org_unit_id TEXT NOT NULL REFERENCES org_units(id),
		month TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		source TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(org_unit_id, month)
	);

	CREATE TABLE IF NOT EXISTS actuals (
		id TEXT PRIMARY KEY,
		org_unit_id TEXT NOT NULL REFERENCES org_units(id),
		month TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		finalized INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		UNIQUE(org_unit_id, month)
	);

	CREATE TABLE IF NOT EXISTS requisitions (
		id TEXT PRIMARY KEY,
		org_unit_id TEXT NOT NULL REFERENCES org_units(id),
		job_catalog_id TEXT REFERENCES job_catalog(id),
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'DRAFT',
		priority TEXT NOT NULL DEFAULT 'P2',
		estimated_monthly_cost TEXT NOT NULL,
		target_start_month TEXT,
		headcount INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requisitions_org_unit
		ON requisitions(org_unit_id);
	CREATE INDEX IF NOT EXISTS idx_requisitions_status
		ON requisitions(status);

	CREATE TABLE IF NOT EXISTS offers (
		id TEXT PRIMARY KEY,
		requisition_id TEXT NOT NULL REFERENCES requisitions(id),
		candidate_name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'DRAFT',
		proposed_monthly_cost TEXT NOT NULL,
		final_monthly_cost TEXT,
		currency TEXT NOT NULL DEFAULT 'USD',
		start_date TEXT,
		hold_reason TEXT,
		hold_until TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_offers_requisition
		ON offers(requisition_id);
	CREATE INDEX IF NOT EXISTS idx_offers_status
		ON offers(status);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		changes_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_entity
		ON audit_log(entity_type, entity_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD TYPES - Store-owned rows the engine has no use for
// =============================================================================

// JobCatalogEntry is a role cost reference row.
type JobCatalogEntry struct {
	ID             engine.JobCatalogID
	JobFamily      string
	Level          string
	Title          string
	MonthlyCost    decimal.Decimal
	HierarchyLevel int
	Currency       string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OfferRecord is an offer with its persistence-only fields.
type OfferRecord struct {
	engine.Offer
	HoldReason string
	HoldUntil  *time.Time
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AuditEntry records who did what when. Append-only.
type AuditEntry struct {
	ID         string
	Actor      string
	Action     string
	EntityType string
	EntityID   string
	Changes    string // JSON blob, opaque to the store
	CreatedAt  time.Time
}

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339
)

// =============================================================================
// ORG UNITS
// =============================================================================

func (s *Store) SaveOrgUnit(ctx context.Context, u engine.OrgUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO org_units (id, name, currency, overhead_multiplier, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			currency = excluded.currency,
			overhead_multiplier = excluded.overhead_multiplier,
			active = excluded.active`,
		u.ID, u.Name, u.Currency, u.OverheadMultiplier.String(), boolToInt(u.Active),
		time.Now().UTC().Format(timeLayout))
	return err
}

func (s *Store) GetOrgUnit(ctx context.Context, id engine.OrgUnitID) (engine.OrgUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, currency, overhead_multiplier, active
		FROM org_units WHERE id = ?`, id)
	u, err := scanOrgUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.OrgUnit{}, &engine.NotFoundError{Kind: "org unit", ID: string(id)}
	}
	return u, err
}

func (s *Store) ListOrgUnits(ctx context.Context) ([]engine.OrgUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, currency, overhead_multiplier, active
		FROM org_units ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.OrgUnit
	for rows.Next() {
		u, err := scanOrgUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrgUnit(row rowScanner) (engine.OrgUnit, error) {
	var u engine.OrgUnit
	var overhead string
	var active int
	err := row.Scan(&u.ID, &u.Name, &u.Currency, &overhead, &active)
	if err != nil {
		return engine.OrgUnit{}, err
	}
	u.OverheadMultiplier, err = decimal.NewFromString(overhead)
	if err != nil {
		return engine.OrgUnit{}, fmt.Errorf("corrupt overhead_multiplier for %s: %w", u.ID, err)
	}
	u.Active = active != 0
	return u, nil
}

// =============================================================================
// JOB CATALOG
// =============================================================================

func (s *Store) SaveJobCatalog(ctx context.Context, e JobCatalogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_catalog
			(id, job_family, level, title, monthly_cost, hierarchy_level, currency, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			job_family = excluded.job_family,
			level = excluded.level,
			title = excluded.title,
			monthly_cost = excluded.monthly_cost,
			hierarchy_level = excluded.hierarchy_level,
			currency = excluded.currency,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		e.ID, e.JobFamily, e.Level, e.Title, e.MonthlyCost.String(),
		e.HierarchyLevel, e.Currency, boolToInt(e.Active), now, now)
	return err
}

func (s *Store) GetJobCatalog(ctx context.Context, id engine.JobCatalogID) (JobCatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, job_family, level, title, monthly_cost, hierarchy_level, currency, active, created_at, updated_at
		FROM job_catalog WHERE id = ?`, id)
	e, err := scanJobCatalog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return JobCatalogEntry{}, &engine.NotFoundError{Kind: "job catalog entry", ID: string(id)}
	}
	return e, err
}

func (s *Store) ListJobCatalog(ctx context.Context, includeInactive bool) ([]JobCatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, job_family, level, title, monthly_cost, hierarchy_level, currency, active, created_at, updated_at
		FROM job_catalog`
	if !includeInactive {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY job_family, hierarchy_level`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JobCatalogEntry
	for rows.Next() {
		e, err := scanJobCatalog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeactivateJobCatalog soft-deletes: the row stays for historic
// requisitions, but disappears from active listings.
func (s *Store) DeactivateJobCatalog(ctx context.Context, id engine.JobCatalogID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE job_catalog SET active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return err
	}
	return requireRow(res, "job catalog entry", string(id))
}

func scanJobCatalog(row rowScanner) (JobCatalogEntry, error) {
	var e JobCatalogEntry
	var cost, createdAt, updatedAt string
	var active int
	err := row.Scan(&e.ID, &e.JobFamily, &e.Level, &e.Title, &cost,
		&e.HierarchyLevel, &e.Currency, &active, &createdAt, &updatedAt)
	if err != nil {
		return JobCatalogEntry{}, err
	}
	e.MonthlyCost, err = decimal.NewFromString(cost)
	if err != nil {
		return JobCatalogEntry{}, fmt.Errorf("corrupt monthly_cost for %s: %w", e.ID, err)
	}
	e.Active = active != 0
	e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	e.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return e, nil
}

// =============================================================================
// BUDGETS / FORECASTS / ACTUALS - One row per (org unit, month)
// =============================================================================

// SaveBudget upserts the month's approved budget. The locked flag is
// preserved on update; callers must check IsBudgetLocked first.
func (s *Store) SaveBudget(ctx context.Context, b engine.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budgets (id, org_unit_id, month, approved_amount, currency, locked, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(org_unit_id, month) DO UPDATE SET
			approved_amount = excluded.approved_amount,
			currency = excluded.currency,
			updated_at = excluded.updated_at`,
		NewID(), b.OrgUnitID, b.Month, b.ApprovedAmount.String(), b.Currency,
		boolToInt(b.Locked), now, now)
	return err
}

func (s *Store) IsBudgetLocked(ctx context.Context, orgUnitID engine.OrgUnitID, month engine.MonthKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var locked int
	err := s.db.QueryRowContext(ctx, `
		SELECT locked FROM budgets WHERE org_unit_id = ? AND month = ?`,
		orgUnitID, month).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return locked != 0, nil
}

// LockBudgetMonth marks a budget month immutable.
func (s *Store) LockBudgetMonth(ctx context.Context, orgUnitID engine.OrgUnitID, month engine.MonthKey, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE budgets SET locked = 1, locked_by = ?, locked_at = ?
		WHERE org_unit_id = ? AND month = ?`,
		actor, time.Now().UTC().Format(timeLayout), orgUnitID, month)
	if err != nil {
		return err
	}
	return requireRow(res, "budget", fmt.Sprintf("%s/%s", orgUnitID, month))
}

func (s *Store) ListBudgets(ctx context.Context, orgUnitID engine.OrgUnitID) ([]engine.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT org_unit_id, month, approved_amount, currency, locked
		FROM budgets WHERE org_unit_id = ? ORDER BY month`, orgUnitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Budget
	for rows.Next() {
		var b engine.Budget
		var amount string
		var locked int
		if err := rows.Scan(&b.OrgUnitID, &b.Month, &amount, &b.Currency, &locked); err != nil {
			return nil, err
		}
		b.ApprovedAmount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt approved_amount for %s/%s: %w", b.OrgUnitID, b.Month, err)
		}
		b.Locked = locked != 0
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) SaveForecast(ctx context.Context, f engine.Forecast) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO forecasts (id, org_unit_id, month, amount, currency, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(org_unit_id, month) DO UPDATE SET
			amount = excluded.amount,
			currency = excluded.currency,
			source = excluded.source`,
		NewID(), f.OrgUnitID, f.Month, f.Amount.String(), f.Currency, f.Source,
		time.Now().UTC().Format(timeLayout))
	return err
}

func (s *Store) ListForecasts(ctx context.Context, orgUnitID engine.OrgUnitID) ([]engine.Forecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT org_unit_id, month, amount, currency, COALESCE(source, '')
		FROM forecasts WHERE org_unit_id = ? ORDER BY month`, orgUnitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Forecast
	for rows.Next() {
		var f engine.Forecast
		var amount string
		if err := rows.Scan(&f.OrgUnitID, &f.Month, &amount, &f.Currency, &f.Source); err != nil {
			return nil, err
		}
		f.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt forecast amount for %s/%s: %w", f.OrgUnitID, f.Month, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) SaveActual(ctx context.Context, a engine.Actual) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actuals (id, org_unit_id, month, amount, currency, finalized, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(org_unit_id, month) DO UPDATE SET
			amount = excluded.amount,
			currency = excluded.currency,
			finalized = excluded.finalized`,
		NewID(), a.OrgUnitID, a.Month, a.Amount.String(), a.Currency,
		boolToInt(a.Finalized), time.Now().UTC().Format(timeLayout))
	return err
}

func (s *Store) ListActuals(ctx context.Context, orgUnitID engine.OrgUnitID) ([]engine.Actual, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT org_unit_id, month, amount, currency, finalized
		FROM actuals WHERE org_unit_id = ? ORDER BY month`, orgUnitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Actual
	for rows.Next() {
		var a engine.Actual
		var amount string
		var finalized int
		if err := rows.Scan(&a.OrgUnitID, &a.Month, &amount, &a.Currency, &finalized); err != nil {
			return nil, err
		}
		a.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt actual amount for %s/%s: %w", a.OrgUnitID, a.Month, err)
		}
		a.Finalized = finalized != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// REQUISITIONS
// =============================================================================

func (s *Store) SaveRequisition(ctx context.Context, r engine.Requisition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requisitions
			(id, org_unit_id, job_catalog_id, title, status, priority, estimated_monthly_cost, target_start_month, headcount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			job_catalog_id = excluded.job_catalog_id,
			title = excluded.title,
			status = excluded.status,
			priority = excluded.priority,
			estimated_monthly_cost = excluded.estimated_monthly_cost,
			target_start_month = excluded.target_start_month,
			headcount = excluded.headcount,
			updated_at = excluded.updated_at`,
		r.ID, r.OrgUnitID, nullString(string(r.JobCatalogID)), r.Title, r.Status, r.Priority,
		r.EstimatedMonthlyCost.String(), nullString(string(r.TargetStartMonth)), r.Headcount, now, now)
	return err
}

func (s *Store) GetRequisition(ctx context.Context, id engine.RequisitionID) (engine.Requisition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, org_unit_id, COALESCE(job_catalog_id, ''), title, status, priority,
		       estimated_monthly_cost, COALESCE(target_start_month, ''), headcount
		FROM requisitions WHERE id = ?`, id)
	r, err := scanRequisition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Requisition{}, &engine.NotFoundError{Kind: "requisition", ID: string(id)}
	}
	return r, err
}

// ListRequisitions filters by optional status, priority and org unit.
// Empty filter values match everything. P0 sorts first.
func (s *Store) ListRequisitions(ctx context.Context, orgUnitID engine.OrgUnitID, status, priority string) ([]engine.Requisition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, org_unit_id, COALESCE(job_catalog_id, ''), title, status, priority,
		       estimated_monthly_cost, COALESCE(target_start_month, ''), headcount
		FROM requisitions WHERE 1=1`
	var args []any
	if orgUnitID != "" {
		query += ` AND org_unit_id = ?`
		args = append(args, orgUnitID)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	if priority != "" {
		query += ` AND priority = ?`
		args = append(args, priority)
	}
	query += ` ORDER BY priority, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Requisition
	for rows.Next() {
		r, err := scanRequisition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListRequisitionsByOrgUnit(ctx context.Context, orgUnitID engine.OrgUnitID) ([]engine.Requisition, error) {
	return s.ListRequisitions(ctx, orgUnitID, "", "")
}

func scanRequisition(row rowScanner) (engine.Requisition, error) {
	var r engine.Requisition
	var cost string
	err := row.Scan(&r.ID, &r.OrgUnitID, &r.JobCatalogID, &r.Title, &r.Status,
		&r.Priority, &cost, &r.TargetStartMonth, &r.Headcount)
	if err != nil {
		return engine.Requisition{}, err
	}
	r.EstimatedMonthlyCost, err = decimal.NewFromString(cost)
	if err != nil {
		return engine.Requisition{}, fmt.Errorf("corrupt estimated_monthly_cost for %s: %w", r.ID, err)
	}
	return r, nil
}

// =============================================================================
// OFFERS
// =============================================================================

func (s *Store) SaveOffer(ctx context.Context, o OfferRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO offers
			(id, requisition_id, candidate_name, status, proposed_monthly_cost, final_monthly_cost,
			 currency, start_date, hold_reason, hold_until, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			candidate_name = excluded.candidate_name,
			status = excluded.status,
			proposed_monthly_cost = excluded.proposed_monthly_cost,
			final_monthly_cost = excluded.final_monthly_cost,
			currency = excluded.currency,
			start_date = excluded.start_date,
			hold_reason = excluded.hold_reason,
			hold_until = excluded.hold_until,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		o.ID, o.RequisitionID, o.CandidateName, o.Status, o.ProposedMonthlyCost.String(),
		nullDecimal(o.FinalMonthlyCost), o.Currency, nullDate(o.StartDate),
		nullString(o.HoldReason), nullDate(o.HoldUntil), nullString(o.Notes), now, now)
	return err
}

func (s *Store) GetOfferRecord(ctx context.Context, id engine.OfferID) (OfferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, offerSelect+` WHERE id = ?`, id)
	o, err := scanOffer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return OfferRecord{}, &engine.NotFoundError{Kind: "offer", ID: string(id)}
	}
	return o, err
}

// GetOffer satisfies planner.Store.
func (s *Store) GetOffer(ctx context.Context, id engine.OfferID) (engine.Offer, error) {
	rec, err := s.GetOfferRecord(ctx, id)
	if err != nil {
		return engine.Offer{}, err
	}
	return rec.Offer, nil
}

// ListOffers filters by optional status and requisition.
func (s *Store) ListOffers(ctx context.Context, requisitionID engine.RequisitionID, status string) ([]OfferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := offerSelect + ` WHERE 1=1`
	var args []any
	if requisitionID != "" {
		query += ` AND requisition_id = ?`
		args = append(args, requisitionID)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOffers(rows)
}

// ListOffersByOrgUnit satisfies planner.Store: every offer whose
// requisition belongs to the org unit.
func (s *Store) ListOffersByOrgUnit(ctx context.Context, orgUnitID engine.OrgUnitID) ([]engine.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, o.requisition_id, o.candidate_name, o.status, o.proposed_monthly_cost,
		       o.final_monthly_cost, o.currency, o.start_date,
		       o.hold_reason, o.hold_until, o.notes, o.created_at, o.updated_at
		FROM offers o
		JOIN requisitions r ON r.id = o.requisition_id
		WHERE r.org_unit_id = ?
		ORDER BY o.created_at`, orgUnitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records, err := collectOffers(rows)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Offer, len(records))
	for i, rec := range records {
		out[i] = rec.Offer
	}
	return out, nil
}

func (s *Store) DeleteOffer(ctx context.Context, id engine.OfferID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM offers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "offer", string(id))
}

const offerSelect = `
	SELECT id, requisition_id, candidate_name, status, proposed_monthly_cost,
	       final_monthly_cost, currency, start_date,
	       hold_reason, hold_until, notes, created_at, updated_at
	FROM offers`

func scanOffer(row rowScanner) (OfferRecord, error) {
	var o OfferRecord
	var proposed string
	var final, startDate, holdReason, holdUntil, notes sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&o.ID, &o.RequisitionID, &o.CandidateName, &o.Status, &proposed,
		&final, &o.Currency, &startDate, &holdReason, &holdUntil, &notes, &createdAt, &updatedAt)
	if err != nil {
		return OfferRecord{}, err
	}

	o.ProposedMonthlyCost, err = decimal.NewFromString(proposed)
	if err != nil {
		return OfferRecord{}, fmt.Errorf("corrupt proposed_monthly_cost for %s: %w", o.ID, err)
	}
	if final.Valid {
		fc, err := decimal.NewFromString(final.String)
		if err != nil {
			return OfferRecord{}, fmt.Errorf("corrupt final_monthly_cost for %s: %w", o.ID, err)
		}
		o.FinalMonthlyCost = &fc
	}
	if startDate.Valid && startDate.String != "" {
		t, err := time.Parse(dateLayout, startDate.String)
		if err != nil {
			return OfferRecord{}, fmt.Errorf("corrupt start_date for %s: %w", o.ID, err)
		}
		o.StartDate = &t
	}
	if holdReason.Valid {
		o.HoldReason = holdReason.String
	}
	if holdUntil.Valid && holdUntil.String != "" {
		t, err := time.Parse(dateLayout, holdUntil.String)
		if err != nil {
			return OfferRecord{}, fmt.Errorf("corrupt hold_until for %s: %w", o.ID, err)
		}
		o.HoldUntil = &t
	}
	if notes.Valid {
		o.Notes = notes.String
	}
	o.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	o.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return o, nil
}

func collectOffers(rows *sql.Rows) ([]OfferRecord, error) {
	var out []OfferRecord
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// =============================================================================
// AUDIT LOG - Append-only
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, e AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = NewID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, actor, action, entity_type, entity_id, changes_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Actor, e.Action, e.EntityType, e.EntityID, nullString(e.Changes),
		time.Now().UTC().Format(timeLayout))
	return err
}

func (s *Store) ListAudit(ctx context.Context, entityType string, limit int) ([]AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query := `
		SELECT id, actor, action, entity_type, entity_id, COALESCE(changes_json, ''), created_at
		FROM audit_log`
	var args []any
	if entityType != "" {
		query += ` WHERE entity_type = ?`
		args = append(args, entityType)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.EntityType, &e.EntityID, &e.Changes, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// RESET - For demo scenario loading only
// =============================================================================

// Reset wipes every table. Scenario loading rebuilds from scratch;
// nothing else should call this.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"audit_log", "offers", "requisitions", "actuals", "forecasts", "budgets", "job_catalog", "org_units"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("resetting %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// NewID mints a fresh row identifier. Exposed so callers creating
// store-owned entities assign IDs the same way the store does.
func NewID() string { return uuid.NewString() }

// requireRow turns a zero-row UPDATE/DELETE into ErrNotFound.
func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &engine.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}
