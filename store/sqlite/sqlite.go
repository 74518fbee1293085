/*
Package sqlite provides a SQLite-backed implementation of freight.Store.

PURPOSE:
  Implements every persistence interface the engine needs using SQLite.
  In production the same patterns apply to PostgreSQL with minor dialect
  differences.

INTERFACES IMPLEMENTED:
  freight.Store:    parties, loads, stops, legs, rates, payables,
                    settlements, pay plans, route assignments, WithTx
  generic.AuditLog: audit_log table

KEY TABLES:
  loads, stops, legs:        dispatch state
  rate_profiles, rate_rules: pay configuration
  profile_assignments:       driver/carrier -> profile links
  payables:                  the payable ledger
  settlements:               pay-period statements
  pay_plans:                 period templates
  route_assignments:         HCR/trip -> default driver/carrier
  audit_log:                 write-only audit trail

SINGLE-DEFAULT INVARIANTS:
  Saving a default rate profile demotes the previous default of the same
  (org, type) in the same statement batch. Saving a default profile
  assignment demotes the subject's previous default. Partial unique indexes
  back both rules so a second default can never be committed.

CONCURRENCY:
  WithTx serializes writers with a mutex and runs the callback against a
  store bound to one *sql.Tx. The pool is limited to one connection, which
  keeps ":memory:" databases shared across calls and matches SQLite's
  single-writer model.

ENCODING:
  Timestamps are UTC text in a fixed-width layout (sortable), decimals are
  text, optional references are NULL <-> "".

USAGE:
  store, err := sqlite.New("./data/freight.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - freight/store.go: Interface definitions
  - generic/store.go: Audit log interface
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements freight.Store using SQLite.
type Store struct {
	*queries
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, queries: &queries{db: db}}
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS drivers (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		deleted_at TEXT,
		carrier_org_id TEXT,
		pay_plan_id TEXT,
		current_truck_id TEXT,
		current_city TEXT,
		current_state TEXT,
		latitude REAL,
		longitude REAL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_drivers_org ON drivers(org_id);
	CREATE INDEX IF NOT EXISTS idx_drivers_carrier_org ON drivers(carrier_org_id) WHERE carrier_org_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS carriers (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		carrier_org_id TEXT,
		carrier_name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		deleted_at TEXT,
		pay_plan_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_carriers_org ON carriers(org_id);
	CREATE INDEX IF NOT EXISTS idx_carriers_carrier_org ON carriers(carrier_org_id) WHERE carrier_org_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS loads (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		order_number TEXT NOT NULL,
		status TEXT NOT NULL,
		hcr TEXT,
		trip_number TEXT,
		primary_driver_id TEXT,
		primary_carrier_id TEXT,
		effective_miles TEXT NOT NULL DEFAULT '0',
		is_hazmat INTEGER NOT NULL DEFAULT 0,
		requires_tarp INTEGER NOT NULL DEFAULT 0,
		revenue TEXT,
		delivered_at TEXT,
		completed_at TEXT,
		approved_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_loads_org_status ON loads(org_id, status);

	CREATE TABLE IF NOT EXISTS stops (
		id TEXT PRIMARY KEY,
		load_id TEXT NOT NULL,
		org_id TEXT NOT NULL,
		sequence_number INTEGER NOT NULL,
		stop_type TEXT NOT NULL,
		city TEXT,
		state TEXT,
		window_begin_date TEXT,
		window_begin_time TEXT,
		window_end_date TEXT,
		window_end_time TEXT,
		checked_in_at TEXT,
		checked_out_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_stops_load ON stops(load_id, sequence_number);

	-- Dispatch legs. driver_id and carrier_partnership_id are never both set.
	CREATE TABLE IF NOT EXISTS legs (
		id TEXT PRIMARY KEY,
		load_id TEXT NOT NULL,
		org_id TEXT NOT NULL,
		driver_id TEXT,
		carrier_partnership_id TEXT,
		truck_id TEXT,
		trailer_id TEXT,
		sequence INTEGER NOT NULL,
		start_stop_id TEXT NOT NULL,
		end_stop_id TEXT NOT NULL,
		loaded_miles TEXT NOT NULL DEFAULT '0',
		empty_miles TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		pay_warning TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (driver_id IS NULL OR carrier_partnership_id IS NULL)
	);
	CREATE INDEX IF NOT EXISTS idx_legs_load ON legs(load_id, sequence);
	CREATE INDEX IF NOT EXISTS idx_legs_driver_status ON legs(driver_id, status) WHERE driver_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_legs_carrier_status ON legs(carrier_partnership_id, status) WHERE carrier_partnership_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS rate_profiles (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		name TEXT NOT NULL,
		profile_type TEXT NOT NULL,
		pay_basis TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		is_default INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_rate_profiles_single_default
		ON rate_profiles(org_id, profile_type) WHERE is_default = 1;

	CREATE TABLE IF NOT EXISTS rate_rules (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL REFERENCES rate_profiles(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		trigger_event TEXT NOT NULL,
		rate TEXT NOT NULL,
		min_threshold TEXT,
		max_cap TEXT,
		is_active INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_rate_rules_profile ON rate_rules(profile_id, position);

	CREATE TABLE IF NOT EXISTS profile_assignments (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		subject_type TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		profile_id TEXT NOT NULL,
		strategy TEXT NOT NULL,
		threshold_miles TEXT,
		is_default INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_profile_assignments_subject
		ON profile_assignments(subject_type, subject_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_profile_assignments_single_default
		ON profile_assignments(subject_type, subject_id) WHERE is_default = 1;

	-- Payable ledger
	CREATE TABLE IF NOT EXISTS payables (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		payee_type TEXT NOT NULL,
		payee_id TEXT NOT NULL,
		load_id TEXT,
		leg_id TEXT,
		description TEXT NOT NULL,
		quantity TEXT NOT NULL,
		rate TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		source_type TEXT NOT NULL,
		category TEXT,
		is_locked INTEGER NOT NULL DEFAULT 0,
		locked_by_settlement INTEGER NOT NULL DEFAULT 0,
		settlement_id TEXT,
		held_from_settlement_id TEXT,
		is_rebillable INTEGER NOT NULL DEFAULT 0,
		rebill_customer_id TEXT,
		receipt_url TEXT,
		rule_id TEXT,
		warning_message TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_payables_leg ON payables(leg_id) WHERE leg_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_payables_load ON payables(load_id) WHERE load_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_payables_settlement ON payables(settlement_id) WHERE settlement_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_payables_payee ON payables(payee_type, payee_id);

	CREATE TABLE IF NOT EXISTS settlements (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		payee_type TEXT NOT NULL,
		payee_id TEXT NOT NULL,
		pay_plan_id TEXT,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		status TEXT NOT NULL,
		statement_number TEXT NOT NULL,
		gross_total TEXT,
		total_miles TEXT,
		total_loads INTEGER,
		total_manual_adjustments TEXT,
		approved_at TEXT,
		approved_by TEXT,
		paid_at TEXT,
		paid_by TEXT,
		payment_method TEXT,
		payment_reference TEXT,
		voided_at TEXT,
		voided_by TEXT,
		void_reason TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_settlements_payee ON settlements(payee_type, payee_id, period_start);
	CREATE INDEX IF NOT EXISTS idx_settlements_org_status ON settlements(org_id, status);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_settlements_statement ON settlements(org_id, statement_number);

	CREATE TABLE IF NOT EXISTS statement_counters (
		org_id TEXT PRIMARY KEY,
		last_value INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pay_plans (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		name TEXT NOT NULL,
		frequency TEXT NOT NULL,
		anchor_day INTEGER NOT NULL DEFAULT 0,
		anchor_date TEXT,
		cutoff_time TEXT,
		payment_lag_days INTEGER NOT NULL DEFAULT 0,
		payable_trigger TEXT NOT NULL,
		auto_carryover INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS route_assignments (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		hcr TEXT NOT NULL,
		trip_number TEXT,
		driver_id TEXT,
		carrier_partnership_id TEXT,
		priority INTEGER NOT NULL DEFAULT 100,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_route_assignments_hcr ON route_assignments(org_id, hcr);

	CREATE TABLE IF NOT EXISTS auto_assign_settings (
		org_id TEXT PRIMARY KEY,
		trigger_on_create INTEGER NOT NULL DEFAULT 0,
		scheduled_enabled INTEGER NOT NULL DEFAULT 0,
		schedule_interval_minutes INTEGER NOT NULL DEFAULT 0,
		last_run_at TEXT
	);

	-- Audit trail (write-only from the engine's perspective)
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		org_id TEXT,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		action TEXT NOT NULL,
		performed_by TEXT,
		performed_by_name TEXT,
		description TEXT,
		before_json TEXT,
		after_json TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);
	CREATE INDEX IF NOT EXISTS idx_audit_org_time ON audit_log(org_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset deletes all rows. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(tx freight.Store) error {
		ts := tx.(*txStore)
		for _, table := range []string{
			"drivers", "carriers", "loads", "stops", "legs", "rate_rules", "rate_profiles",
			"profile_assignments", "payables", "settlements", "statement_counters",
			"pay_plans", "route_assignments", "auto_assign_settings", "audit_log",
		} {
			if _, err := ts.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to reset %s: %w", table, err)
			}
		}
		return nil
	})
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store freight.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries: &queries{db: sqlTx}}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	*queries
}

// WithTx joins the surrounding transaction.
func (ts *txStore) WithTx(ctx context.Context, fn func(store freight.Store) error) error {
	return fn(ts)
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement; Store binds it to the pool, txStore to a tx.
type queries struct {
	db queryer
}

type rowScanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// DRIVERS & CARRIERS
// =============================================================================

const driverColumns = `id, org_id, name, status, deleted_at, carrier_org_id, pay_plan_id,
	current_truck_id, current_city, current_state, latitude, longitude, created_at, updated_at`

// SaveDriver inserts or updates a driver.
func (q *queries) SaveDriver(ctx context.Context, d freight.Driver) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.Status == "" {
		d.Status = freight.PartyActive
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO drivers (`+driverColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			deleted_at = excluded.deleted_at,
			carrier_org_id = excluded.carrier_org_id,
			pay_plan_id = excluded.pay_plan_id,
			current_truck_id = excluded.current_truck_id,
			current_city = excluded.current_city,
			current_state = excluded.current_state,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			updated_at = excluded.updated_at
	`,
		d.ID, d.OrgID, d.Name, d.Status, nullTime(d.DeletedAt), nullString(d.CarrierOrgID),
		nullString(d.PayPlanID), nullString(d.CurrentTruckID), nullString(d.CurrentCity),
		nullString(d.CurrentState), nullFloat(d.Latitude), nullFloat(d.Longitude),
		formatTime(d.CreatedAt), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to save driver: %w", err)
	}
	return nil
}

// GetDriver retrieves a driver by ID.
func (q *queries) GetDriver(ctx context.Context, id string) (*freight.Driver, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+driverColumns+" FROM drivers WHERE id = ?", id)
	d, err := scanDriver(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDrivers returns drivers of an org ordered by name.
func (q *queries) ListDrivers(ctx context.Context, orgID string) ([]freight.Driver, error) {
	if orgID == "" {
		return q.queryDrivers(ctx, "SELECT "+driverColumns+" FROM drivers ORDER BY name")
	}
	return q.queryDrivers(ctx, "SELECT "+driverColumns+" FROM drivers WHERE org_id = ? ORDER BY name", orgID)
}

// ListDriversByCarrierOrg returns drivers employed by a partner carrier.
func (q *queries) ListDriversByCarrierOrg(ctx context.Context, carrierOrgID string) ([]freight.Driver, error) {
	return q.queryDrivers(ctx, "SELECT "+driverColumns+" FROM drivers WHERE carrier_org_id = ? ORDER BY name", carrierOrgID)
}

func (q *queries) queryDrivers(ctx context.Context, query string, args ...any) ([]freight.Driver, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query drivers: %w", err)
	}
	defer rows.Close()

	var drivers []freight.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

func scanDriver(row rowScanner) (freight.Driver, error) {
	var (
		d                                          freight.Driver
		deletedAt, carrierOrgID, payPlanID         sql.NullString
		truckID, city, state                       sql.NullString
		lat, lng                                   sql.NullFloat64
		createdAt, updatedAt                       string
	)
	err := row.Scan(&d.ID, &d.OrgID, &d.Name, &d.Status, &deletedAt, &carrierOrgID, &payPlanID,
		&truckID, &city, &state, &lat, &lng, &createdAt, &updatedAt)
	if err != nil {
		return d, err
	}
	d.DeletedAt = parseNullTime(deletedAt)
	d.CarrierOrgID = carrierOrgID.String
	d.PayPlanID = payPlanID.String
	d.CurrentTruckID = truckID.String
	d.CurrentCity = city.String
	d.CurrentState = state.String
	d.Latitude = floatPtr(lat)
	d.Longitude = floatPtr(lng)
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return d, nil
}

const carrierColumns = `id, org_id, carrier_org_id, carrier_name, status, deleted_at, pay_plan_id, created_at, updated_at`

// SaveCarrier inserts or updates a carrier partnership.
func (q *queries) SaveCarrier(ctx context.Context, c freight.CarrierPartnership) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.Status == "" {
		c.Status = freight.PartyActive
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO carriers (`+carrierColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			carrier_org_id = excluded.carrier_org_id,
			carrier_name = excluded.carrier_name,
			status = excluded.status,
			deleted_at = excluded.deleted_at,
			pay_plan_id = excluded.pay_plan_id,
			updated_at = excluded.updated_at
	`,
		c.ID, c.OrgID, nullString(c.CarrierOrgID), c.CarrierName, c.Status, nullTime(c.DeletedAt),
		nullString(c.PayPlanID), formatTime(c.CreatedAt), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to save carrier: %w", err)
	}
	return nil
}

// GetCarrier retrieves a carrier partnership by ID.
func (q *queries) GetCarrier(ctx context.Context, id string) (*freight.CarrierPartnership, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+carrierColumns+" FROM carriers WHERE id = ?", id)
	c, err := scanCarrier(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCarriers returns partnerships of an org.
func (q *queries) ListCarriers(ctx context.Context, orgID string) ([]freight.CarrierPartnership, error) {
	if orgID == "" {
		return q.queryCarriers(ctx, "SELECT "+carrierColumns+" FROM carriers ORDER BY carrier_name")
	}
	return q.queryCarriers(ctx, "SELECT "+carrierColumns+" FROM carriers WHERE org_id = ? ORDER BY carrier_name", orgID)
}

// ListCarriersByCarrierOrg returns every partnership with a carrier organization.
func (q *queries) ListCarriersByCarrierOrg(ctx context.Context, carrierOrgID string) ([]freight.CarrierPartnership, error) {
	return q.queryCarriers(ctx, "SELECT "+carrierColumns+" FROM carriers WHERE carrier_org_id = ? ORDER BY carrier_name", carrierOrgID)
}

func (q *queries) queryCarriers(ctx context.Context, query string, args ...any) ([]freight.CarrierPartnership, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query carriers: %w", err)
	}
	defer rows.Close()

	var carriers []freight.CarrierPartnership
	for rows.Next() {
		c, err := scanCarrier(rows)
		if err != nil {
			return nil, err
		}
		carriers = append(carriers, c)
	}
	return carriers, rows.Err()
}

func scanCarrier(row rowScanner) (freight.CarrierPartnership, error) {
	var (
		c                                  freight.CarrierPartnership
		carrierOrgID, deletedAt, payPlanID sql.NullString
		createdAt, updatedAt               string
	)
	err := row.Scan(&c.ID, &c.OrgID, &carrierOrgID, &c.CarrierName, &c.Status, &deletedAt, &payPlanID, &createdAt, &updatedAt)
	if err != nil {
		return c, err
	}
	c.CarrierOrgID = carrierOrgID.String
	c.DeletedAt = parseNullTime(deletedAt)
	c.PayPlanID = payPlanID.String
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

// =============================================================================
// LOADS & STOPS
// =============================================================================

const loadColumns = `id, org_id, order_number, status, hcr, trip_number, primary_driver_id, primary_carrier_id,
	effective_miles, is_hazmat, requires_tarp, revenue, delivered_at, completed_at, approved_at, created_at, updated_at`

// SaveLoad inserts or updates a load.
func (q *queries) SaveLoad(ctx context.Context, l freight.Load) error {
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO loads (`+loadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			order_number = excluded.order_number,
			status = excluded.status,
			hcr = excluded.hcr,
			trip_number = excluded.trip_number,
			primary_driver_id = excluded.primary_driver_id,
			primary_carrier_id = excluded.primary_carrier_id,
			effective_miles = excluded.effective_miles,
			is_hazmat = excluded.is_hazmat,
			requires_tarp = excluded.requires_tarp,
			revenue = excluded.revenue,
			delivered_at = excluded.delivered_at,
			completed_at = excluded.completed_at,
			approved_at = excluded.approved_at,
			updated_at = excluded.updated_at
	`,
		l.ID, l.OrgID, l.OrderNumber, l.Status, nullString(l.HCR), nullString(l.TripNumber),
		nullString(l.PrimaryDriverID), nullString(l.PrimaryCarrierID), l.EffectiveMiles.String(),
		l.IsHazmat, l.RequiresTarp, nullDecimal(l.Revenue), nullTime(l.DeliveredAt),
		nullTime(l.CompletedAt), nullTime(l.ApprovedAt), formatTime(l.CreatedAt), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to save load: %w", err)
	}
	return nil
}

// GetLoad retrieves a load by ID.
func (q *queries) GetLoad(ctx context.Context, id string) (*freight.Load, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+loadColumns+" FROM loads WHERE id = ?", id)
	l, err := scanLoad(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLoads returns an org's loads, optionally filtered by status.
func (q *queries) ListLoads(ctx context.Context, orgID string, status freight.LoadStatus) ([]freight.Load, error) {
	query := "SELECT " + loadColumns + " FROM loads WHERE org_id = ?"
	args := []any{orgID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loads: %w", err)
	}
	defer rows.Close()

	var loads []freight.Load
	for rows.Next() {
		l, err := scanLoad(rows)
		if err != nil {
			return nil, err
		}
		loads = append(loads, l)
	}
	return loads, rows.Err()
}

func scanLoad(row rowScanner) (freight.Load, error) {
	var (
		l                                         freight.Load
		hcr, trip, driverID, carrierID            sql.NullString
		miles                                     string
		revenue, deliveredAt, completedAt, apprAt sql.NullString
		createdAt, updatedAt                      string
	)
	err := row.Scan(&l.ID, &l.OrgID, &l.OrderNumber, &l.Status, &hcr, &trip, &driverID, &carrierID,
		&miles, &l.IsHazmat, &l.RequiresTarp, &revenue, &deliveredAt, &completedAt, &apprAt,
		&createdAt, &updatedAt)
	if err != nil {
		return l, err
	}
	l.HCR = hcr.String
	l.TripNumber = trip.String
	l.PrimaryDriverID = driverID.String
	l.PrimaryCarrierID = carrierID.String
	l.EffectiveMiles = generic.MustParseDecimal(miles)
	l.Revenue = parseNullDecimal(revenue)
	l.DeliveredAt = parseNullTime(deliveredAt)
	l.CompletedAt = parseNullTime(completedAt)
	l.ApprovedAt = parseNullTime(apprAt)
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return l, nil
}

const stopColumns = `id, load_id, org_id, sequence_number, stop_type, city, state,
	window_begin_date, window_begin_time, window_end_date, window_end_time, checked_in_at, checked_out_at`

// SaveStop inserts or updates a stop.
func (q *queries) SaveStop(ctx context.Context, s freight.Stop) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO stops (`+stopColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sequence_number = excluded.sequence_number,
			stop_type = excluded.stop_type,
			city = excluded.city,
			state = excluded.state,
			window_begin_date = excluded.window_begin_date,
			window_begin_time = excluded.window_begin_time,
			window_end_date = excluded.window_end_date,
			window_end_time = excluded.window_end_time,
			checked_in_at = excluded.checked_in_at,
			checked_out_at = excluded.checked_out_at
	`,
		s.ID, s.LoadID, s.OrgID, s.SequenceNumber, s.StopType, nullString(s.City), nullString(s.State),
		nullString(s.WindowBeginDate), nullString(s.WindowBeginTime), nullString(s.WindowEndDate),
		nullString(s.WindowEndTime), nullTime(s.CheckedInAt), nullTime(s.CheckedOutAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save stop: %w", err)
	}
	return nil
}

// ListStops returns a load's stops ordered by sequence number.
func (q *queries) ListStops(ctx context.Context, loadID string) ([]freight.Stop, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+stopColumns+" FROM stops WHERE load_id = ? ORDER BY sequence_number", loadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stops: %w", err)
	}
	defer rows.Close()

	var stops []freight.Stop
	for rows.Next() {
		var (
			s                                              freight.Stop
			city, state, beginDate, beginTime, endDate, endTime sql.NullString
			checkedIn, checkedOut                          sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.LoadID, &s.OrgID, &s.SequenceNumber, &s.StopType, &city, &state,
			&beginDate, &beginTime, &endDate, &endTime, &checkedIn, &checkedOut); err != nil {
			return nil, fmt.Errorf("failed to scan stop: %w", err)
		}
		s.City = city.String
		s.State = state.String
		s.WindowBeginDate = beginDate.String
		s.WindowBeginTime = beginTime.String
		s.WindowEndDate = endDate.String
		s.WindowEndTime = endTime.String
		s.CheckedInAt = parseNullTime(checkedIn)
		s.CheckedOutAt = parseNullTime(checkedOut)
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// =============================================================================
// LEGS
// =============================================================================

const legColumns = `id, load_id, org_id, driver_id, carrier_partnership_id, truck_id, trailer_id, sequence,
	start_stop_id, end_stop_id, loaded_miles, empty_miles, status, pay_warning, created_at, updated_at`

// SaveLeg inserts or updates a leg.
func (q *queries) SaveLeg(ctx context.Context, l freight.Leg) error {
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO legs (`+legColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			driver_id = excluded.driver_id,
			carrier_partnership_id = excluded.carrier_partnership_id,
			truck_id = excluded.truck_id,
			trailer_id = excluded.trailer_id,
			sequence = excluded.sequence,
			start_stop_id = excluded.start_stop_id,
			end_stop_id = excluded.end_stop_id,
			loaded_miles = excluded.loaded_miles,
			empty_miles = excluded.empty_miles,
			status = excluded.status,
			pay_warning = excluded.pay_warning,
			updated_at = excluded.updated_at
	`,
		l.ID, l.LoadID, l.OrgID, nullString(l.DriverID), nullString(l.CarrierPartnershipID),
		nullString(l.TruckID), nullString(l.TrailerID), l.Sequence, l.StartStopID, l.EndStopID,
		l.LoadedMiles.String(), l.EmptyMiles.String(), l.Status, nullString(l.PayWarning),
		formatTime(l.CreatedAt), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to save leg: %w", err)
	}
	return nil
}

// GetLeg retrieves a leg by ID.
func (q *queries) GetLeg(ctx context.Context, id string) (*freight.Leg, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+legColumns+" FROM legs WHERE id = ?", id)
	l, err := scanLeg(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLegsByLoad returns a load's legs ordered by sequence.
func (q *queries) ListLegsByLoad(ctx context.Context, loadID string) ([]freight.Leg, error) {
	return q.queryLegs(ctx, "SELECT "+legColumns+" FROM legs WHERE load_id = ? ORDER BY sequence", loadID)
}

// ListOpenLegsByDriver returns PENDING/ACTIVE legs held by a driver.
func (q *queries) ListOpenLegsByDriver(ctx context.Context, driverID string) ([]freight.Leg, error) {
	return q.queryLegs(ctx, "SELECT "+legColumns+` FROM legs
		WHERE driver_id = ? AND status IN ('PENDING', 'ACTIVE') ORDER BY load_id, sequence`, driverID)
}

// ListOpenLegsByCarrier returns PENDING/ACTIVE legs held by a carrier partnership.
func (q *queries) ListOpenLegsByCarrier(ctx context.Context, partnershipID string) ([]freight.Leg, error) {
	return q.queryLegs(ctx, "SELECT "+legColumns+` FROM legs
		WHERE carrier_partnership_id = ? AND status IN ('PENDING', 'ACTIVE') ORDER BY load_id, sequence`, partnershipID)
}

// ListOpenLegsByOrg returns the org's PENDING/ACTIVE legs that have a driver.
func (q *queries) ListOpenLegsByOrg(ctx context.Context, orgID string) ([]freight.Leg, error) {
	return q.queryLegs(ctx, "SELECT "+legColumns+` FROM legs
		WHERE org_id = ? AND driver_id IS NOT NULL AND status IN ('PENDING', 'ACTIVE')
		ORDER BY driver_id, load_id, sequence`, orgID)
}

func (q *queries) queryLegs(ctx context.Context, query string, args ...any) ([]freight.Leg, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query legs: %w", err)
	}
	defer rows.Close()

	var legs []freight.Leg
	for rows.Next() {
		l, err := scanLeg(rows)
		if err != nil {
			return nil, err
		}
		legs = append(legs, l)
	}
	return legs, rows.Err()
}

func scanLeg(row rowScanner) (freight.Leg, error) {
	var (
		l                                      freight.Leg
		driverID, carrierID, truckID, trailer  sql.NullString
		loaded, empty                          string
		warning                                sql.NullString
		createdAt, updatedAt                   string
	)
	err := row.Scan(&l.ID, &l.LoadID, &l.OrgID, &driverID, &carrierID, &truckID, &trailer, &l.Sequence,
		&l.StartStopID, &l.EndStopID, &loaded, &empty, &l.Status, &warning, &createdAt, &updatedAt)
	if err != nil {
		return l, err
	}
	l.DriverID = driverID.String
	l.CarrierPartnershipID = carrierID.String
	l.TruckID = truckID.String
	l.TrailerID = trailer.String
	l.LoadedMiles = generic.MustParseDecimal(loaded)
	l.EmptyMiles = generic.MustParseDecimal(empty)
	l.PayWarning = warning.String
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return l, nil
}

// =============================================================================
// RATE PROFILES & ASSIGNMENTS
// =============================================================================

const profileColumns = `id, org_id, name, profile_type, pay_basis, is_active, is_default, created_at, updated_at`

// SaveRateProfile upserts a profile and replaces its rules. A default profile
// demotes the previous default of the same org and type.
func (q *queries) SaveRateProfile(ctx context.Context, p freight.RateProfile) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}

	if p.IsDefault {
		if _, err := q.db.ExecContext(ctx, `
			UPDATE rate_profiles SET is_default = 0, updated_at = ?
			WHERE org_id = ? AND profile_type = ? AND id <> ? AND is_default = 1
		`, formatTime(now), p.OrgID, p.ProfileType, p.ID); err != nil {
			return fmt.Errorf("failed to demote default profile: %w", err)
		}
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO rate_profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			profile_type = excluded.profile_type,
			pay_basis = excluded.pay_basis,
			is_active = excluded.is_active,
			is_default = excluded.is_default,
			updated_at = excluded.updated_at
	`,
		p.ID, p.OrgID, p.Name, p.ProfileType, p.PayBasis, p.IsActive, p.IsDefault,
		formatTime(p.CreatedAt), formatTime(now),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s profile for org %s", generic.ErrDefaultConflict, p.ProfileType, p.OrgID)
		}
		return fmt.Errorf("failed to save rate profile: %w", err)
	}

	if _, err := q.db.ExecContext(ctx, "DELETE FROM rate_rules WHERE profile_id = ?", p.ID); err != nil {
		return fmt.Errorf("failed to replace rate rules: %w", err)
	}
	for i, r := range p.Rules {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO rate_rules (id, profile_id, position, name, category, trigger_event, rate, min_threshold, max_cap, is_active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, p.ID, i, r.Name, r.Category, r.Trigger, r.Rate.String(),
			nullDecimal(r.MinThreshold), nullDecimal(r.MaxCap), r.IsActive)
		if err != nil {
			return fmt.Errorf("failed to save rate rule %q: %w", r.Name, err)
		}
	}
	return nil
}

// GetRateProfile retrieves a profile with its rules.
func (q *queries) GetRateProfile(ctx context.Context, id string) (*freight.RateProfile, error) {
	profiles, err := q.queryProfiles(ctx, "SELECT "+profileColumns+" FROM rate_profiles WHERE id = ?", id)
	if err != nil || len(profiles) == 0 {
		return nil, err
	}
	return &profiles[0], nil
}

// ListRateProfiles returns an org's profiles with rules.
func (q *queries) ListRateProfiles(ctx context.Context, orgID string) ([]freight.RateProfile, error) {
	return q.queryProfiles(ctx, "SELECT "+profileColumns+" FROM rate_profiles WHERE org_id = ? ORDER BY name", orgID)
}

// GetDefaultRateProfile returns the org-level default profile of a type.
func (q *queries) GetDefaultRateProfile(ctx context.Context, orgID string, profileType freight.PayeeType) (*freight.RateProfile, error) {
	profiles, err := q.queryProfiles(ctx, "SELECT "+profileColumns+`
		FROM rate_profiles WHERE org_id = ? AND profile_type = ? AND is_default = 1`, orgID, profileType)
	if err != nil || len(profiles) == 0 {
		return nil, err
	}
	return &profiles[0], nil
}

func (q *queries) queryProfiles(ctx context.Context, query string, args ...any) ([]freight.RateProfile, error) {
	profiles, err := q.scanProfiles(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		rules, err := q.listRules(ctx, profiles[i].ID)
		if err != nil {
			return nil, err
		}
		profiles[i].Rules = rules
	}
	return profiles, nil
}

func (q *queries) scanProfiles(ctx context.Context, query string, args ...any) ([]freight.RateProfile, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rate profiles: %w", err)
	}
	defer rows.Close()

	var profiles []freight.RateProfile
	for rows.Next() {
		var p freight.RateProfile
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &p.ProfileType, &p.PayBasis, &p.IsActive, &p.IsDefault,
			&createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rate profile: %w", err)
		}
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (q *queries) listRules(ctx context.Context, profileID string) ([]freight.RateRule, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, profile_id, name, category, trigger_event, rate, min_threshold, max_cap, is_active
		FROM rate_rules WHERE profile_id = ? ORDER BY position
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rate rules: %w", err)
	}
	defer rows.Close()

	var rules []freight.RateRule
	for rows.Next() {
		var r freight.RateRule
		var rate string
		var minThreshold, maxCap sql.NullString
		if err := rows.Scan(&r.ID, &r.ProfileID, &r.Name, &r.Category, &r.Trigger, &rate,
			&minThreshold, &maxCap, &r.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan rate rule: %w", err)
		}
		r.Rate = generic.MustParseDecimal(rate)
		r.MinThreshold = parseNullDecimal(minThreshold)
		r.MaxCap = parseNullDecimal(maxCap)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// SaveProfileAssignment upserts an assignment. A default assignment demotes
// the subject's previous default.
func (q *queries) SaveProfileAssignment(ctx context.Context, a freight.ProfileAssignment) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	if a.IsDefault {
		if _, err := q.db.ExecContext(ctx, `
			UPDATE profile_assignments SET is_default = 0
			WHERE subject_type = ? AND subject_id = ? AND id <> ? AND is_default = 1
		`, a.SubjectType, a.SubjectID, a.ID); err != nil {
			return fmt.Errorf("failed to demote default assignment: %w", err)
		}
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO profile_assignments (id, org_id, subject_type, subject_id, profile_id, strategy, threshold_miles, is_default, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			profile_id = excluded.profile_id,
			strategy = excluded.strategy,
			threshold_miles = excluded.threshold_miles,
			is_default = excluded.is_default
	`,
		a.ID, a.OrgID, a.SubjectType, a.SubjectID, a.ProfileID, a.Strategy,
		nullDecimal(a.ThresholdMiles), a.IsDefault, formatTime(a.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: assignment for %s %s", generic.ErrDefaultConflict, a.SubjectType, a.SubjectID)
		}
		return fmt.Errorf("failed to save profile assignment: %w", err)
	}
	return nil
}

// ListProfileAssignments returns a subject's assignments, default first.
func (q *queries) ListProfileAssignments(ctx context.Context, subjectType freight.PayeeType, subjectID string) ([]freight.ProfileAssignment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, org_id, subject_type, subject_id, profile_id, strategy, threshold_miles, is_default, created_at
		FROM profile_assignments WHERE subject_type = ? AND subject_id = ?
		ORDER BY is_default DESC, created_at
	`, subjectType, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query profile assignments: %w", err)
	}
	defer rows.Close()

	var out []freight.ProfileAssignment
	for rows.Next() {
		var a freight.ProfileAssignment
		var threshold sql.NullString
		var createdAt string
		if err := rows.Scan(&a.ID, &a.OrgID, &a.SubjectType, &a.SubjectID, &a.ProfileID, &a.Strategy,
			&threshold, &a.IsDefault, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile assignment: %w", err)
		}
		a.ThresholdMiles = parseNullDecimal(threshold)
		a.CreatedAt = parseTime(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// PAYABLES
// =============================================================================

const payableColumns = `id, org_id, payee_type, payee_id, load_id, leg_id, description, quantity, rate, total_amount,
	source_type, category, is_locked, locked_by_settlement, settlement_id, held_from_settlement_id,
	is_rebillable, rebill_customer_id, receipt_url, rule_id, warning_message, created_by, created_at, updated_at`

// SavePayable inserts or updates a payable.
func (q *queries) SavePayable(ctx context.Context, p freight.Payable) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO payables (`+payableColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			load_id = excluded.load_id,
			leg_id = excluded.leg_id,
			description = excluded.description,
			quantity = excluded.quantity,
			rate = excluded.rate,
			total_amount = excluded.total_amount,
			category = excluded.category,
			is_locked = excluded.is_locked,
			locked_by_settlement = excluded.locked_by_settlement,
			settlement_id = excluded.settlement_id,
			held_from_settlement_id = excluded.held_from_settlement_id,
			is_rebillable = excluded.is_rebillable,
			rebill_customer_id = excluded.rebill_customer_id,
			receipt_url = excluded.receipt_url,
			warning_message = excluded.warning_message,
			updated_at = excluded.updated_at
	`,
		p.ID, p.OrgID, p.PayeeType, p.PayeeID, nullString(p.LoadID), nullString(p.LegID), p.Description,
		p.Quantity.String(), p.Rate.String(), p.TotalAmount.String(), p.SourceType, nullString(string(p.Category)),
		p.IsLocked, p.LockedBySettlement, nullString(p.SettlementID), nullString(p.HeldFromSettlementID),
		p.IsRebillable, nullString(p.RebillCustomerID), nullString(p.ReceiptURL), nullString(p.RuleID),
		nullString(p.WarningMessage), nullString(p.CreatedBy), formatTime(p.CreatedAt), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to save payable: %w", err)
	}
	return nil
}

// GetPayable retrieves a payable by ID.
func (q *queries) GetPayable(ctx context.Context, id string) (*freight.Payable, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+payableColumns+" FROM payables WHERE id = ?", id)
	p, err := scanPayable(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePayable removes a payable row.
func (q *queries) DeletePayable(ctx context.Context, id string) error {
	if _, err := q.db.ExecContext(ctx, "DELETE FROM payables WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete payable: %w", err)
	}
	return nil
}

// ListPayablesByLeg returns a leg's payables.
func (q *queries) ListPayablesByLeg(ctx context.Context, legID string) ([]freight.Payable, error) {
	return q.queryPayables(ctx, "SELECT "+payableColumns+" FROM payables WHERE leg_id = ? ORDER BY created_at, id", legID)
}

// ListPayablesByLoad returns a load's payables.
func (q *queries) ListPayablesByLoad(ctx context.Context, loadID string) ([]freight.Payable, error) {
	return q.queryPayables(ctx, "SELECT "+payableColumns+" FROM payables WHERE load_id = ? ORDER BY created_at, id", loadID)
}

// ListPayablesBySettlement returns a settlement's member payables.
func (q *queries) ListPayablesBySettlement(ctx context.Context, settlementID string) ([]freight.Payable, error) {
	return q.queryPayables(ctx, "SELECT "+payableColumns+" FROM payables WHERE settlement_id = ? ORDER BY created_at, id", settlementID)
}

// ListPayablesByPayee returns every payable of a driver or carrier.
func (q *queries) ListPayablesByPayee(ctx context.Context, payeeType freight.PayeeType, payeeID string) ([]freight.Payable, error) {
	return q.queryPayables(ctx, "SELECT "+payableColumns+`
		FROM payables WHERE payee_type = ? AND payee_id = ? ORDER BY created_at, id`, payeeType, payeeID)
}

func (q *queries) queryPayables(ctx context.Context, query string, args ...any) ([]freight.Payable, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payables: %w", err)
	}
	defer rows.Close()

	var payables []freight.Payable
	for rows.Next() {
		p, err := scanPayable(rows)
		if err != nil {
			return nil, err
		}
		payables = append(payables, p)
	}
	return payables, rows.Err()
}

func scanPayable(row rowScanner) (freight.Payable, error) {
	var (
		p                                           freight.Payable
		loadID, legID, category                     sql.NullString
		quantity, rate, total                       string
		settlementID, heldFrom                      sql.NullString
		rebillCustomer, receipt, ruleID, warning    sql.NullString
		createdBy                                   sql.NullString
		createdAt, updatedAt                        string
	)
	err := row.Scan(&p.ID, &p.OrgID, &p.PayeeType, &p.PayeeID, &loadID, &legID, &p.Description,
		&quantity, &rate, &total, &p.SourceType, &category, &p.IsLocked, &p.LockedBySettlement,
		&settlementID, &heldFrom, &p.IsRebillable, &rebillCustomer, &receipt, &ruleID, &warning,
		&createdBy, &createdAt, &updatedAt)
	if err != nil {
		return p, err
	}
	p.LoadID = loadID.String
	p.LegID = legID.String
	p.Quantity = generic.MustParseDecimal(quantity)
	p.Rate = generic.MustParseDecimal(rate)
	p.TotalAmount = generic.MustParseDecimal(total)
	p.Category = freight.RuleCategory(category.String)
	p.SettlementID = settlementID.String
	p.HeldFromSettlementID = heldFrom.String
	p.RebillCustomerID = rebillCustomer.String
	p.ReceiptURL = receipt.String
	p.RuleID = ruleID.String
	p.WarningMessage = warning.String
	p.CreatedBy = createdBy.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

const settlementColumns = `id, org_id, payee_type, payee_id, pay_plan_id, period_start, period_end, status,
	statement_number, gross_total, total_miles, total_loads, total_manual_adjustments,
	approved_at, approved_by, paid_at, paid_by, payment_method, payment_reference,
	voided_at, voided_by, void_reason, created_by, created_at, updated_at`

// SaveSettlement inserts or updates a settlement.
func (q *queries) SaveSettlement(ctx context.Context, s freight.Settlement) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}

	var totalLoads sql.NullInt64
	if s.TotalLoads != nil {
		totalLoads = sql.NullInt64{Int64: int64(*s.TotalLoads), Valid: true}
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO settlements (`+settlementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			gross_total = excluded.gross_total,
			total_miles = excluded.total_miles,
			total_loads = excluded.total_loads,
			total_manual_adjustments = excluded.total_manual_adjustments,
			approved_at = excluded.approved_at,
			approved_by = excluded.approved_by,
			paid_at = excluded.paid_at,
			paid_by = excluded.paid_by,
			payment_method = excluded.payment_method,
			payment_reference = excluded.payment_reference,
			voided_at = excluded.voided_at,
			voided_by = excluded.voided_by,
			void_reason = excluded.void_reason,
			updated_at = excluded.updated_at
	`,
		s.ID, s.OrgID, s.PayeeType, s.PayeeID, nullString(s.PayPlanID), formatTime(s.PeriodStart),
		formatTime(s.PeriodEnd), s.Status, s.StatementNumber, nullDecimal(s.GrossTotal),
		nullDecimal(s.TotalMiles), totalLoads, nullDecimal(s.TotalManualAdjustments),
		nullTime(s.ApprovedAt), nullString(s.ApprovedBy), nullTime(s.PaidAt), nullString(s.PaidBy),
		nullString(s.PaymentMethod), nullString(s.PaymentReference), nullTime(s.VoidedAt),
		nullString(s.VoidedBy), nullString(s.VoidReason), nullString(s.CreatedBy),
		formatTime(s.CreatedAt), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to save settlement: %w", err)
	}
	return nil
}

// GetSettlement retrieves a settlement by ID.
func (q *queries) GetSettlement(ctx context.Context, id string) (*freight.Settlement, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+settlementColumns+" FROM settlements WHERE id = ?", id)
	s, err := scanSettlement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSettlement removes a settlement row. Member payables are handled by the caller.
func (q *queries) DeleteSettlement(ctx context.Context, id string) error {
	if _, err := q.db.ExecContext(ctx, "DELETE FROM settlements WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete settlement: %w", err)
	}
	return nil
}

// ListSettlements returns settlements matching the filter, newest period first.
func (q *queries) ListSettlements(ctx context.Context, filter freight.SettlementFilter) ([]freight.Settlement, error) {
	var where []string
	var args []any
	if filter.OrgID != "" {
		where = append(where, "org_id = ?")
		args = append(args, filter.OrgID)
	}
	if filter.PayeeType != "" {
		where = append(where, "payee_type = ?")
		args = append(args, filter.PayeeType)
	}
	if filter.PayeeID != "" {
		where = append(where, "payee_id = ?")
		args = append(args, filter.PayeeID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := "SELECT " + settlementColumns + " FROM settlements"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY period_start DESC, statement_number"

	return q.querySettlements(ctx, query, args...)
}

// FindSettlement returns a payee's non-void settlement starting at periodStart.
func (q *queries) FindSettlement(ctx context.Context, payeeType freight.PayeeType, payeeID string, periodStart time.Time) (*freight.Settlement, error) {
	settlements, err := q.querySettlements(ctx, "SELECT "+settlementColumns+`
		FROM settlements WHERE payee_type = ? AND payee_id = ? AND period_start = ? AND status <> 'VOID'
		ORDER BY created_at LIMIT 1`, payeeType, payeeID, formatTime(periodStart))
	if err != nil || len(settlements) == 0 {
		return nil, err
	}
	return &settlements[0], nil
}

// NextStatementNumber allocates the org's next statement number.
func (q *queries) NextStatementNumber(ctx context.Context, orgID string) (string, error) {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO statement_counters (org_id, last_value) VALUES (?, 1)
		ON CONFLICT(org_id) DO UPDATE SET last_value = last_value + 1
	`, orgID)
	if err != nil {
		return "", fmt.Errorf("failed to allocate statement number: %w", err)
	}
	var n int
	if err := q.db.QueryRowContext(ctx, "SELECT last_value FROM statement_counters WHERE org_id = ?", orgID).Scan(&n); err != nil {
		return "", fmt.Errorf("failed to read statement number: %w", err)
	}
	return fmt.Sprintf("ST-%06d", n), nil
}

func (q *queries) querySettlements(ctx context.Context, query string, args ...any) ([]freight.Settlement, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlements: %w", err)
	}
	defer rows.Close()

	var settlements []freight.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		settlements = append(settlements, s)
	}
	return settlements, rows.Err()
}

func scanSettlement(row rowScanner) (freight.Settlement, error) {
	var (
		s                                        freight.Settlement
		payPlanID                                sql.NullString
		periodStart, periodEnd                   string
		gross, miles, manual                     sql.NullString
		loads                                    sql.NullInt64
		approvedAt, approvedBy, paidAt, paidBy   sql.NullString
		method, reference                        sql.NullString
		voidedAt, voidedBy, voidReason           sql.NullString
		createdBy                                sql.NullString
		createdAt, updatedAt                     string
	)
	err := row.Scan(&s.ID, &s.OrgID, &s.PayeeType, &s.PayeeID, &payPlanID, &periodStart, &periodEnd, &s.Status,
		&s.StatementNumber, &gross, &miles, &loads, &manual, &approvedAt, &approvedBy, &paidAt, &paidBy,
		&method, &reference, &voidedAt, &voidedBy, &voidReason, &createdBy, &createdAt, &updatedAt)
	if err != nil {
		return s, err
	}
	s.PayPlanID = payPlanID.String
	s.PeriodStart = parseTime(periodStart)
	s.PeriodEnd = parseTime(periodEnd)
	s.GrossTotal = parseNullDecimal(gross)
	s.TotalMiles = parseNullDecimal(miles)
	s.TotalManualAdjustments = parseNullDecimal(manual)
	if loads.Valid {
		n := int(loads.Int64)
		s.TotalLoads = &n
	}
	s.ApprovedAt = parseNullTime(approvedAt)
	s.ApprovedBy = approvedBy.String
	s.PaidAt = parseNullTime(paidAt)
	s.PaidBy = paidBy.String
	s.PaymentMethod = method.String
	s.PaymentReference = reference.String
	s.VoidedAt = parseNullTime(voidedAt)
	s.VoidedBy = voidedBy.String
	s.VoidReason = voidReason.String
	s.CreatedBy = createdBy.String
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return s, nil
}

// =============================================================================
// PAY PLANS
// =============================================================================

const planColumns = `id, org_id, name, frequency, anchor_day, anchor_date, cutoff_time, payment_lag_days,
	payable_trigger, auto_carryover, is_active, created_at`

// SavePayPlan inserts or updates a pay plan.
func (q *queries) SavePayPlan(ctx context.Context, p freight.PayPlan) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO pay_plans (`+planColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			frequency = excluded.frequency,
			anchor_day = excluded.anchor_day,
			anchor_date = excluded.anchor_date,
			cutoff_time = excluded.cutoff_time,
			payment_lag_days = excluded.payment_lag_days,
			payable_trigger = excluded.payable_trigger,
			auto_carryover = excluded.auto_carryover,
			is_active = excluded.is_active
	`,
		p.ID, p.OrgID, p.Name, p.Frequency, p.AnchorDay, nullTime(p.AnchorDate), nullString(p.CutoffTime),
		p.PaymentLagDays, p.Trigger(), p.AutoCarryover, p.IsActive, formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save pay plan: %w", err)
	}
	return nil
}

// GetPayPlan retrieves a pay plan by ID.
func (q *queries) GetPayPlan(ctx context.Context, id string) (*freight.PayPlan, error) {
	plans, err := q.queryPlans(ctx, "SELECT "+planColumns+" FROM pay_plans WHERE id = ?", id)
	if err != nil || len(plans) == 0 {
		return nil, err
	}
	return &plans[0], nil
}

// ListPayPlans returns an org's pay plans.
func (q *queries) ListPayPlans(ctx context.Context, orgID string) ([]freight.PayPlan, error) {
	return q.queryPlans(ctx, "SELECT "+planColumns+" FROM pay_plans WHERE org_id = ? ORDER BY name", orgID)
}

func (q *queries) queryPlans(ctx context.Context, query string, args ...any) ([]freight.PayPlan, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pay plans: %w", err)
	}
	defer rows.Close()

	var plans []freight.PayPlan
	for rows.Next() {
		var p freight.PayPlan
		var anchorDate, cutoff sql.NullString
		var createdAt string
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &p.Frequency, &p.AnchorDay, &anchorDate, &cutoff,
			&p.PaymentLagDays, &p.PayableTrigger, &p.AutoCarryover, &p.IsActive, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan pay plan: %w", err)
		}
		p.AnchorDate = parseNullTime(anchorDate)
		p.CutoffTime = cutoff.String
		p.CreatedAt = parseTime(createdAt)
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// =============================================================================
// ROUTE ASSIGNMENTS & AUTO-ASSIGN SETTINGS
// =============================================================================

// SaveRouteAssignment inserts or updates a route assignment.
func (q *queries) SaveRouteAssignment(ctx context.Context, r freight.RouteAssignment) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO route_assignments (id, org_id, hcr, trip_number, driver_id, carrier_partnership_id, priority, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			hcr = excluded.hcr,
			trip_number = excluded.trip_number,
			driver_id = excluded.driver_id,
			carrier_partnership_id = excluded.carrier_partnership_id,
			priority = excluded.priority,
			is_active = excluded.is_active
	`,
		r.ID, r.OrgID, r.HCR, nullString(r.TripNumber), nullString(r.DriverID),
		nullString(r.CarrierPartnershipID), r.Priority, r.IsActive, formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save route assignment: %w", err)
	}
	return nil
}

// ListRouteAssignments returns an org's route assignments ordered by priority.
func (q *queries) ListRouteAssignments(ctx context.Context, orgID, hcr string) ([]freight.RouteAssignment, error) {
	query := `SELECT id, org_id, hcr, trip_number, driver_id, carrier_partnership_id, priority, is_active, created_at
		FROM route_assignments WHERE org_id = ?`
	args := []any{orgID}
	if hcr != "" {
		query += " AND hcr = ?"
		args = append(args, hcr)
	}
	query += " ORDER BY priority, created_at"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query route assignments: %w", err)
	}
	defer rows.Close()

	var out []freight.RouteAssignment
	for rows.Next() {
		var r freight.RouteAssignment
		var trip, driverID, carrierID sql.NullString
		var createdAt string
		if err := rows.Scan(&r.ID, &r.OrgID, &r.HCR, &trip, &driverID, &carrierID, &r.Priority,
			&r.IsActive, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan route assignment: %w", err)
		}
		r.TripNumber = trip.String
		r.DriverID = driverID.String
		r.CarrierPartnershipID = carrierID.String
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetAutoAssignSettings returns an org's auto-assign settings.
func (q *queries) GetAutoAssignSettings(ctx context.Context, orgID string) (*freight.AutoAssignSettings, error) {
	settings, err := q.queryAutoAssign(ctx, `SELECT org_id, trigger_on_create, scheduled_enabled,
		schedule_interval_minutes, last_run_at FROM auto_assign_settings WHERE org_id = ?`, orgID)
	if err != nil || len(settings) == 0 {
		return nil, err
	}
	return &settings[0], nil
}

// SaveAutoAssignSettings inserts or updates an org's auto-assign settings.
func (q *queries) SaveAutoAssignSettings(ctx context.Context, s freight.AutoAssignSettings) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO auto_assign_settings (org_id, trigger_on_create, scheduled_enabled, schedule_interval_minutes, last_run_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(org_id) DO UPDATE SET
			trigger_on_create = excluded.trigger_on_create,
			scheduled_enabled = excluded.scheduled_enabled,
			schedule_interval_minutes = excluded.schedule_interval_minutes,
			last_run_at = excluded.last_run_at
	`, s.OrgID, s.TriggerOnCreate, s.ScheduledEnabled, s.ScheduleIntervalMinutes, nullTime(s.LastRunAt))
	if err != nil {
		return fmt.Errorf("failed to save auto-assign settings: %w", err)
	}
	return nil
}

// ListAutoAssignSettings returns every org's settings.
func (q *queries) ListAutoAssignSettings(ctx context.Context) ([]freight.AutoAssignSettings, error) {
	return q.queryAutoAssign(ctx, `SELECT org_id, trigger_on_create, scheduled_enabled,
		schedule_interval_minutes, last_run_at FROM auto_assign_settings ORDER BY org_id`)
}

func (q *queries) queryAutoAssign(ctx context.Context, query string, args ...any) ([]freight.AutoAssignSettings, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auto-assign settings: %w", err)
	}
	defer rows.Close()

	var out []freight.AutoAssignSettings
	for rows.Next() {
		var s freight.AutoAssignSettings
		var lastRun sql.NullString
		if err := rows.Scan(&s.OrgID, &s.TriggerOnCreate, &s.ScheduledEnabled, &s.ScheduleIntervalMinutes, &lastRun); err != nil {
			return nil, fmt.Errorf("failed to scan auto-assign settings: %w", err)
		}
		s.LastRunAt = parseNullTime(lastRun)
		out = append(out, s)
	}
	return out, rows.Err()
}

// =============================================================================
// AUDIT LOG (generic.AuditLog interface)
// =============================================================================

// AppendAudit writes an audit entry.
func (q *queries) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	before, _ := json.Marshal(e.Before)
	after, _ := json.Marshal(e.After)

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, org_id, entity_type, entity_id, action, performed_by, performed_by_name,
			description, before_json, after_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, nullString(e.OrgID), e.EntityType, e.EntityID, e.Action, nullString(e.PerformedBy),
		nullString(e.PerformedByName), nullString(e.Description), string(before), string(after),
		formatTime(e.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// QueryAudit returns audit entries matching the filter, newest first.
func (q *queries) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	var where []string
	var args []any
	if filter.OrgID != "" {
		where = append(where, "org_id = ?")
		args = append(args, filter.OrgID)
	}
	if filter.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if len(filter.Actions) > 0 {
		placeholders := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			placeholders[i] = "?"
			args = append(args, a)
		}
		where = append(where, "action IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "created_at < ?")
		args = append(args, formatTime(*filter.To))
	}

	query := `SELECT id, org_id, entity_type, entity_id, action, performed_by, performed_by_name,
		description, before_json, after_json, created_at FROM audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []generic.AuditEntry
	for rows.Next() {
		var (
			e                                         generic.AuditEntry
			orgID, by, byName, desc, before, after    sql.NullString
			createdAt                                 string
		)
		if err := rows.Scan(&e.ID, &orgID, &e.EntityType, &e.EntityID, &e.Action, &by, &byName,
			&desc, &before, &after, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.OrgID = orgID.String
		e.PerformedBy = by.String
		e.PerformedByName = byName.String
		e.Description = desc.String
		if before.Valid && before.String != "" && before.String != "null" {
			json.Unmarshal([]byte(before.String), &e.Before)
		}
		if after.Valid && after.String != "" && after.String != "null" {
			json.Unmarshal([]byte(after.String), &e.After)
		}
		e.Timestamp = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDecimal(s sql.NullString) *decimal.Decimal {
	if !s.Valid || s.String == "" {
		return nil
	}
	d := generic.MustParseDecimal(s.String)
	return &d
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
