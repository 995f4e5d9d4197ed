package hydro

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// timeLayout is fixed-width so stored timestamps sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store persists systems and measurements.
//
// Methods taking an ownerID only see rows in that owner's visible set and
// report anything else as ErrNotFound. GetSystem is the one unscoped lookup;
// it exists so the service can tell a missing system from a foreign one.
type Store interface {
	CreateSystem(ctx context.Context, sys *System) error
	GetSystem(ctx context.Context, id int64) (*System, error)
	FindSystem(ctx context.Context, ownerID string, id int64) (*System, error)
	FindSystemByName(ctx context.Context, ownerID, name string) (*System, error)
	ListSystems(ctx context.Context, ownerID string, f SystemFilter, limit, offset int) ([]System, int, error)
	UpdateSystem(ctx context.Context, sys *System) error
	DeleteSystem(ctx context.Context, ownerID string, id int64) error

	CreateMeasurement(ctx context.Context, m *Measurement) error
	FindMeasurement(ctx context.Context, ownerID string, id int64) (*Measurement, error)
	ListMeasurements(ctx context.Context, ownerID string, f MeasurementFilter, order []OrderField, limit, offset int) ([]Measurement, int, error)
	LatestMeasurements(ctx context.Context, systemID int64, n int) ([]Measurement, error)
	UpdateMeasurement(ctx context.Context, m *Measurement) error
	DeleteMeasurement(ctx context.Context, ownerID string, id int64) error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const systemColumns = `s.id, s.owner_id, u.username, s.name, s.description, s.created_at, s.updated_at`

const systemFrom = `FROM hydroponic_systems s JOIN users u ON u.id = s.owner_id`

const measurementColumns = `m.id, m.system_id, s.owner_id, m.ph, m.temperature, m.tds, m.timestamp`

const measurementFrom = `FROM measurements m JOIN hydroponic_systems s ON s.id = m.system_id`

// CreateSystem inserts a system and assigns its ID.
func (r *SQLiteStore) CreateSystem(ctx context.Context, sys *System) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO hydroponic_systems (owner_id, name, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sys.OwnerID, sys.Name, nullStr(sys.Description),
		formatTime(sys.CreatedAt), formatTime(sys.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting system: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading system id: %w", err)
	}
	sys.ID = id
	return nil
}

// GetSystem returns a system regardless of owner.
func (r *SQLiteStore) GetSystem(ctx context.Context, id int64) (*System, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+systemColumns+` `+systemFrom+` WHERE s.id = ?`, id)
	return scanSystem(row)
}

// FindSystem returns a system only if ownerID owns it.
func (r *SQLiteStore) FindSystem(ctx context.Context, ownerID string, id int64) (*System, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+systemColumns+` `+systemFrom+` WHERE s.owner_id = ? AND s.id = ?`, ownerID, id)
	return scanSystem(row)
}

// FindSystemByName returns the owner's system with exactly this name.
// When several share the name the oldest one wins.
func (r *SQLiteStore) FindSystemByName(ctx context.Context, ownerID, name string) (*System, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+systemColumns+` `+systemFrom+` WHERE s.owner_id = ? AND s.name = ? ORDER BY s.id LIMIT 1`,
		ownerID, name)
	return scanSystem(row)
}

// ListSystems returns one page of the owner's systems ordered by name, and
// the total number of matches.
func (r *SQLiteStore) ListSystems(ctx context.Context, ownerID string, f SystemFilter, limit, offset int) ([]System, int, error) {
	// The owner predicate always comes first; user filters only narrow it.
	conds := []string{"s.owner_id = ?"}
	args := []any{ownerID}

	addTime := func(cond string, t *time.Time) {
		if t != nil {
			conds = append(conds, cond)
			args = append(args, formatTime(*t))
		}
	}
	addTime("s.created_at >= ?", f.CreatedAfter)
	addTime("s.created_at <= ?", f.CreatedBefore)
	addTime("s.updated_at >= ?", f.UpdatedAfter)
	addTime("s.updated_at <= ?", f.UpdatedBefore)

	for _, term := range f.searchTerms() {
		conds = append(conds, "(instr(fold(s.name), fold(?)) > 0 OR instr(fold(COALESCE(s.description, '')), fold(?)) > 0)")
		args = append(args, term, term)
	}

	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hydroponic_systems s`+where, args...).Scan(&total); err != nil { //nolint:gosec // WHERE built from parameterised conditions
		return nil, 0, fmt.Errorf("counting systems: %w", err)
	}

	query := `SELECT ` + systemColumns + ` ` + systemFrom + where + ` ORDER BY s.name ASC, s.id ASC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...) //nolint:gosec // WHERE built from parameterised conditions
	if err != nil {
		return nil, 0, fmt.Errorf("listing systems: %w", err)
	}
	defer rows.Close()

	systems := []System{}
	for rows.Next() {
		sys, err := scanSystem(rows)
		if err != nil {
			return nil, 0, err
		}
		systems = append(systems, *sys)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating systems: %w", err)
	}
	return systems, total, nil
}

// UpdateSystem writes name, description and updated_at.
func (r *SQLiteStore) UpdateSystem(ctx context.Context, sys *System) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE hydroponic_systems SET name = ?, description = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		sys.Name, nullStr(sys.Description), formatTime(sys.UpdatedAt), sys.ID, sys.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("updating system %d: %w", sys.ID, err)
	}
	return requireRow(res)
}

// DeleteSystem removes a system; its measurements go with it via the
// foreign key cascade, in the same statement.
func (r *SQLiteStore) DeleteSystem(ctx context.Context, ownerID string, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM hydroponic_systems WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting system %d: %w", id, err)
	}
	return requireRow(res)
}

// CreateMeasurement inserts a measurement and assigns its ID.
func (r *SQLiteStore) CreateMeasurement(ctx context.Context, m *Measurement) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO measurements (system_id, ph, temperature, tds, timestamp) VALUES (?, ?, ?, ?, ?)`,
		m.SystemID, nullFloat(m.PH), nullFloat(m.Temperature), nullFloat(m.TDS), formatTime(m.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("inserting measurement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading measurement id: %w", err)
	}
	m.ID = id
	return nil
}

// FindMeasurement returns a measurement only if ownerID owns its system.
func (r *SQLiteStore) FindMeasurement(ctx context.Context, ownerID string, id int64) (*Measurement, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+measurementColumns+` `+measurementFrom+` WHERE s.owner_id = ? AND m.id = ?`, ownerID, id)
	return scanMeasurement(row)
}

// ListMeasurements returns one page of measurements under the owner's
// systems, and the total number of matches.
func (r *SQLiteStore) ListMeasurements(ctx context.Context, ownerID string, f MeasurementFilter, order []OrderField, limit, offset int) ([]Measurement, int, error) {
	conds := []string{"s.owner_id = ?"}
	args := []any{ownerID}

	if f.SystemID != nil {
		conds = append(conds, "m.system_id = ?")
		args = append(args, *f.SystemID)
	}
	addRange := func(column string, fr FloatRange) {
		if fr.Min != nil {
			conds = append(conds, column+" >= ?")
			args = append(args, *fr.Min)
		}
		if fr.Max != nil {
			conds = append(conds, column+" <= ?")
			args = append(args, *fr.Max)
		}
	}
	addRange("m.ph", f.PH)
	addRange("m.temperature", f.Temperature)
	addRange("m.tds", f.TDS)

	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) `+measurementFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting measurements: %w", err)
	}

	query := `SELECT ` + measurementColumns + ` ` + measurementFrom + where + ` ORDER BY ` + orderClause(order) + ` LIMIT ? OFFSET ?`
	measurements, err := r.queryMeasurements(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return measurements, total, nil
}

// LatestMeasurements returns up to n measurements of a system, newest first.
func (r *SQLiteStore) LatestMeasurements(ctx context.Context, systemID int64, n int) ([]Measurement, error) {
	query := `SELECT ` + measurementColumns + ` ` + measurementFrom +
		` WHERE m.system_id = ? ORDER BY m.timestamp DESC, m.id DESC LIMIT ?`
	return r.queryMeasurements(ctx, query, systemID, n)
}

// UpdateMeasurement writes the system reference and readings.
// The timestamp is never changed.
func (r *SQLiteStore) UpdateMeasurement(ctx context.Context, m *Measurement) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE measurements SET system_id = ?, ph = ?, temperature = ?, tds = ? WHERE id = ?`,
		m.SystemID, nullFloat(m.PH), nullFloat(m.Temperature), nullFloat(m.TDS), m.ID,
	)
	if err != nil {
		return fmt.Errorf("updating measurement %d: %w", m.ID, err)
	}
	return requireRow(res)
}

// DeleteMeasurement removes a measurement under one of the owner's systems.
func (r *SQLiteStore) DeleteMeasurement(ctx context.Context, ownerID string, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM measurements WHERE id = ?
		 AND system_id IN (SELECT id FROM hydroponic_systems WHERE owner_id = ?)`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting measurement %d: %w", id, err)
	}
	return requireRow(res)
}

func (r *SQLiteStore) queryMeasurements(ctx context.Context, query string, args ...any) ([]Measurement, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying measurements: %w", err)
	}
	defer rows.Close()

	measurements := []Measurement{}
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, err
		}
		measurements = append(measurements, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating measurements: %w", err)
	}
	return measurements, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

func scanSystem(s scanner) (*System, error) {
	var sys System
	var description sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&sys.ID, &sys.OwnerID, &sys.Owner, &sys.Name, &description, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning system: %w", err)
	}
	if description.Valid {
		sys.Description = &description.String
	}
	if sys.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sys.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &sys, nil
}

func scanMeasurement(s scanner) (*Measurement, error) {
	var m Measurement
	var ph, temperature, tds sql.NullFloat64
	var timestamp string

	err := s.Scan(&m.ID, &m.SystemID, &m.OwnerID, &ph, &temperature, &tds, &timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning measurement: %w", err)
	}
	m.PH = floatPtr(ph)
	m.Temperature = floatPtr(temperature)
	m.TDS = floatPtr(tds)
	if m.Timestamp, err = parseTime(timestamp); err != nil {
		return nil, err
	}
	return &m, nil
}

// requireRow maps "no row affected" to ErrNotFound.
func requireRow(res sql.Result) error {
	n, _ := res.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
