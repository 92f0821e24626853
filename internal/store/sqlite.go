package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ccz-paraguacu/zoonoses/internal/model"
)

// SQLiteStore implements Store on a local SQLite file, for field laptops
// without a Postgres server.
type SQLiteStore struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	s := &SQLiteStore{db: db, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithSQLiteClock sets the clock used for created_at/updated_at.
func WithSQLiteClock(c clockwork.Clock) SQLiteOption {
	return func(s *SQLiteStore) {
		s.clock = c
	}
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leishmaniasis_cases (
	id                 TEXT PRIMARY KEY,
	animal_name        TEXT NOT NULL,
	species            TEXT NOT NULL,
	owner_name         TEXT NOT NULL DEFAULT '',
	owner_phone        TEXT NOT NULL DEFAULT '',
	test_method        TEXT NOT NULL,
	result             TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'open',
	notified_at        DATETIME NOT NULL,
	notes              TEXT NOT NULL DEFAULT '',
	address            TEXT NOT NULL DEFAULT '',
	area               TEXT NOT NULL DEFAULT '',
	block              TEXT NOT NULL DEFAULT '',
	latitude           REAL,
	longitude          REAL,
	resolved_address   TEXT NOT NULL DEFAULT '',
	geocode_provider   TEXT NOT NULL DEFAULT '',
	geocode_confidence REAL NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_cases_status ON leishmaniasis_cases(status);
CREATE INDEX IF NOT EXISTS idx_cases_area ON leishmaniasis_cases(area);

CREATE TABLE IF NOT EXISTS rabies_vaccinations (
	id                 TEXT PRIMARY KEY,
	animal_name        TEXT NOT NULL,
	species            TEXT NOT NULL,
	owner_name         TEXT NOT NULL DEFAULT '',
	vaccinated_at      DATETIME NOT NULL,
	vaccine_lot        TEXT NOT NULL DEFAULT '',
	campaign           TEXT NOT NULL DEFAULT '',
	address            TEXT NOT NULL DEFAULT '',
	area               TEXT NOT NULL DEFAULT '',
	block              TEXT NOT NULL DEFAULT '',
	latitude           REAL,
	longitude          REAL,
	resolved_address   TEXT NOT NULL DEFAULT '',
	geocode_provider   TEXT NOT NULL DEFAULT '',
	geocode_confidence REAL NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_vaccinations_campaign ON rabies_vaccinations(campaign);
CREATE INDEX IF NOT EXISTS idx_vaccinations_area ON rabies_vaccinations(area);
`

// Migrate creates the tables and indexes if they do not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// Ping checks the database file is usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// placeholders returns n comma-separated ? markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// execOne runs a single-row write and maps zero affected rows to ErrNotFound.
func (s *SQLiteStore) execOne(ctx context.Context, action, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s", action)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s rows affected", action)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCases returns cases matching filter, most recently notified first.
func (s *SQLiteStore) ListCases(ctx context.Context, filter CaseFilter) ([]model.LeishmaniasisCase, error) {
	w := whereBuilder{sqlite: true}
	caseWhere(&w, filter)
	query := "SELECT " + caseColumns + " FROM leishmaniasis_cases" + w.sql() + w.orderBy("notified_at DESC, id")
	query += w.page(filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cases")
	}
	defer rows.Close() //nolint:errcheck

	var cases []model.LeishmaniasisCase
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan case")
		}
		cases = append(cases, *c)
	}
	return cases, eris.Wrap(rows.Err(), "sqlite: list cases rows")
}

// GetCase returns one case or ErrNotFound.
func (s *SQLiteStore) GetCase(ctx context.Context, id string) (*model.LeishmaniasisCase, error) {
	c, err := scanCase(s.db.QueryRowContext(ctx, "SELECT "+caseColumns+" FROM leishmaniasis_cases WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get case %s", id)
	}
	return c, nil
}

// CreateCase inserts c, assigning its ID and timestamps.
func (s *SQLiteStore) CreateCase(ctx context.Context, c *model.LeishmaniasisCase) error {
	now := s.clock.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt, c.UpdatedAt = now, now
	l := c.Location

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO leishmaniasis_cases ("+caseColumns+") VALUES ("+placeholders(20)+")",
		c.ID, c.AnimalName, string(c.Species), c.OwnerName, c.OwnerPhone,
		string(c.TestMethod), string(c.Result), string(c.Status), c.NotifiedAt, c.Notes,
		l.Address, l.Area, l.Block, l.Latitude, l.Longitude,
		l.ResolvedAddress, l.GeocodeProvider, l.GeocodeConfidence,
		c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: create case")
}

// UpdateCase overwrites every mutable column of c.
func (s *SQLiteStore) UpdateCase(ctx context.Context, c *model.LeishmaniasisCase) error {
	c.UpdatedAt = s.clock.Now().UTC()
	l := c.Location
	return s.execOne(ctx, "update case",
		`UPDATE leishmaniasis_cases SET animal_name = ?, species = ?, owner_name = ?, owner_phone = ?,
		test_method = ?, result = ?, status = ?, notified_at = ?, notes = ?,
		address = ?, area = ?, block = ?, latitude = ?, longitude = ?,
		resolved_address = ?, geocode_provider = ?, geocode_confidence = ?, updated_at = ?
		WHERE id = ?`,
		c.AnimalName, string(c.Species), c.OwnerName, c.OwnerPhone,
		string(c.TestMethod), string(c.Result), string(c.Status), c.NotifiedAt, c.Notes,
		l.Address, l.Area, l.Block, l.Latitude, l.Longitude,
		l.ResolvedAddress, l.GeocodeProvider, l.GeocodeConfidence, c.UpdatedAt,
		c.ID,
	)
}

// DeleteCase removes a case.
func (s *SQLiteStore) DeleteCase(ctx context.Context, id string) error {
	return s.execOne(ctx, "delete case", "DELETE FROM leishmaniasis_cases WHERE id = ?", id)
}

// UpdateCaseLocation rewrites only the location columns.
func (s *SQLiteStore) UpdateCaseLocation(ctx context.Context, id string, loc model.Location) error {
	return s.execOne(ctx, "update case location",
		`UPDATE leishmaniasis_cases SET address = ?, area = ?, block = ?, latitude = ?, longitude = ?,
		resolved_address = ?, geocode_provider = ?, geocode_confidence = ?, updated_at = ?
		WHERE id = ?`,
		loc.Address, loc.Area, loc.Block, loc.Latitude, loc.Longitude,
		loc.ResolvedAddress, loc.GeocodeProvider, loc.GeocodeConfidence, s.clock.Now().UTC(),
		id,
	)
}

// CaseStats aggregates counts by status, result and area.
func (s *SQLiteStore) CaseStats(ctx context.Context) (*CaseStats, error) {
	rows, err := s.db.QueryContext(ctx, caseStatsSQL)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: case stats")
	}
	defer rows.Close() //nolint:errcheck

	stats := newCaseStats()
	for rows.Next() {
		var (
			status, result, area string
			geocoded             bool
			n                    int64
		)
		if err := rows.Scan(&status, &result, &area, &geocoded, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan case stats")
		}
		stats.add(status, result, area, geocoded, int(n))
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: case stats rows")
	}
	return stats, nil
}

// ListVaccinations returns vaccinations matching filter, most recent first.
func (s *SQLiteStore) ListVaccinations(ctx context.Context, filter VaccinationFilter) ([]model.RabiesVaccination, error) {
	w := whereBuilder{sqlite: true}
	vaccinationWhere(&w, filter)
	query := "SELECT " + vaccinationColumns + " FROM rabies_vaccinations" + w.sql() + w.orderBy("vaccinated_at DESC, id")
	query += w.page(filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list vaccinations")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RabiesVaccination
	for rows.Next() {
		v, err := scanVaccination(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vaccination")
		}
		out = append(out, *v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list vaccinations rows")
}

// GetVaccination returns one vaccination or ErrNotFound.
func (s *SQLiteStore) GetVaccination(ctx context.Context, id string) (*model.RabiesVaccination, error) {
	v, err := scanVaccination(s.db.QueryRowContext(ctx, "SELECT "+vaccinationColumns+" FROM rabies_vaccinations WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get vaccination %s", id)
	}
	return v, nil
}

// CreateVaccination inserts v, assigning its ID and creation time.
func (s *SQLiteStore) CreateVaccination(ctx context.Context, v *model.RabiesVaccination) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.CreatedAt = s.clock.Now().UTC()
	l := v.Location
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO rabies_vaccinations ("+vaccinationColumns+") VALUES ("+placeholders(len(VaccinationColumns))+")",
		v.ID, v.AnimalName, string(v.Species), v.OwnerName, v.VaccinatedAt, v.VaccineLot, v.Campaign,
		l.Address, l.Area, l.Block, l.Latitude, l.Longitude, l.ResolvedAddress, l.GeocodeProvider, l.GeocodeConfidence,
		v.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: create vaccination")
}

// UpdateVaccination overwrites every mutable column of v.
func (s *SQLiteStore) UpdateVaccination(ctx context.Context, v *model.RabiesVaccination) error {
	l := v.Location
	return s.execOne(ctx, "update vaccination",
		`UPDATE rabies_vaccinations SET animal_name = ?, species = ?, owner_name = ?, vaccinated_at = ?,
		vaccine_lot = ?, campaign = ?, address = ?, area = ?, block = ?, latitude = ?, longitude = ?,
		resolved_address = ?, geocode_provider = ?, geocode_confidence = ?
		WHERE id = ?`,
		v.AnimalName, string(v.Species), v.OwnerName, v.VaccinatedAt, v.VaccineLot, v.Campaign,
		l.Address, l.Area, l.Block, l.Latitude, l.Longitude,
		l.ResolvedAddress, l.GeocodeProvider, l.GeocodeConfidence,
		v.ID,
	)
}

// DeleteVaccination removes a vaccination.
func (s *SQLiteStore) DeleteVaccination(ctx context.Context, id string) error {
	return s.execOne(ctx, "delete vaccination", "DELETE FROM rabies_vaccinations WHERE id = ?", id)
}

// UpdateVaccinationLocation rewrites only the location columns.
func (s *SQLiteStore) UpdateVaccinationLocation(ctx context.Context, id string, loc model.Location) error {
	return s.execOne(ctx, "update vaccination location",
		`UPDATE rabies_vaccinations SET address = ?, area = ?, block = ?, latitude = ?, longitude = ?,
		resolved_address = ?, geocode_provider = ?, geocode_confidence = ?
		WHERE id = ?`,
		loc.Address, loc.Area, loc.Block, loc.Latitude, loc.Longitude,
		loc.ResolvedAddress, loc.GeocodeProvider, loc.GeocodeConfidence,
		id,
	)
}

// ImportVaccinations upserts vs by ID in one transaction. Existing rows
// keep their coordinates and only take new ones while they have none.
func (s *SQLiteStore) ImportVaccinations(ctx context.Context, vs []model.RabiesVaccination) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO rabies_vaccinations ("+vaccinationColumns+") VALUES ("+
		placeholders(len(VaccinationColumns))+") ON CONFLICT (id) DO UPDATE SET "+vaccinationConflictSet())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import prepare")
	}
	defer stmt.Close() //nolint:errcheck

	now := s.clock.Now().UTC()
	var n int64
	for i := range vs {
		v := &vs[i]
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		if v.CreatedAt.IsZero() {
			v.CreatedAt = now
		}
		l := v.Location
		if _, err := stmt.ExecContext(ctx,
			v.ID, v.AnimalName, string(v.Species), v.OwnerName, v.VaccinatedAt, v.VaccineLot, v.Campaign,
			l.Address, l.Area, l.Block, l.Latitude, l.Longitude, l.ResolvedAddress, l.GeocodeProvider, l.GeocodeConfidence,
			v.CreatedAt,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: import vaccination %s", v.ID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import commit")
	}
	return n, nil
}

func vaccinationConflictSet() string {
	sets := make([]string, 0, len(vaccinationUpdateCols)+len(vaccinationFillCols))
	for _, c := range vaccinationUpdateCols {
		sets = append(sets, c+" = excluded."+c)
	}
	for _, c := range vaccinationFillCols {
		sets = append(sets, fmt.Sprintf("%[1]s = CASE WHEN rabies_vaccinations.latitude IS NULL THEN excluded.%[1]s ELSE rabies_vaccinations.%[1]s END", c))
	}
	return strings.Join(sets, ", ")
}

var _ Store = (*SQLiteStore)(nil)
