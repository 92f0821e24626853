package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/ccz-paraguacu/zoonoses/internal/model"
)

const caseColumns = "id, animal_name, species, owner_name, owner_phone, test_method, result, status, notified_at, notes, " +
	locationColumns + ", created_at, updated_at"

func scanCase(row rowScanner) (*model.LeishmaniasisCase, error) {
	var c model.LeishmaniasisCase
	l := &c.Location
	err := row.Scan(
		&c.ID, &c.AnimalName, &c.Species, &c.OwnerName, &c.OwnerPhone,
		&c.TestMethod, &c.Result, &c.Status, &c.NotifiedAt, &c.Notes,
		&l.Address, &l.Area, &l.Block, &l.Latitude, &l.Longitude,
		&l.ResolvedAddress, &l.GeocodeProvider, &l.GeocodeConfidence,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCases returns cases matching filter, most recently notified first.
func (s *PostgresStore) ListCases(ctx context.Context, filter CaseFilter) ([]model.LeishmaniasisCase, error) {
	var w whereBuilder
	caseWhere(&w, filter)
	query := "SELECT " + caseColumns + " FROM leishmaniasis_cases" + w.sql() + w.orderBy("notified_at DESC, id")
	query += w.page(filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cases")
	}
	defer rows.Close()

	var cases []model.LeishmaniasisCase
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan case")
		}
		cases = append(cases, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list cases rows")
	}
	return cases, nil
}

// GetCase returns one case or ErrNotFound.
func (s *PostgresStore) GetCase(ctx context.Context, id string) (*model.LeishmaniasisCase, error) {
	c, err := scanCase(s.pool.QueryRow(ctx, "SELECT "+caseColumns+" FROM leishmaniasis_cases WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get case %s", id)
	}
	return c, nil
}

// CreateCase inserts c, assigning its ID and timestamps.
func (s *PostgresStore) CreateCase(ctx context.Context, c *model.LeishmaniasisCase) error {
	now := s.clock.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt, c.UpdatedAt = now, now
	l := c.Location

	_, err := s.pool.Exec(ctx,
		`INSERT INTO leishmaniasis_cases (`+caseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		c.ID, c.AnimalName, string(c.Species), c.OwnerName, c.OwnerPhone,
		string(c.TestMethod), string(c.Result), string(c.Status), c.NotifiedAt, c.Notes,
		l.Address, l.Area, l.Block, l.Latitude, l.Longitude,
		l.ResolvedAddress, l.GeocodeProvider, l.GeocodeConfidence,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: create case")
	}
	return nil
}

// UpdateCase overwrites every mutable column of c.
func (s *PostgresStore) UpdateCase(ctx context.Context, c *model.LeishmaniasisCase) error {
	c.UpdatedAt = s.clock.Now().UTC()
	l := c.Location

	tag, err := s.pool.Exec(ctx,
		`UPDATE leishmaniasis_cases SET animal_name = $1, species = $2, owner_name = $3, owner_phone = $4,
		test_method = $5, result = $6, status = $7, notified_at = $8, notes = $9,
		address = $10, area = $11, block = $12, latitude = $13, longitude = $14,
		resolved_address = $15, geocode_provider = $16, geocode_confidence = $17, updated_at = $18
		WHERE id = $19`,
		c.AnimalName, string(c.Species), c.OwnerName, c.OwnerPhone,
		string(c.TestMethod), string(c.Result), string(c.Status), c.NotifiedAt, c.Notes,
		l.Address, l.Area, l.Block, l.Latitude, l.Longitude,
		l.ResolvedAddress, l.GeocodeProvider, l.GeocodeConfidence, c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update case %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCase removes a case.
func (s *PostgresStore) DeleteCase(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM leishmaniasis_cases WHERE id = $1", id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete case %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateCaseLocation rewrites only the location columns.
func (s *PostgresStore) UpdateCaseLocation(ctx context.Context, id string, loc model.Location) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leishmaniasis_cases SET address = $1, area = $2, block = $3, latitude = $4, longitude = $5,
		resolved_address = $6, geocode_provider = $7, geocode_confidence = $8, updated_at = $9
		WHERE id = $10`,
		loc.Address, loc.Area, loc.Block, loc.Latitude, loc.Longitude,
		loc.ResolvedAddress, loc.GeocodeProvider, loc.GeocodeConfidence, s.clock.Now().UTC(),
		id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update case location %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CaseStats aggregates counts by status, result and area.
func (s *PostgresStore) CaseStats(ctx context.Context) (*CaseStats, error) {
	rows, err := s.pool.Query(ctx, caseStatsSQL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: case stats")
	}
	defer rows.Close()

	stats := newCaseStats()
	for rows.Next() {
		var (
			status, result, area string
			geocoded             bool
			n                    int64
		)
		if err := rows.Scan(&status, &result, &area, &geocoded, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan case stats")
		}
		stats.add(status, result, area, geocoded, int(n))
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: case stats rows")
	}
	return stats, nil
}
