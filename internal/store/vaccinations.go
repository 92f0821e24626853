package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/ccz-paraguacu/zoonoses/internal/db"
	"github.com/ccz-paraguacu/zoonoses/internal/model"
)

// VaccinationTable is the rabies vaccination table name, used by bulk loads.
const VaccinationTable = "rabies_vaccinations"

// VaccinationColumns lists the vaccination columns in scan and row order.
var VaccinationColumns = []string{
	"id", "animal_name", "species", "owner_name", "vaccinated_at", "vaccine_lot", "campaign",
	"address", "area", "block", "latitude", "longitude", "resolved_address", "geocode_provider", "geocode_confidence",
	"created_at",
}

const vaccinationColumns = "id, animal_name, species, owner_name, vaccinated_at, vaccine_lot, campaign, " +
	locationColumns + ", created_at"

func scanVaccination(row rowScanner) (*model.RabiesVaccination, error) {
	var v model.RabiesVaccination
	l := &v.Location
	err := row.Scan(
		&v.ID, &v.AnimalName, &v.Species, &v.OwnerName, &v.VaccinatedAt, &v.VaccineLot, &v.Campaign,
		&l.Address, &l.Area, &l.Block, &l.Latitude, &l.Longitude,
		&l.ResolvedAddress, &l.GeocodeProvider, &l.GeocodeConfidence,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// vaccinationRow flattens v into VaccinationColumns order. It assigns an ID
// and creation time when missing.
func (s *PostgresStore) vaccinationRow(v *model.RabiesVaccination) []any {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.clock.Now().UTC()
	}
	l := v.Location
	return []any{
		v.ID, v.AnimalName, string(v.Species), v.OwnerName, v.VaccinatedAt, v.VaccineLot, v.Campaign,
		l.Address, l.Area, l.Block, l.Latitude, l.Longitude, l.ResolvedAddress, l.GeocodeProvider, l.GeocodeConfidence,
		v.CreatedAt,
	}
}

// ListVaccinations returns vaccinations matching filter, most recent first.
func (s *PostgresStore) ListVaccinations(ctx context.Context, filter VaccinationFilter) ([]model.RabiesVaccination, error) {
	var w whereBuilder
	vaccinationWhere(&w, filter)
	query := "SELECT " + vaccinationColumns + " FROM rabies_vaccinations" + w.sql() + w.orderBy("vaccinated_at DESC, id")
	query += w.page(filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list vaccinations")
	}
	defer rows.Close()

	var out []model.RabiesVaccination
	for rows.Next() {
		v, err := scanVaccination(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan vaccination")
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list vaccinations rows")
	}
	return out, nil
}

// GetVaccination returns one vaccination or ErrNotFound.
func (s *PostgresStore) GetVaccination(ctx context.Context, id string) (*model.RabiesVaccination, error) {
	v, err := scanVaccination(s.pool.QueryRow(ctx, "SELECT "+vaccinationColumns+" FROM rabies_vaccinations WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get vaccination %s", id)
	}
	return v, nil
}

// CreateVaccination inserts v, assigning its ID and creation time.
func (s *PostgresStore) CreateVaccination(ctx context.Context, v *model.RabiesVaccination) error {
	row := s.vaccinationRow(v)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rabies_vaccinations (`+vaccinationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		row...,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: create vaccination")
	}
	return nil
}

// UpdateVaccination overwrites every mutable column of v.
func (s *PostgresStore) UpdateVaccination(ctx context.Context, v *model.RabiesVaccination) error {
	l := v.Location
	tag, err := s.pool.Exec(ctx,
		`UPDATE rabies_vaccinations SET animal_name = $1, species = $2, owner_name = $3, vaccinated_at = $4,
		vaccine_lot = $5, campaign = $6, address = $7, area = $8, block = $9, latitude = $10, longitude = $11,
		resolved_address = $12, geocode_provider = $13, geocode_confidence = $14
		WHERE id = $15`,
		v.AnimalName, string(v.Species), v.OwnerName, v.VaccinatedAt, v.VaccineLot, v.Campaign,
		l.Address, l.Area, l.Block, l.Latitude, l.Longitude,
		l.ResolvedAddress, l.GeocodeProvider, l.GeocodeConfidence,
		v.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update vaccination %s", v.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteVaccination removes a vaccination.
func (s *PostgresStore) DeleteVaccination(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM rabies_vaccinations WHERE id = $1", id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete vaccination %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateVaccinationLocation rewrites only the location columns.
func (s *PostgresStore) UpdateVaccinationLocation(ctx context.Context, id string, loc model.Location) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE rabies_vaccinations SET address = $1, area = $2, block = $3, latitude = $4, longitude = $5,
		resolved_address = $6, geocode_provider = $7, geocode_confidence = $8
		WHERE id = $9`,
		loc.Address, loc.Area, loc.Block, loc.Latitude, loc.Longitude,
		loc.ResolvedAddress, loc.GeocodeProvider, loc.GeocodeConfidence,
		id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update vaccination location %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ImportVaccinations bulk-loads vs with COPY and upserts them by ID.
func (s *PostgresStore) ImportVaccinations(ctx context.Context, vs []model.RabiesVaccination) (int64, error) {
	rows := make([][]any, len(vs))
	for i := range vs {
		rows[i] = s.vaccinationRow(&vs[i])
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        VaccinationTable,
		Columns:      VaccinationColumns,
		ConflictKeys: []string{"id"},
		UpdateCols:   vaccinationUpdateCols,
		FillCols:     vaccinationFillCols,
		FillWhenNull: "latitude",
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import vaccinations")
	}
	return n, nil
}

// vaccinationUpdateCols leaves created_at alone on re-import.
var vaccinationUpdateCols = []string{
	"animal_name", "species", "owner_name", "vaccinated_at", "vaccine_lot", "campaign",
	"address", "area", "block",
}

// vaccinationFillCols are only taken from a re-import while the stored row
// has no coordinates yet, so resolved or pinned locations survive.
var vaccinationFillCols = []string{
	"latitude", "longitude", "resolved_address", "geocode_provider", "geocode_confidence",
}

var _ Store = (*PostgresStore)(nil)
