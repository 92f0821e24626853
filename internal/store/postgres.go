package store

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"

	"github.com/ccz-paraguacu/zoonoses/internal/db"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	clock   clockwork.Clock
	closeFn func()
}

// Option configures a PostgresStore.
type Option func(*PostgresStore)

// WithClock sets the clock used for created_at/updated_at.
func WithClock(c clockwork.Clock) Option {
	return func(s *PostgresStore) {
		s.clock = c
	}
}

// NewPostgres connects to Postgres and returns a store owning the pool.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig, opts ...Option) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, err
	}
	s := NewPostgresFromPool(pool, opts...)
	s.closeFn = pool.Close
	return s, nil
}

// NewPostgresFromPool wraps an existing pool. Close is a no-op; the caller
// owns the pool.
func NewPostgresFromPool(pool db.Pool, opts ...Option) *PostgresStore {
	s := &PostgresStore{pool: pool, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pool returns the underlying pool for bulk loads.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leishmaniasis_cases (
	id                 TEXT PRIMARY KEY,
	animal_name        TEXT NOT NULL,
	species            TEXT NOT NULL,
	owner_name         TEXT NOT NULL DEFAULT '',
	owner_phone        TEXT NOT NULL DEFAULT '',
	test_method        TEXT NOT NULL,
	result             TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'open',
	notified_at        TIMESTAMPTZ NOT NULL,
	notes              TEXT NOT NULL DEFAULT '',
	address            TEXT NOT NULL DEFAULT '',
	area               TEXT NOT NULL DEFAULT '',
	block              TEXT NOT NULL DEFAULT '',
	latitude           DOUBLE PRECISION,
	longitude          DOUBLE PRECISION,
	resolved_address   TEXT NOT NULL DEFAULT '',
	geocode_provider   TEXT NOT NULL DEFAULT '',
	geocode_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_cases_status ON leishmaniasis_cases(status);
CREATE INDEX IF NOT EXISTS idx_cases_area ON leishmaniasis_cases(area);
CREATE INDEX IF NOT EXISTS idx_cases_notified_at ON leishmaniasis_cases(notified_at DESC);

CREATE TABLE IF NOT EXISTS rabies_vaccinations (
	id                 TEXT PRIMARY KEY,
	animal_name        TEXT NOT NULL,
	species            TEXT NOT NULL,
	owner_name         TEXT NOT NULL DEFAULT '',
	vaccinated_at      TIMESTAMPTZ NOT NULL,
	vaccine_lot        TEXT NOT NULL DEFAULT '',
	campaign           TEXT NOT NULL DEFAULT '',
	address            TEXT NOT NULL DEFAULT '',
	area               TEXT NOT NULL DEFAULT '',
	block              TEXT NOT NULL DEFAULT '',
	latitude           DOUBLE PRECISION,
	longitude          DOUBLE PRECISION,
	resolved_address   TEXT NOT NULL DEFAULT '',
	geocode_provider   TEXT NOT NULL DEFAULT '',
	geocode_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_vaccinations_campaign ON rabies_vaccinations(campaign);
CREATE INDEX IF NOT EXISTS idx_vaccinations_area ON rabies_vaccinations(area);
CREATE INDEX IF NOT EXISTS idx_vaccinations_vaccinated_at ON rabies_vaccinations(vaccinated_at DESC);
`

// Migrate creates the tables and indexes if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return eris.Wrap(err, "postgres: ping")
	}
	return nil
}

// Close releases the pool if the store owns it.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
