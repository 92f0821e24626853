// Package store persists leishmaniasis cases and rabies vaccinations.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/ccz-paraguacu/zoonoses/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = eris.New("store: not found")

// CaseFilter specifies criteria for listing cases.
type CaseFilter struct {
	Status        model.CaseStatus `json:"status,omitempty"`
	Result        model.TestResult `json:"result,omitempty"`
	Area          string           `json:"area,omitempty"`
	NeedsGeocode  bool             `json:"needs_geocode,omitempty"`
	MinConfidence float64          `json:"min_confidence,omitempty"` // used with NeedsGeocode
	Limit         int              `json:"limit,omitempty"`
	Offset        int              `json:"offset,omitempty"`
}

// VaccinationFilter specifies criteria for listing vaccinations.
type VaccinationFilter struct {
	Species       model.Species `json:"species,omitempty"`
	Campaign      string        `json:"campaign,omitempty"`
	Area          string        `json:"area,omitempty"`
	NeedsGeocode  bool          `json:"needs_geocode,omitempty"`
	MinConfidence float64       `json:"min_confidence,omitempty"`
	Limit         int           `json:"limit,omitempty"`
	Offset        int           `json:"offset,omitempty"`
}

// CaseStats summarizes the case table for the dashboard.
type CaseStats struct {
	Total    int            `json:"total"`
	Geocoded int            `json:"geocoded"`
	Pending  int            `json:"pending"`
	ByStatus map[string]int `json:"by_status"`
	ByResult map[string]int `json:"by_result"`
	ByArea   map[string]int `json:"by_area"`
}

// Store defines the persistence interface for the dashboard records.
type Store interface {
	// Cases
	ListCases(ctx context.Context, filter CaseFilter) ([]model.LeishmaniasisCase, error)
	GetCase(ctx context.Context, id string) (*model.LeishmaniasisCase, error)
	CreateCase(ctx context.Context, c *model.LeishmaniasisCase) error
	UpdateCase(ctx context.Context, c *model.LeishmaniasisCase) error
	DeleteCase(ctx context.Context, id string) error
	UpdateCaseLocation(ctx context.Context, id string, loc model.Location) error
	CaseStats(ctx context.Context) (*CaseStats, error)

	// Vaccinations
	ListVaccinations(ctx context.Context, filter VaccinationFilter) ([]model.RabiesVaccination, error)
	GetVaccination(ctx context.Context, id string) (*model.RabiesVaccination, error)
	CreateVaccination(ctx context.Context, v *model.RabiesVaccination) error
	UpdateVaccination(ctx context.Context, v *model.RabiesVaccination) error
	DeleteVaccination(ctx context.Context, id string) error
	UpdateVaccinationLocation(ctx context.Context, id string, loc model.Location) error
	ImportVaccinations(ctx context.Context, vs []model.RabiesVaccination) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
