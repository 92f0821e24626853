package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Species of the animals handled by the service.
type Species string

const (
	SpeciesDog Species = "dog"
	SpeciesCat Species = "cat"
)

var validSpecies = map[Species]bool{SpeciesDog: true, SpeciesCat: true}

// ParseSpecies accepts the English and Portuguese names used in spreadsheets.
func ParseSpecies(s string) (Species, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dog", "cao", "cão", "canina", "canino":
		return SpeciesDog, true
	case "cat", "gato", "felina", "felino":
		return SpeciesCat, true
	}
	return "", false
}

// RabiesVaccination is one anti-rabies vaccine dose.
type RabiesVaccination struct {
	ID           string    `json:"id"`
	AnimalName   string    `json:"animal_name"`
	Species      Species   `json:"species"`
	OwnerName    string    `json:"owner_name"`
	VaccinatedAt time.Time `json:"vaccinated_at"`
	VaccineLot   string    `json:"vaccine_lot,omitempty"`
	Campaign     string    `json:"campaign,omitempty"`
	Location     Location  `json:"location"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks required fields.
func (v *RabiesVaccination) Validate() error {
	if strings.TrimSpace(v.AnimalName) == "" {
		return eris.New("model: vaccination animal_name is required")
	}
	if !validSpecies[v.Species] {
		return eris.Errorf("model: vaccination species %q is invalid", v.Species)
	}
	if v.VaccinatedAt.IsZero() {
		return eris.New("model: vaccination vaccinated_at is required")
	}
	return validateLocation(v.Location)
}

func validateLocation(l Location) error {
	if strings.TrimSpace(l.Address) == "" && !l.HasAreaBlock() {
		return eris.New("model: location needs an address or an area and block")
	}
	if l.Latitude != nil && (*l.Latitude < -90 || *l.Latitude > 90) {
		return eris.Errorf("model: latitude %v out of range", *l.Latitude)
	}
	if l.Longitude != nil && (*l.Longitude < -180 || *l.Longitude > 180) {
		return eris.Errorf("model: longitude %v out of range", *l.Longitude)
	}
	return nil
}
