package geocode

import (
	"math"
	"strings"
)

// Weights are the empirical ranking and confidence constants. They are
// tunable, not part of any provider contract.
type Weights struct {
	MunicipalityMatch float64 `yaml:"municipality_match" mapstructure:"municipality_match"`
	HouseNumber       float64 `yaml:"house_number" mapstructure:"house_number"`
	TypeHouse         float64 `yaml:"type_house" mapstructure:"type_house"`
	TypeResidential   float64 `yaml:"type_residential" mapstructure:"type_residential"`
	ClassPlace        float64 `yaml:"class_place" mapstructure:"class_place"`
	ImportanceFactor  float64 `yaml:"importance_factor" mapstructure:"importance_factor"`
	RoadMatch         float64 `yaml:"road_match" mapstructure:"road_match"`

	BaseConfidence       float64 `yaml:"base_confidence" mapstructure:"base_confidence"`
	HouseNumberConf      float64 `yaml:"house_number_confidence" mapstructure:"house_number_confidence"`
	TypeHouseConf        float64 `yaml:"type_house_confidence" mapstructure:"type_house_confidence"`
	ImportanceConf       float64 `yaml:"importance_confidence" mapstructure:"importance_confidence"`
	ImportanceConfCutoff float64 `yaml:"importance_confidence_cutoff" mapstructure:"importance_confidence_cutoff"`
}

// DefaultWeights returns the weights the dashboard has always used.
func DefaultWeights() Weights {
	return Weights{
		MunicipalityMatch: 100,
		HouseNumber:       50,
		TypeHouse:         30,
		TypeResidential:   20,
		ClassPlace:        20,
		ImportanceFactor:  10,
		RoadMatch:         25,

		BaseConfidence:       0.3,
		HouseNumberConf:      0.4,
		TypeHouseConf:        0.2,
		ImportanceConf:       0.1,
		ImportanceConfCutoff: 0.5,
	}
}

// scorer ranks candidates of a single provider response.
type scorer struct {
	weights      Weights
	municipality string
	road         string // folded road token of the query
}

func newScorer(w Weights, region Region, req SearchRequest) scorer {
	return scorer{weights: w, municipality: region.Municipality, road: roadToken(req.Road)}
}

// score returns the additive ranking score of c.
func (s scorer) score(c Candidate) float64 {
	w := s.weights
	var pts float64
	if containsFold(c.DisplayName, s.municipality) {
		pts += w.MunicipalityMatch
	}
	if hasHouseNumber(c) {
		pts += w.HouseNumber
	}
	switch strings.ToLower(c.PlaceType) {
	case "house", "building":
		pts += w.TypeHouse
	case "residential":
		pts += w.TypeResidential
	}
	switch strings.ToLower(c.PlaceClass) {
	case "building", "place":
		pts += w.ClassPlace
	}
	if c.Importance != nil {
		pts += *c.Importance * w.ImportanceFactor
	}
	if s.road != "" && c.Road != "" && strings.Contains(fold(c.Road), s.road) {
		pts += w.RoadMatch
	}
	return pts
}

// best returns the index of the highest scoring candidate; ties keep the
// earliest. Returns -1 for an empty slice.
func (s scorer) best(cands []Candidate) (int, float64) {
	idx, top := -1, 0.0
	for i, c := range cands {
		if pts := s.score(c); idx < 0 || pts > top {
			idx, top = i, pts
		}
	}
	return idx, top
}

// confidence returns the caller-facing trust signal of c.
func (s scorer) confidence(c Candidate) float64 {
	w := s.weights
	conf := w.BaseConfidence
	if hasHouseNumber(c) {
		conf += w.HouseNumberConf
	}
	switch strings.ToLower(c.PlaceType) {
	case "house", "building":
		conf += w.TypeHouseConf
	}
	if c.Importance != nil && *c.Importance > w.ImportanceConfCutoff {
		conf += w.ImportanceConf
	}
	if conf > 1 {
		conf = 1
	}
	// Snap away float noise (0.3+0.4+0.2 is 0.8999...) without moving the
	// value across a threshold the way coarser rounding would.
	return math.Round(conf*1e9) / 1e9
}

func hasHouseNumber(c Candidate) bool {
	return strings.TrimSpace(c.HouseNumber) != ""
}
