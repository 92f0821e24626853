// Package geocode resolves free-text addresses into map coordinates using
// Nominatim (primary), ViaCEP (postal-code approximation) and a deterministic
// pseudo-coordinate synthesis as the last resort.
package geocode

import (
	"strings"
	"time"
)

// Provider names reported in Result.Provider.
const (
	ProviderStructured = "structured-search"
	ProviderBounded    = "bounded-search"
	ProviderDetailed   = "detailed-search"
	ProviderSimple     = "simple-search"
	ProviderPostal     = "postal-code-lookup"
	ProviderSynthesis  = "fallback-synthesis"
	ProviderManual     = "manual"
)

// Error messages surfaced in Result.ErrorMessage.
const (
	MsgAddressMissing = "address not provided"
	MsgNotFound       = "address not found by any provider"
	MsgNoCandidates   = "no candidates returned by any search variant"
	MsgNoPostalCode   = "no postal code in address"
	MsgPostalNotFound = "postal code not found"
)

// Query is the input of a resolution.
type Query struct {
	Address string `json:"address"`
	Area    string `json:"area,omitempty"`
	Block   string `json:"block,omitempty"`
}

// hasAreaBlock reports whether both area and block are present.
func (q Query) hasAreaBlock() bool {
	return strings.TrimSpace(q.Area) != "" && strings.TrimSpace(q.Block) != ""
}

// Result is the outcome of a resolution. Failures are encoded in Succeeded
// and ErrorMessage, never returned as errors.
type Result struct {
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	ResolvedAddress string  `json:"resolved_address"`
	Succeeded       bool    `json:"succeeded"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	Provider        string  `json:"provider"`
	Confidence      float64 `json:"confidence"`
}

func failure(provider, msg string) *Result {
	return &Result{Provider: provider, ErrorMessage: msg}
}

// Candidate is one raw hit returned by a search provider before scoring.
type Candidate struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
	HouseNumber string
	Road        string
	PlaceType   string
	PlaceClass  string
	Importance  *float64 // nil when the provider does not report one
}

// Region describes the municipality served and its search area.
type Region struct {
	Municipality string  `yaml:"municipality" mapstructure:"municipality"`
	State        string  `yaml:"state" mapstructure:"state"`
	Country      string  `yaml:"country" mapstructure:"country"`
	CenterLat    float64 `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLng    float64 `yaml:"center_lng" mapstructure:"center_lng"`
	MinLat       float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MaxLat       float64 `yaml:"max_lat" mapstructure:"max_lat"`
	MinLng       float64 `yaml:"min_lng" mapstructure:"min_lng"`
	MaxLng       float64 `yaml:"max_lng" mapstructure:"max_lng"`
}

// DefaultRegion returns Paraguaçu Paulista, SP.
func DefaultRegion() Region {
	return Region{
		Municipality: "Paraguaçu Paulista",
		State:        "SP",
		Country:      "Brasil",
		CenterLat:    -22.4114,
		CenterLng:    -50.5767,
		MinLat:       -22.55,
		MaxLat:       -22.30,
		MinLng:       -50.72,
		MaxLng:       -50.45,
	}
}

// Recorder receives resolution telemetry. Implemented by observability.Metrics.
type Recorder interface {
	ObserveProvider(provider, outcome string, elapsed time.Duration)
	ObserveResolution(entry, provider, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveProvider(string, string, time.Duration) {}
func (nopRecorder) ObserveResolution(string, string, string)      {}
