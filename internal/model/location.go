// Package model defines the records tracked by the zoonoses dashboard.
package model

import (
	"strings"

	"github.com/ccz-paraguacu/zoonoses/pkg/geocode"
)

// Location is the place a record refers to, plus its resolved coordinates.
type Location struct {
	Address           string   `json:"address"`
	Area              string   `json:"area,omitempty"`
	Block             string   `json:"block,omitempty"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	ResolvedAddress   string   `json:"resolved_address,omitempty"`
	GeocodeProvider   string   `json:"geocode_provider,omitempty"`
	GeocodeConfidence float64  `json:"geocode_confidence"`
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// IsManual reports whether the coordinates were pinned by an operator.
func (l Location) IsManual() bool {
	return l.GeocodeProvider == geocode.ProviderManual
}

// HasAreaBlock reports whether both area and block are filled in.
func (l Location) HasAreaBlock() bool {
	return strings.TrimSpace(l.Area) != "" && strings.TrimSpace(l.Block) != ""
}

// NeedsGeocode reports whether the location should be (re)resolved.
// Manually pinned locations never need it, and neither do synthesized
// points: resolving them again yields the same coordinates.
func (l Location) NeedsGeocode(minConfidence float64) bool {
	if l.IsManual() {
		return false
	}
	if !l.HasCoordinates() {
		return true
	}
	return l.GeocodeProvider != geocode.ProviderSynthesis && l.GeocodeConfidence < minConfidence
}

// Query converts the location into a resolver query.
func (l Location) Query() geocode.Query {
	return geocode.Query{Address: l.Address, Area: l.Area, Block: l.Block}
}

// Apply copies a successful resolution onto the location. Failed results
// leave it untouched; the return value reports whether anything changed.
func (l *Location) Apply(r geocode.Result) bool {
	if !r.Succeeded {
		return false
	}
	lat, lng := r.Latitude, r.Longitude
	l.Latitude = &lat
	l.Longitude = &lng
	l.ResolvedAddress = r.ResolvedAddress
	l.GeocodeProvider = r.Provider
	l.GeocodeConfidence = r.Confidence
	return true
}
