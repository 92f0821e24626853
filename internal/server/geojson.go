package server

import (
	"encoding/json"
	"net/http"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/ccz-paraguacu/zoonoses/internal/model"
)

// collection accumulates map markers. Records without coordinates are
// left out; the dashboard lists them separately as pending.
type collection struct {
	fc     geojson.FeatureCollection
	bounds *geom.Bounds
}

func newCollection() *collection {
	return &collection{
		fc:     geojson.FeatureCollection{Features: []*geojson.Feature{}},
		bounds: geom.NewBounds(geom.XY),
	}
}

func (c *collection) add(id string, loc model.Location, props map[string]any) {
	if !loc.HasCoordinates() {
		return
	}
	pt := geom.NewPointFlat(geom.XY, []float64{*loc.Longitude, *loc.Latitude}).SetSRID(4326)
	c.bounds.Extend(pt)

	props["address"] = loc.Address
	props["resolved_address"] = loc.ResolvedAddress
	props["area"] = loc.Area
	props["block"] = loc.Block
	props["provider"] = loc.GeocodeProvider
	props["confidence"] = loc.GeocodeConfidence
	c.fc.Features = append(c.fc.Features, &geojson.Feature{
		ID:         id,
		Geometry:   pt,
		Properties: props,
	})
}

func (c *collection) write(w http.ResponseWriter) {
	if len(c.fc.Features) > 0 {
		c.fc.BBox = c.bounds
	}
	body, err := json.Marshal(&c.fc)
	if err != nil {
		logError("server: encode geojson", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck
}
