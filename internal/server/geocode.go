package server

import (
	"net/http"
	"strings"

	"github.com/ccz-paraguacu/zoonoses/internal/model"
	"github.com/ccz-paraguacu/zoonoses/pkg/geocode"
)

// handleGeocode resolves an ad-hoc address. Resolution failures are part of
// the result body, so the status is 200 whenever the request parses.
func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	var q geocode.Query
	if err := decodeJSON(w, r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var res *geocode.Result
	if strings.TrimSpace(q.Area) != "" && strings.TrimSpace(q.Block) != "" {
		res = s.resolver.ResolveWithArea(r.Context(), q)
	} else {
		res = s.resolver.Resolve(r.Context(), q.Address)
	}
	writeJSON(w, http.StatusOK, res)
}

type pinRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   string   `json:"address"`
}

func (p pinRequest) validate() string {
	if p.Latitude == nil || p.Longitude == nil {
		return "latitude and longitude are required"
	}
	if !validCoordinates(*p.Latitude, *p.Longitude) {
		return "coordinates out of range"
	}
	return ""
}

func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	writeJSON(w, http.StatusOK, s.resolver.Manual(*req.Latitude, *req.Longitude, req.Address))
}

// locate settles the location of a record being saved. Coordinates sent
// without a provider are an operator pin. An unchanged address keeps the
// previous resolution; anything else is resolved again.
func (s *Server) locate(r *http.Request, prev, next *model.Location) {
	if next.HasCoordinates() && next.GeocodeProvider == "" {
		s.locator.Pin(next, *next.Latitude, *next.Longitude)
		return
	}
	if prev != nil {
		if sameQuery(*prev, *next) {
			*next = *prev
			return
		}
		*next = model.Location{Address: next.Address, Area: next.Area, Block: next.Block}
	}
	s.locator.Prepare(r.Context(), next, s.opts.MinConfidence)
}

func sameQuery(a, b model.Location) bool {
	return strings.TrimSpace(a.Address) == strings.TrimSpace(b.Address) &&
		strings.TrimSpace(a.Area) == strings.TrimSpace(b.Area) &&
		strings.TrimSpace(a.Block) == strings.TrimSpace(b.Block)
}
