package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ccz-paraguacu/zoonoses/internal/model"
	"github.com/ccz-paraguacu/zoonoses/internal/store"
)

func (s *Server) caseFilter(r *http.Request) (store.CaseFilter, error) {
	p, err := parsePage(r)
	if err != nil {
		return store.CaseFilter{}, err
	}
	f := store.CaseFilter{
		Status:        model.CaseStatus(r.URL.Query().Get("status")),
		Result:        model.TestResult(r.URL.Query().Get("result")),
		Area:          p.area,
		NeedsGeocode:  p.needsGeocode,
		MinConfidence: p.minConfidence,
		Limit:         p.limit,
		Offset:        p.offset,
	}
	if f.NeedsGeocode && f.MinConfidence == 0 {
		f.MinConfidence = s.opts.MinConfidence
	}
	return f, nil
}

func (s *Server) listCases(w http.ResponseWriter, r *http.Request) {
	f, err := s.caseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cases, err := s.store.ListCases(r.Context(), f)
	if err != nil {
		writeStoreError(w, "list cases", err)
		return
	}
	if cases == nil {
		cases = []model.LeishmaniasisCase{}
	}
	writeJSON(w, http.StatusOK, cases)
}

func (s *Server) getCase(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, "get case", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) createCase(w http.ResponseWriter, r *http.Request) {
	var c model.LeishmaniasisCase
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c.ID = ""
	c.Normalize()
	if err := c.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.locate(r, nil, &c.Location)
	if err := s.store.CreateCase(r.Context(), &c); err != nil {
		writeStoreError(w, "create case", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) updateCase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	prev, err := s.store.GetCase(r.Context(), id)
	if err != nil {
		writeStoreError(w, "get case", err)
		return
	}

	var c model.LeishmaniasisCase
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c.ID = id
	c.Normalize()
	if err := c.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.locate(r, &prev.Location, &c.Location)
	if err := s.store.UpdateCase(r.Context(), &c); err != nil {
		writeStoreError(w, "update case", err)
		return
	}
	c.CreatedAt = prev.CreatedAt
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteCase(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCase(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, "delete case", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pinCase overrides the case location with operator-placed coordinates.
func (s *Server) pinCase(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	id := chi.URLParam(r, "id")
	c, err := s.store.GetCase(r.Context(), id)
	if err != nil {
		writeStoreError(w, "get case", err)
		return
	}
	if req.Address != "" {
		c.Location.Address = req.Address
	}
	s.locator.Pin(&c.Location, *req.Latitude, *req.Longitude)
	if err := s.store.UpdateCaseLocation(r.Context(), id, c.Location); err != nil {
		writeStoreError(w, "pin case", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) caseStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.CaseStats(r.Context())
	if err != nil {
		writeStoreError(w, "case stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) casesGeoJSON(w http.ResponseWriter, r *http.Request) {
	f, err := s.caseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cases, err := s.store.ListCases(r.Context(), f)
	if err != nil {
		writeStoreError(w, "list cases", err)
		return
	}

	fc := newCollection()
	for _, c := range cases {
		fc.add(c.ID, c.Location, map[string]any{
			"kind":        "case",
			"animal_name": c.AnimalName,
			"species":     c.Species,
			"test_method": c.TestMethod,
			"result":      c.Result,
			"status":      c.Status,
			"notified_at": c.NotifiedAt,
		})
	}
	fc.write(w)
}
