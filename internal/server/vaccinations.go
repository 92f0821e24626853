package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ccz-paraguacu/zoonoses/internal/model"
	"github.com/ccz-paraguacu/zoonoses/internal/store"
)

func (s *Server) vaccinationFilter(r *http.Request) (store.VaccinationFilter, error) {
	p, err := parsePage(r)
	if err != nil {
		return store.VaccinationFilter{}, err
	}
	f := store.VaccinationFilter{
		Campaign:      r.URL.Query().Get("campaign"),
		Area:          p.area,
		NeedsGeocode:  p.needsGeocode,
		MinConfidence: p.minConfidence,
		Limit:         p.limit,
		Offset:        p.offset,
	}
	if raw := r.URL.Query().Get("species"); raw != "" {
		sp, ok := model.ParseSpecies(raw)
		if !ok {
			return f, errInvalidParam("species", raw)
		}
		f.Species = sp
	}
	if f.NeedsGeocode && f.MinConfidence == 0 {
		f.MinConfidence = s.opts.MinConfidence
	}
	return f, nil
}

// decodeVaccination reads a vaccination body, accepting the Portuguese
// species names the import spreadsheets use.
func decodeVaccination(w http.ResponseWriter, r *http.Request) (*model.RabiesVaccination, string) {
	var v model.RabiesVaccination
	if err := decodeJSON(w, r, &v); err != nil {
		return nil, "invalid request body"
	}
	if sp, ok := model.ParseSpecies(string(v.Species)); ok {
		v.Species = sp
	}
	if err := v.Validate(); err != nil {
		return nil, err.Error()
	}
	return &v, ""
}

func (s *Server) listVaccinations(w http.ResponseWriter, r *http.Request) {
	f, err := s.vaccinationFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	vs, err := s.store.ListVaccinations(r.Context(), f)
	if err != nil {
		writeStoreError(w, "list vaccinations", err)
		return
	}
	if vs == nil {
		vs = []model.RabiesVaccination{}
	}
	writeJSON(w, http.StatusOK, vs)
}

func (s *Server) getVaccination(w http.ResponseWriter, r *http.Request) {
	v, err := s.store.GetVaccination(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, "get vaccination", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) createVaccination(w http.ResponseWriter, r *http.Request) {
	v, msg := decodeVaccination(w, r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	v.ID = ""

	s.locate(r, nil, &v.Location)
	if err := s.store.CreateVaccination(r.Context(), v); err != nil {
		writeStoreError(w, "create vaccination", err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) updateVaccination(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	prev, err := s.store.GetVaccination(r.Context(), id)
	if err != nil {
		writeStoreError(w, "get vaccination", err)
		return
	}

	v, msg := decodeVaccination(w, r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	v.ID = id

	s.locate(r, &prev.Location, &v.Location)
	if err := s.store.UpdateVaccination(r.Context(), v); err != nil {
		writeStoreError(w, "update vaccination", err)
		return
	}
	v.CreatedAt = prev.CreatedAt
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) deleteVaccination(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteVaccination(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, "delete vaccination", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pinVaccination(w http.ResponseWriter, r *http.Request) {
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
	v, err := s.store.GetVaccination(r.Context(), id)
	if err != nil {
		writeStoreError(w, "get vaccination", err)
		return
	}
	if req.Address != "" {
		v.Location.Address = req.Address
	}
	s.locator.Pin(&v.Location, *req.Latitude, *req.Longitude)
	if err := s.store.UpdateVaccinationLocation(r.Context(), id, v.Location); err != nil {
		writeStoreError(w, "pin vaccination", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) vaccinationsGeoJSON(w http.ResponseWriter, r *http.Request) {
	f, err := s.vaccinationFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	vs, err := s.store.ListVaccinations(r.Context(), f)
	if err != nil {
		writeStoreError(w, "list vaccinations", err)
		return
	}

	fc := newCollection()
	for _, v := range vs {
		fc.add(v.ID, v.Location, map[string]any{
			"kind":          "vaccination",
			"animal_name":   v.AnimalName,
			"species":       v.Species,
			"campaign":      v.Campaign,
			"vaccinated_at": v.VaccinatedAt,
		})
	}
	fc.write(w)
}
