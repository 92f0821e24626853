package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ccz-paraguacu/zoonoses/internal/store"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return eris.Wrap(err, "server: decode body")
	}
	return nil
}

// writeStoreError maps store failures to status codes.
func writeStoreError(w http.ResponseWriter, action string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	logError("server: "+action, err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func logError(msg string, err error) {
	zap.L().Error(msg, zap.Error(err))
}

func errInvalidParam(name, raw string) error {
	return eris.Errorf("invalid %s %q", name, raw)
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errInvalidParam(name, raw)
	}
	return n, nil
}

func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errInvalidParam(name, raw)
	}
	return f, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errInvalidParam(name, raw)
	}
	return b, nil
}

// page holds the filter parameters shared by both record lists.
type page struct {
	area          string
	needsGeocode  bool
	minConfidence float64
	limit         int
	offset        int
}

func parsePage(r *http.Request) (page, error) {
	var (
		p   page
		err error
	)
	p.area = r.URL.Query().Get("area")
	if p.needsGeocode, err = queryBool(r, "needs_geocode"); err != nil {
		return p, err
	}
	if p.minConfidence, err = queryFloat(r, "min_confidence"); err != nil {
		return p, err
	}
	if p.limit, err = queryInt(r, "limit"); err != nil {
		return p, err
	}
	if p.offset, err = queryInt(r, "offset"); err != nil {
		return p, err
	}
	return p, nil
}

func validCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
