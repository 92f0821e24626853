package store

import (
	"fmt"
	"strings"

	"github.com/ccz-paraguacu/zoonoses/pkg/geocode"
)

// locationColumns are shared by both record tables, in scan order.
const locationColumns = "address, area, block, latitude, longitude, resolved_address, geocode_provider, geocode_confidence"

// rowScanner is satisfied by pgx.Row, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// whereBuilder accumulates AND-ed conditions with bound arguments.
// Postgres gets $N placeholders, SQLite plain ?.
type whereBuilder struct {
	sqlite  bool
	pending bool // needsGeocode was applied
	conds   []string
	args    []any
}

func (w *whereBuilder) bind(arg any) string {
	w.args = append(w.args, arg)
	if w.sqlite {
		return "?"
	}
	return fmt.Sprintf("$%d", len(w.args))
}

// add appends cond, whose single %s is replaced by the placeholder for arg.
func (w *whereBuilder) add(cond string, arg any) {
	w.conds = append(w.conds, fmt.Sprintf(cond, w.bind(arg)))
}

// needsGeocode matches rows without coordinates or below minConfidence.
// Manually pinned rows never match. Synthesized rows only match while they
// lack coordinates: resolving them again gives the same point.
func (w *whereBuilder) needsGeocode(minConfidence float64) {
	manual := w.bind(geocode.ProviderManual)
	synth := w.bind(geocode.ProviderSynthesis)
	conf := w.bind(minConfidence)
	w.conds = append(w.conds, fmt.Sprintf(
		"geocode_provider <> %s AND (latitude IS NULL OR longitude IS NULL OR (geocode_provider <> %s AND geocode_confidence < %s))",
		manual, synth, conf))
	w.pending = true
}

// orderBy puts rows that were never geocoded first when the filter selects
// pending rows, so a limited run reaches them before low-confidence ones.
func (w *whereBuilder) orderBy(cols string) string {
	if w.pending {
		return " ORDER BY (latitude IS NOT NULL AND longitude IS NOT NULL), " + cols
	}
	return " ORDER BY " + cols
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// page returns LIMIT/OFFSET clauses when set.
func (w *whereBuilder) page(limit, offset int) string {
	var b strings.Builder
	if limit > 0 {
		b.WriteString(" LIMIT " + w.bind(limit))
	}
	if offset > 0 {
		if limit <= 0 && w.sqlite {
			// SQLite requires LIMIT before OFFSET.
			b.WriteString(" LIMIT -1")
		}
		b.WriteString(" OFFSET " + w.bind(offset))
	}
	return b.String()
}

func caseWhere(w *whereBuilder, f CaseFilter) {
	if f.Status != "" {
		w.add("status = %s", string(f.Status))
	}
	if f.Result != "" {
		w.add("result = %s", string(f.Result))
	}
	if f.Area != "" {
		w.add("area = %s", f.Area)
	}
	if f.NeedsGeocode {
		w.needsGeocode(f.MinConfidence)
	}
}

func vaccinationWhere(w *whereBuilder, f VaccinationFilter) {
	if f.Species != "" {
		w.add("species = %s", string(f.Species))
	}
	if f.Campaign != "" {
		w.add("campaign = %s", f.Campaign)
	}
	if f.Area != "" {
		w.add("area = %s", f.Area)
	}
	if f.NeedsGeocode {
		w.needsGeocode(f.MinConfidence)
	}
}

// newCaseStats returns empty stats with initialized maps.
func newCaseStats() *CaseStats {
	return &CaseStats{
		ByStatus: make(map[string]int),
		ByResult: make(map[string]int),
		ByArea:   make(map[string]int),
	}
}

func (s *CaseStats) add(status, result, area string, geocoded bool, n int) {
	s.Total += n
	s.ByStatus[status] += n
	s.ByResult[result] += n
	if area != "" {
		s.ByArea[area] += n
	}
	if geocoded {
		s.Geocoded += n
	} else {
		s.Pending += n
	}
}

const caseStatsSQL = `SELECT status, result, area, (latitude IS NOT NULL AND longitude IS NOT NULL) AS geocoded, count(*)
FROM leishmaniasis_cases GROUP BY 1, 2, 3, 4`
