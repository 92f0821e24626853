package records

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ccz-paraguacu/zoonoses/internal/model"
	"github.com/ccz-paraguacu/zoonoses/internal/store"
	"github.com/ccz-paraguacu/zoonoses/pkg/geocode"
)

// Record kinds accepted by Backfill.
const (
	KindCases        = "cases"
	KindVaccinations = "vaccinations"
)

// BackfillOptions selects which records to re-resolve.
type BackfillOptions struct {
	Kind          string
	MinConfidence float64
	Limit         int
}

// BackfillStats summarizes one backfill run.
type BackfillStats struct {
	Scanned     int `json:"scanned"`
	Updated     int `json:"updated"`
	Synthesized int `json:"synthesized"`
	Failed      int `json:"failed"`
}

// Backfill re-resolves records without coordinates or below
// opts.MinConfidence, one at a time. Manually pinned records are never
// touched. It stops early when ctx is cancelled.
func (l *Locator) Backfill(ctx context.Context, st store.Store, opts BackfillOptions) (*BackfillStats, error) {
	switch opts.Kind {
	case KindCases:
		cases, err := st.ListCases(ctx, store.CaseFilter{NeedsGeocode: true, MinConfidence: opts.MinConfidence, Limit: opts.Limit})
		if err != nil {
			return nil, eris.Wrap(err, "records: backfill list cases")
		}
		locs := make([]located, len(cases))
		for i := range cases {
			c := &cases[i]
			locs[i] = located{id: c.ID, loc: &c.Location}
		}
		return l.backfill(ctx, locs, opts.MinConfidence, st.UpdateCaseLocation)

	case KindVaccinations:
		vacs, err := st.ListVaccinations(ctx, store.VaccinationFilter{NeedsGeocode: true, MinConfidence: opts.MinConfidence, Limit: opts.Limit})
		if err != nil {
			return nil, eris.Wrap(err, "records: backfill list vaccinations")
		}
		locs := make([]located, len(vacs))
		for i := range vacs {
			v := &vacs[i]
			locs[i] = located{id: v.ID, loc: &v.Location}
		}
		return l.backfill(ctx, locs, opts.MinConfidence, st.UpdateVaccinationLocation)
	}
	return nil, eris.Errorf("records: unknown kind %q", opts.Kind)
}

type located struct {
	id  string
	loc *model.Location
}

func (l *Locator) backfill(ctx context.Context, items []located, minConfidence float64,
	save func(ctx context.Context, id string, loc model.Location) error) (*BackfillStats, error) {
	stats := &BackfillStats{}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return stats, eris.Wrap(err, "records: backfill cancelled")
		}
		if !it.loc.NeedsGeocode(minConfidence) {
			continue
		}
		stats.Scanned++

		res := l.Locate(ctx, it.loc)
		if !res.Succeeded {
			stats.Failed++
			continue
		}
		if err := save(ctx, it.id, *it.loc); err != nil {
			zap.L().Error("records: save backfilled location",
				zap.String("id", it.id),
				zap.Error(err),
			)
			stats.Failed++
			continue
		}
		stats.Updated++
		if res.Provider == geocode.ProviderSynthesis {
			stats.Synthesized++
		}
	}
	zap.L().Info("records: backfill complete",
		zap.Int("scanned", stats.Scanned),
		zap.Int("updated", stats.Updated),
		zap.Int("synthesized", stats.Synthesized),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}
