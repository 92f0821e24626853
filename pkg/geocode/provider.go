package geocode

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Searcher is one free-text search strategy. Search returns the raw
// candidates of a single request; an empty slice means no hit.
type Searcher interface {
	Name() string
	Search(ctx context.Context, req SearchRequest) ([]Candidate, error)
}

// fanOut tries each searcher in order and returns the best candidate of the
// first response that has any. Errors are logged and treated as misses.
func (r *Resolver) fanOut(ctx context.Context, addr string) *Result {
	req := newSearchRequest(addr, r.region)
	sc := newScorer(r.weights, r.region, req)

	for _, s := range r.searchers {
		cands, err := s.Search(ctx, req)
		if err != nil {
			zap.L().Debug("geocode: search variant failed, trying next",
				zap.String("variant", s.Name()),
				zap.String("address", req.Normalized),
				zap.Error(err),
			)
			continue
		}
		idx, pts := sc.best(cands)
		if idx < 0 {
			zap.L().Debug("geocode: search variant returned no candidates",
				zap.String("variant", s.Name()),
				zap.String("address", req.Normalized),
			)
			continue
		}

		win := cands[idx]
		conf := sc.confidence(win)
		zap.L().Debug("geocode: candidate selected",
			zap.String("variant", s.Name()),
			zap.Int("candidates", len(cands)),
			zap.Float64("score", pts),
			zap.Float64("confidence", conf),
		)
		return &Result{
			Latitude:        win.Latitude,
			Longitude:       win.Longitude,
			ResolvedAddress: win.DisplayName,
			Succeeded:       true,
			Provider:        s.Name(),
			Confidence:      conf,
		}
	}

	return failure("", fmt.Sprintf("%s (%d tried)", MsgNoCandidates, len(r.searchers)))
}

// resolvePostal approximates addr from the CEP it contains, if any.
func (r *Resolver) resolvePostal(ctx context.Context, addr string) *Result {
	cep, ok := extractPostalCode(addr)
	if !ok {
		return failure(ProviderPostal, MsgNoPostalCode)
	}
	if r.postal == nil {
		return failure(ProviderPostal, MsgPostalNotFound)
	}

	pa, err := r.postal.Lookup(ctx, cep)
	if err != nil {
		zap.L().Debug("geocode: postal lookup failed",
			zap.String("cep", cep),
			zap.Error(err),
		)
		return failure(ProviderPostal, MsgPostalNotFound)
	}
	if pa == nil {
		return failure(ProviderPostal, MsgPostalNotFound)
	}

	lat, lng, err := postalPoint(cep, r.region)
	if err != nil {
		return failure(ProviderPostal, MsgPostalNotFound)
	}
	return &Result{
		Latitude:        lat,
		Longitude:       lng,
		ResolvedAddress: pa.String(),
		Succeeded:       true,
		Provider:        ProviderPostal,
		Confidence:      0.6,
	}
}
