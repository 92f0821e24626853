package geocode

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Entry points reported to the Recorder.
const (
	EntryPrimary = "primary"
	EntryArea    = "area"
	EntryManual  = "manual"
)

// Resolver turns addresses into coordinates. It holds no mutable state and
// is safe for concurrent use; each call runs its provider chain sequentially.
type Resolver struct {
	searchers []Searcher
	postal    PostalLookup
	region    Region
	weights   Weights
	accept    float64 // free-text hit accepted outright above this
	keep      float64 // hit kept instead of synthesis above this
	recorder  Recorder
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithWeights overrides the ranking and confidence constants.
func WithWeights(w Weights) ResolverOption {
	return func(r *Resolver) {
		r.weights = w
	}
}

// WithThresholds sets the accept (default 0.5) and keep (default 0.3)
// confidence thresholds. Non-positive values keep the default.
func WithThresholds(accept, keep float64) ResolverOption {
	return func(r *Resolver) {
		if accept > 0 {
			r.accept = accept
		}
		if keep > 0 {
			r.keep = keep
		}
	}
}

// WithRecorder reports resolution outcomes.
func WithRecorder(rec Recorder) ResolverOption {
	return func(r *Resolver) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// NewResolver creates a Resolver trying searchers in order, then postal.
// postal may be nil to disable postal-code approximation.
func NewResolver(region Region, searchers []Searcher, postal PostalLookup, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		searchers: searchers,
		postal:    postal,
		region:    region,
		weights:   DefaultWeights(),
		accept:    0.5,
		keep:      0.3,
		recorder:  nopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Region returns the region the resolver searches in.
func (r *Resolver) Region() Region { return r.region }

// Resolve geocodes addr. It never returns nil and never fails loudly:
// failures are reported in Result.Succeeded and Result.ErrorMessage.
func (r *Resolver) Resolve(ctx context.Context, addr string) *Result {
	res := r.resolve(ctx, addr)
	r.record(EntryPrimary, res)
	return res
}

func (r *Resolver) resolve(ctx context.Context, addr string) *Result {
	if strings.TrimSpace(addr) == "" {
		return failure("", MsgAddressMissing)
	}

	primary := r.fanOut(ctx, addr)
	if primary.Succeeded && primary.Confidence > r.accept {
		return primary
	}

	postal := r.resolvePostal(ctx, addr)
	if postal.Succeeded {
		return postal
	}

	if primary.Succeeded {
		return primary
	}

	zap.L().Info("geocode: address not resolved",
		zap.String("address", addr),
		zap.String("search", primary.ErrorMessage),
		zap.String("postal", postal.ErrorMessage),
	)
	return failure("", MsgNotFound)
}

// ResolveWithArea geocodes q and, when nothing trustworthy is found,
// synthesizes a deterministic point from address, area and block. It only
// fails when the query carries neither an address nor an area/block pair.
func (r *Resolver) ResolveWithArea(ctx context.Context, q Query) *Result {
	if strings.TrimSpace(q.Address) == "" && !q.hasAreaBlock() {
		res := failure("", MsgAddressMissing)
		r.record(EntryArea, res)
		return res
	}

	res := r.resolve(ctx, q.Address)
	if !res.Succeeded || res.Confidence <= r.keep {
		res = synthesize(q, r.region)
	}
	r.record(EntryArea, res)
	return res
}

// Manual wraps caller-supplied coordinates, such as a pin placed by hand
// on the map. No provider is contacted.
func (r *Resolver) Manual(lat, lng float64, addr string) *Result {
	res := &Result{
		Latitude:        lat,
		Longitude:       lng,
		ResolvedAddress: strings.TrimSpace(addr),
		Succeeded:       true,
		Provider:        ProviderManual,
		Confidence:      1.0,
	}
	r.record(EntryManual, res)
	return res
}

func (r *Resolver) record(entry string, res *Result) {
	outcome := "success"
	if !res.Succeeded {
		outcome = "failure"
	}
	provider := res.Provider
	if provider == "" {
		provider = "none"
	}
	r.recorder.ObserveResolution(entry, provider, outcome)
}
