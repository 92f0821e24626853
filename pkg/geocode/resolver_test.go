package geocode

import (
	"context"
	"errors"
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lowCandidate() Candidate {
	// Confidence 0.3: no house number, no house type.
	return Candidate{Latitude: -22.40, Longitude: -50.58, DisplayName: "Rua Bahia, Paraguaçu Paulista", PlaceType: "residential", PlaceClass: "highway"}
}

func houseCandidate() Candidate {
	return Candidate{Latitude: -22.4121, Longitude: -50.5733, DisplayName: "951, Avenida Brasil, Paraguaçu Paulista", HouseNumber: "951", Road: "Avenida Brasil", PlaceType: "house", Importance: ptr(0.3)}
}

func TestResolve_AcceptsJustAboveThreshold(t *testing.T) {
	w := DefaultWeights()
	w.BaseConfidence = 0.504
	low := &fakeSearcher{name: ProviderStructured, cands: []Candidate{lowCandidate()}}
	postal := &fakePostal{addr: &PostalAddress{City: "Paraguaçu Paulista", State: "SP"}}
	r := NewResolver(DefaultRegion(), []Searcher{low}, postal, WithWeights(w))

	res := r.Resolve(context.Background(), "Rua Bahia, 19703-040")
	require.True(t, res.Succeeded)
	assert.Equal(t, ProviderStructured, res.Provider)
	assert.Equal(t, 0.504, res.Confidence)
	assert.Empty(t, postal.lookup)
}

func TestResolve_BlankIssuesNoHTTPCalls(t *testing.T) {
	nom := newStubServer(t, func(_ *http.Request) (int, string) { return http.StatusOK, avBrasilPlace })
	cep := newStubServer(t, func(_ *http.Request) (int, string) { return http.StatusOK, `{}` })
	r := NewResolver(DefaultRegion(), newTestNominatim(nom).Variants(), newTestViaCEP(cep))

	for _, addr := range []string{"", "   ", "\t\n"} {
		res := r.Resolve(context.Background(), addr)
		assert.False(t, res.Succeeded)
		assert.Zero(t, res.Confidence)
		assert.Equal(t, MsgAddressMissing, res.ErrorMessage)
	}
	assert.Zero(t, nom.hits.Load())
	assert.Zero(t, cep.hits.Load())
}

func TestResolve_AvBrasilOverHTTP(t *testing.T) {
	nom := newStubServer(t, func(_ *http.Request) (int, string) { return http.StatusOK, avBrasilPlace })
	r := NewResolver(DefaultRegion(), newTestNominatim(nom).Variants(), nil)

	res := r.Resolve(context.Background(), "Av. Brasil, 951 - Centro, Paraguaçu Paulista - SP")
	require.True(t, res.Succeeded)
	assert.Equal(t, ProviderStructured, res.Provider)
	assert.GreaterOrEqual(t, res.Confidence, 0.9)
	assert.InDelta(t, -22.4121, res.Latitude, 1e-9)
	assert.Contains(t, res.ResolvedAddress, "Avenida Brasil")
	assert.Empty(t, res.ErrorMessage)
	// First variant hit: no further variants issued.
	assert.EqualValues(t, 1, nom.hits.Load())
}

func TestResolve_FailedVariantsFallThrough(t *testing.T) {
	nom := newStubServer(t, func(r *http.Request) (int, string) {
		switch {
		case r.URL.Query().Get("street") != "":
			return http.StatusInternalServerError, ``
		case r.URL.Query().Get("bounded") == "1":
			return http.StatusOK, `[]`
		default:
			return http.StatusOK, avBrasilPlace
		}
	})
	r := NewResolver(DefaultRegion(), newTestNominatim(nom).Variants(), nil)

	res := r.Resolve(context.Background(), "Av. Brasil, 951")
	require.True(t, res.Succeeded)
	assert.Equal(t, ProviderDetailed, res.Provider)
	assert.EqualValues(t, 3, nom.hits.Load())
}

func TestResolve_PostalScenario(t *testing.T) {
	nom := newStubServer(t, func(_ *http.Request) (int, string) { return http.StatusOK, `[]` })
	cep := newStubServer(t, func(_ *http.Request) (int, string) {
		return http.StatusOK, `{"cep": "19700-000", "localidade": "Paraguaçu Paulista", "uf": "SP"}`
	})
	r := NewResolver(DefaultRegion(), newTestNominatim(nom).Variants(), newTestViaCEP(cep))

	res := r.Resolve(context.Background(), "Rua Inexistente, 10, 19700-000")
	require.True(t, res.Succeeded)
	assert.Equal(t, ProviderPostal, res.Provider)
	assert.Equal(t, 0.6, res.Confidence)
	assert.Equal(t, "Paraguaçu Paulista - SP, 19700-000", res.ResolvedAddress)
	assert.EqualValues(t, 4, nom.hits.Load())
	assert.EqualValues(t, 1, cep.hits.Load())

	again := r.Resolve(context.Background(), "Rua Inexistente, 10, 19700-000")
	assert.Equal(t, math.Float64bits(res.Latitude), math.Float64bits(again.Latitude))
	assert.Equal(t, math.Float64bits(res.Longitude), math.Float64bits(again.Longitude))
}

func TestResolve_PostalPreferredOverLowConfidenceHit(t *testing.T) {
	low := &fakeSearcher{name: ProviderStructured, cands: []Candidate{lowCandidate()}}
	postal := &fakePostal{addr: &PostalAddress{City: "Paraguaçu Paulista", State: "SP"}}
	r := NewResolver(DefaultRegion(), []Searcher{low}, postal)

	res := r.Resolve(context.Background(), "Rua Bahia, CEP 19703-040")
	assert.Equal(t, ProviderPostal, res.Provider)
	assert.Equal(t, []string{"19703040"}, postal.lookup)
}

func TestResolve_LowConfidenceHitWhenPostalFails(t *testing.T) {
	low := &fakeSearcher{name: ProviderBounded, cands: []Candidate{lowCandidate()}}
	r := NewResolver(DefaultRegion(), []Searcher{low}, &fakePostal{err: errors.New("down")})

	res := r.Resolve(context.Background(), "Rua Bahia, 19703-040")
	require.True(t, res.Succeeded)
	assert.Equal(t, ProviderBounded, res.Provider)
	assert.InDelta(t, 0.3, res.Confidence, 1e-9)
}

func TestResolve_LowConfidenceHitWithoutPostalCode(t *testing.T) {
	low := &fakeSearcher{name: ProviderSimple, cands: []Candidate{lowCandidate()}}
	postal := &fakePostal{}
	r := NewResolver(DefaultRegion(), []Searcher{low}, postal)

	res := r.Resolve(context.Background(), "Rua Bahia")
	require.True(t, res.Succeeded)
	assert.Equal(t, ProviderSimple, res.Provider)
	assert.Empty(t, postal.lookup)
}

func TestResolve_Exhausted(t *testing.T) {
	a := &fakeSearcher{name: ProviderStructured, err: errors.New("boom")}
	b := &fakeSearcher{name: ProviderBounded}
	r := NewResolver(DefaultRegion(), []Searcher{a, b}, &fakePostal{})

	res := r.Resolve(context.Background(), "Rua Bahia, 19703-040")
	assert.False(t, res.Succeeded)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, MsgNotFound, res.ErrorMessage)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestResolve_CustomAcceptThreshold(t *testing.T) {
	low := &fakeSearcher{name: ProviderStructured, cands: []Candidate{lowCandidate()}}
	postal := &fakePostal{addr: &PostalAddress{City: "Paraguaçu Paulista"}}
	r := NewResolver(DefaultRegion(), []Searcher{low}, postal, WithThresholds(0.2, 0))

	res := r.Resolve(context.Background(), "Rua Bahia, 19703-040")
	assert.Equal(t, ProviderStructured, res.Provider)
	assert.Empty(t, postal.lookup)
}

func TestResolveWithArea_KeepsTrustedHit(t *testing.T) {
	house := &fakeSearcher{name: ProviderStructured, cands: []Candidate{houseCandidate()}}
	r := NewResolver(DefaultRegion(), []Searcher{house}, nil)

	res := r.ResolveWithArea(context.Background(), Query{Address: "Av. Brasil, 951", Area: "3", Block: "14"})
	assert.Equal(t, ProviderStructured, res.Provider)
	assert.Equal(t, 0.9, res.Confidence)
}

func TestResolveWithArea_SynthesizesWhenConfidenceAtKeepThreshold(t *testing.T) {
	low := &fakeSearcher{name: ProviderStructured, cands: []Candidate{lowCandidate()}}
	r := NewResolver(DefaultRegion(), []Searcher{low}, nil)

	q := Query{Address: "Rua Bahia", Area: "3", Block: "14"}
	res := r.ResolveWithArea(context.Background(), q)
	require.True(t, res.Succeeded)
	assert.Equal(t, ProviderSynthesis, res.Provider)
	assert.InDelta(t, 0.2, res.Confidence, 1e-12)
	assert.Equal(t, synthesize(q, DefaultRegion()).Latitude, res.Latitude)
}

func TestResolveWithArea_AlwaysSucceeds(t *testing.T) {
	miss := &fakeSearcher{name: ProviderStructured, err: errors.New("offline")}
	r := NewResolver(DefaultRegion(), []Searcher{miss}, &fakePostal{err: errors.New("offline")})

	queries := []Query{
		{Address: "", Area: "1", Block: "2"},
		{Address: "Sítio Boa Vista, zona rural", Area: "9", Block: "99"},
		{Address: "19700-000", Area: "A", Block: "B"},
	}
	for _, q := range queries {
		res := r.ResolveWithArea(context.Background(), q)
		assert.True(t, res.Succeeded, "%+v", q)
		assert.Empty(t, res.ErrorMessage)
	}
}

func TestResolveWithArea_EmptyQuery(t *testing.T) {
	s := &fakeSearcher{name: ProviderStructured}
	r := NewResolver(DefaultRegion(), []Searcher{s}, nil)

	res := r.ResolveWithArea(context.Background(), Query{Area: "1"})
	assert.False(t, res.Succeeded)
	assert.Equal(t, MsgAddressMissing, res.ErrorMessage)
	assert.Zero(t, s.calls)
}

func TestManual(t *testing.T) {
	r := NewResolver(DefaultRegion(), nil, nil)
	for _, addr := range []string{"", "Av. Brasil, 951", "garbage ###"} {
		res := r.Manual(-22.41, -50.57, addr)
		assert.True(t, res.Succeeded)
		assert.Equal(t, 1.0, res.Confidence)
		assert.Equal(t, ProviderManual, res.Provider)
		assert.Equal(t, -22.41, res.Latitude)
		assert.Equal(t, -50.57, res.Longitude)
	}
}

func TestResolver_RecordsOutcomes(t *testing.T) {
	rec := &recordingRecorder{}
	r := NewResolver(DefaultRegion(), []Searcher{&fakeSearcher{name: ProviderStructured}}, nil, WithRecorder(rec))

	r.Resolve(context.Background(), "")
	r.ResolveWithArea(context.Background(), Query{Address: "x", Area: "1", Block: "2"})
	r.Manual(0, 0, "")

	assert.Equal(t, []string{
		"primary:none:failure",
		"area:" + ProviderSynthesis + ":success",
		"manual:" + ProviderManual + ":success",
	}, rec.resolutions)
}
