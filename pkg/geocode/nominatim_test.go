package geocode

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccz-paraguacu/zoonoses/internal/resilience"
)

const avBrasilPlace = `[{
	"lat": "-22.4121", "lon": "-50.5733",
	"display_name": "951, Avenida Brasil, Centro, Paraguaçu Paulista, São Paulo, 19700-000, Brasil",
	"class": "place", "type": "house", "importance": 0.21,
	"address": {"house_number": "951", "road": "Avenida Brasil", "suburb": "Centro", "town": "Paraguaçu Paulista", "state": "São Paulo"}
}]`

func TestNominatimVariants_Order(t *testing.T) {
	c := NewNominatimClient(DefaultRegion())
	var names []string
	for _, v := range c.Variants() {
		names = append(names, v.Name())
	}
	assert.Equal(t, []string{ProviderStructured, ProviderBounded, ProviderDetailed, ProviderSimple}, names)
}

func TestNominatimSearch_Structured(t *testing.T) {
	srv := newStubServer(t, func(_ *http.Request) (int, string) {
		return http.StatusOK, avBrasilPlace
	})
	c := newTestNominatim(srv)

	req := newSearchRequest("Av. Brasil, 951 - Centro", DefaultRegion())
	cands, err := c.Variants()[0].Search(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, cands, 1)

	got := cands[0]
	assert.InDelta(t, -22.4121, got.Latitude, 1e-9)
	assert.InDelta(t, -50.5733, got.Longitude, 1e-9)
	assert.Equal(t, "951", got.HouseNumber)
	assert.Equal(t, "Avenida Brasil", got.Road)
	assert.Equal(t, "house", got.PlaceType)
	assert.Equal(t, "place", got.PlaceClass)
	require.NotNil(t, got.Importance)
	assert.InDelta(t, 0.21, *got.Importance, 1e-9)

	r := srv.request(0)
	assert.Equal(t, "/search", r.URL.Path)
	q := r.URL.Query()
	assert.Equal(t, "951 Av. Brasil", q.Get("street"))
	assert.Equal(t, "Paraguaçu Paulista", q.Get("city"))
	assert.Equal(t, "SP", q.Get("state"))
	assert.Equal(t, "Brasil", q.Get("country"))
	assert.Equal(t, "json", q.Get("format"))
	assert.Equal(t, "1", q.Get("addressdetails"))
	assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
}

func TestNominatimSearch_BoundedDetailedSimpleParams(t *testing.T) {
	srv := newStubServer(t, func(_ *http.Request) (int, string) {
		return http.StatusOK, `[]`
	})
	c := newTestNominatim(srv)
	req := newSearchRequest("Rua Bahia, 10", DefaultRegion())

	for _, v := range c.Variants()[1:] {
		cands, err := v.Search(context.Background(), req)
		require.NoError(t, err)
		assert.Empty(t, cands)
	}
	require.EqualValues(t, 3, srv.hits.Load())

	bounded := srv.request(0).URL.Query()
	assert.Equal(t, "Rua Bahia, 10, Paraguaçu Paulista, SP, Brasil", bounded.Get("q"))
	assert.Equal(t, "-50.72,-22.3,-50.45,-22.55", bounded.Get("viewbox"))
	assert.Equal(t, "1", bounded.Get("bounded"))

	detailed := srv.request(1).URL.Query()
	assert.Equal(t, "1", detailed.Get("extratags"))
	assert.Empty(t, detailed.Get("viewbox"))
	assert.Equal(t, "10", detailed.Get("limit"))

	simple := srv.request(2).URL.Query()
	assert.Equal(t, "Rua Bahia, 10, Paraguaçu Paulista - SP", simple.Get("q"))
	assert.Equal(t, "3", simple.Get("limit"))
}

func TestNominatimSearch_SkipsBadCoordinates(t *testing.T) {
	srv := newStubServer(t, func(_ *http.Request) (int, string) {
		return http.StatusOK, `[{"lat": "n/a", "lon": "-50.5", "display_name": "broken"},
			{"lat": "-22.41", "lon": "-50.57", "display_name": "ok", "category": "building", "type": "yes"}]`
	})
	c := newTestNominatim(srv)

	cands, err := c.Variants()[2].Search(context.Background(), newSearchRequest("x", DefaultRegion()))
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "ok", cands[0].DisplayName)
	assert.Equal(t, "building", cands[0].PlaceClass)
	assert.Nil(t, cands[0].Importance)
}

func TestNominatimSearch_ServerError(t *testing.T) {
	srv := newStubServer(t, func(_ *http.Request) (int, string) {
		return http.StatusServiceUnavailable, `busy`
	})
	c := newTestNominatim(srv)

	_, err := c.Variants()[0].Search(context.Background(), newSearchRequest("x", DefaultRegion()))
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "status 503")
}

func TestNominatimSearch_BadRequestIsNotTransient(t *testing.T) {
	srv := newStubServer(t, func(_ *http.Request) (int, string) {
		return http.StatusBadRequest, `{}`
	})
	c := newTestNominatim(srv)

	_, err := c.Variants()[0].Search(context.Background(), newSearchRequest("x", DefaultRegion()))
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestNominatimSearch_MalformedJSON(t *testing.T) {
	srv := newStubServer(t, func(_ *http.Request) (int, string) {
		return http.StatusOK, `{not json`
	})
	c := newTestNominatim(srv)

	_, err := c.Variants()[1].Search(context.Background(), newSearchRequest("x", DefaultRegion()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")
}

func TestNominatimSearch_BreakerOpensAndRecords(t *testing.T) {
	srv := newStubServer(t, func(_ *http.Request) (int, string) {
		return http.StatusBadGateway, ``
	})
	rec := &recordingRecorder{}
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ShouldTrip:       resilience.IsTransient,
	})
	c := NewNominatimClient(DefaultRegion(),
		WithBaseURL(srv.URL),
		WithLimiter(newTestLimiter()),
		WithBreaker(cb),
		WithProviderRecorder(rec),
	)
	req := newSearchRequest("x", DefaultRegion())

	for _, v := range c.Variants() {
		_, err := v.Search(context.Background(), req)
		require.Error(t, err)
	}

	assert.EqualValues(t, 2, srv.hits.Load())
	assert.Equal(t, []string{
		ProviderStructured + ":error",
		ProviderBounded + ":error",
		ProviderDetailed + ":circuit_open",
		ProviderSimple + ":circuit_open",
	}, rec.providers)
}

func TestWithRateLimit_SubOneKeepsBurst(t *testing.T) {
	c := NewNominatimClient(DefaultRegion(), WithRateLimit(0.5))
	assert.Equal(t, 1, c.limiter.Burst())
}
