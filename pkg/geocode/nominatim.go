package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ccz-paraguacu/zoonoses/internal/resilience"
)

const (
	defaultNominatimURL = "https://nominatim.openstreetmap.org"
	defaultUserAgent    = "zoonoses/1.0 (vigilancia epidemiologica)"
)

// nominatimPlace is one element of the Nominatim /search JSON array.
type nominatimPlace struct {
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	DisplayName string   `json:"display_name"`
	Class       string   `json:"class"`
	Category    string   `json:"category"` // jsonv2 name of class
	Type        string   `json:"type"`
	Importance  *float64 `json:"importance"`
	Address     struct {
		HouseNumber string `json:"house_number"`
		Road        string `json:"road"`
		Suburb      string `json:"suburb"`
		City        string `json:"city"`
		Town        string `json:"town"`
		State       string `json:"state"`
	} `json:"address"`
}

// HTTPOption configures the outbound HTTP clients (Nominatim and ViaCEP).
type HTTPOption func(*httpBase)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(b *httpBase) {
		b.httpClient = hc
	}
}

// WithBaseURL overrides the service base URL.
func WithBaseURL(u string) HTTPOption {
	return func(b *httpBase) {
		if u != "" {
			b.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) HTTPOption {
	return func(b *httpBase) {
		if ua != "" {
			b.userAgent = ua
		}
	}
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) HTTPOption {
	return func(b *httpBase) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLimiter shares an existing limiter.
func WithLimiter(l *rate.Limiter) HTTPOption {
	return func(b *httpBase) {
		b.limiter = l
	}
}

// WithBreaker guards requests with a circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) HTTPOption {
	return func(b *httpBase) {
		b.breaker = cb
	}
}

// WithProviderRecorder reports per-request telemetry.
func WithProviderRecorder(r Recorder) HTTPOption {
	return func(b *httpBase) {
		if r != nil {
			b.recorder = r
		}
	}
}

// httpBase is the rate-limited, breaker-guarded GET shared by both services.
type httpBase struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
	recorder   Recorder
}

func newHTTPBase(baseURL string, opts []HTTPOption) httpBase {
	b := httpBase{
		baseURL:    baseURL,
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(1, 1), // Nominatim usage policy: 1 req/s
		recorder:   nopRecorder{},
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// getJSON performs a GET and decodes the JSON body into out.
func (b *httpBase) getJSON(ctx context.Context, provider, path string, params url.Values, out any) error {
	start := time.Now()
	call := func(ctx context.Context) error {
		return b.doGet(ctx, path, params, out)
	}

	var err error
	if b.breaker != nil {
		err = b.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}

	outcome := "ok"
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		outcome = "circuit_open"
	case err != nil:
		outcome = "error"
	}
	b.recorder.ObserveProvider(provider, outcome, time.Since(start))
	return err
}

func (b *httpBase) doGet(ctx context.Context, path string, params url.Values, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "geocode: rate limit")
	}

	reqURL := b.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "geocode: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("geocode: %s returned status %d", path, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "geocode: read body")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "geocode: parse response")
	}
	return nil
}

// NominatimClient queries the OpenStreetMap Nominatim /search endpoint.
type NominatimClient struct {
	httpBase
	region Region
}

// NewNominatimClient creates a client searching within region.
func NewNominatimClient(region Region, opts ...HTTPOption) *NominatimClient {
	return &NominatimClient{
		httpBase: newHTTPBase(defaultNominatimURL, opts),
		region:   region,
	}
}

// search runs one /search call and converts usable places to candidates.
func (c *NominatimClient) search(ctx context.Context, variant string, params url.Values) ([]Candidate, error) {
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	if params.Get("countrycodes") == "" {
		params.Set("countrycodes", "br")
	}

	var places []nominatimPlace
	if err := c.getJSON(ctx, variant, "/search", params, &places); err != nil {
		return nil, err
	}

	cands := make([]Candidate, 0, len(places))
	for _, p := range places {
		lat, latErr := strconv.ParseFloat(p.Lat, 64)
		lon, lonErr := strconv.ParseFloat(p.Lon, 64)
		if latErr != nil || lonErr != nil {
			zap.L().Debug("nominatim: skipping place with bad coordinates",
				zap.String("variant", variant),
				zap.String("display_name", p.DisplayName),
			)
			continue
		}
		class := p.Class
		if class == "" {
			class = p.Category
		}
		cands = append(cands, Candidate{
			Latitude:    lat,
			Longitude:   lon,
			DisplayName: p.DisplayName,
			HouseNumber: p.Address.HouseNumber,
			Road:        p.Address.Road,
			PlaceType:   p.Type,
			PlaceClass:  class,
			Importance:  p.Importance,
		})
	}
	return cands, nil
}

// Variants returns the four query shapes in the order they are tried.
func (c *NominatimClient) Variants() []Searcher {
	return []Searcher{
		&nominatimVariant{client: c, name: ProviderStructured, build: c.structuredParams},
		&nominatimVariant{client: c, name: ProviderBounded, build: c.boundedParams},
		&nominatimVariant{client: c, name: ProviderDetailed, build: c.detailedParams},
		&nominatimVariant{client: c, name: ProviderSimple, build: c.simpleParams},
	}
}

func (c *NominatimClient) structuredParams(req SearchRequest) url.Values {
	street := req.Road
	if req.HouseNumber != "" {
		street = req.HouseNumber + " " + req.Road
	}
	return url.Values{
		"street":  {street},
		"city":    {c.region.Municipality},
		"state":   {c.region.State},
		"country": {c.region.Country},
		"limit":   {"5"},
	}
}

func (c *NominatimClient) boundedParams(req SearchRequest) url.Values {
	r := c.region
	return url.Values{
		"q":       {req.Normalized},
		"viewbox": {fmt.Sprintf("%g,%g,%g,%g", r.MinLng, r.MaxLat, r.MaxLng, r.MinLat)},
		"bounded": {"1"},
		"limit":   {"5"},
	}
}

func (c *NominatimClient) detailedParams(req SearchRequest) url.Values {
	return url.Values{
		"q":           {req.Normalized},
		"extratags":   {"1"},
		"namedetails": {"1"},
		"limit":       {"10"},
	}
}

func (c *NominatimClient) simpleParams(req SearchRequest) url.Values {
	q := req.Raw
	if !containsFold(q, c.region.Municipality) {
		q = fmt.Sprintf("%s, %s - %s", q, c.region.Municipality, c.region.State)
	}
	return url.Values{
		"q":     {q},
		"limit": {"3"},
	}
}

// nominatimVariant is one query shape against the shared client.
type nominatimVariant struct {
	client *NominatimClient
	name   string
	build  func(SearchRequest) url.Values
}

// Name implements Searcher.
func (v *nominatimVariant) Name() string { return v.name }

// Search implements Searcher.
func (v *nominatimVariant) Search(ctx context.Context, req SearchRequest) ([]Candidate, error) {
	return v.client.search(ctx, v.name, v.build(req))
}
