package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// newTestLimiter creates a rate limiter that effectively does not limit for tests.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// stubServer serves canned bodies and counts requests.
type stubServer struct {
	*httptest.Server
	hits atomic.Int32

	mu       sync.Mutex
	requests []*http.Request
}

// newStubServer starts a server whose handler picks the response for each request.
func newStubServer(t *testing.T, respond func(r *http.Request) (int, string)) *stubServer {
	t.Helper()
	s := &stubServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.mu.Lock()
		s.requests = append(s.requests, r.Clone(context.Background()))
		s.mu.Unlock()

		status, body := respond(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *stubServer) request(i int) *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

// newTestNominatim points a NominatimClient at srv.
func newTestNominatim(srv *stubServer) *NominatimClient {
	return NewNominatimClient(DefaultRegion(),
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithLimiter(newTestLimiter()),
	)
}

// fakeSearcher returns fixed candidates and counts calls.
type fakeSearcher struct {
	name  string
	cands []Candidate
	err   error
	calls int
}

func (f *fakeSearcher) Name() string { return f.name }

func (f *fakeSearcher) Search(_ context.Context, _ SearchRequest) ([]Candidate, error) {
	f.calls++
	return f.cands, f.err
}

// fakePostal returns a fixed address and records looked-up codes.
type fakePostal struct {
	addr   *PostalAddress
	err    error
	lookup []string
}

func (f *fakePostal) Lookup(_ context.Context, cep string) (*PostalAddress, error) {
	f.lookup = append(f.lookup, cep)
	if f.addr == nil {
		return nil, f.err
	}
	a := *f.addr
	a.PostalCode = cep
	return &a, f.err
}

// recordingRecorder captures telemetry calls.
type recordingRecorder struct {
	mu          sync.Mutex
	providers   []string
	resolutions []string
}

func (r *recordingRecorder) ObserveProvider(provider, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, provider+":"+outcome)
}

func (r *recordingRecorder) ObserveResolution(entry, provider, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolutions = append(r.resolutions, entry+":"+provider+":"+outcome)
}

func ptr(f float64) *float64 { return &f }
