// Package server exposes the dashboard records and the address resolver
// over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ccz-paraguacu/zoonoses/internal/observability"
	"github.com/ccz-paraguacu/zoonoses/internal/records"
	"github.com/ccz-paraguacu/zoonoses/internal/resilience"
	"github.com/ccz-paraguacu/zoonoses/internal/store"
)

// Deps are the collaborators the API serves.
type Deps struct {
	Store    store.Store
	Resolver records.Resolver

	// Optional.
	Breakers *resilience.Breakers
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer // defaults to prometheus.DefaultGatherer
}

// Options tune the HTTP surface.
type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
	MetricsPath    string  // empty disables the metrics endpoint
	MinConfidence  float64 // records resolved below this are re-resolved on save
}

// Server holds the API handlers.
type Server struct {
	store    store.Store
	resolver records.Resolver
	locator  *records.Locator
	breakers *resilience.Breakers
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	opts     Options
}

// New creates a Server.
func New(deps Deps, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		store:    deps.Store,
		resolver: deps.Resolver,
		locator:  records.NewLocator(deps.Resolver),
		breakers: deps.Breakers,
		metrics:  deps.Metrics,
		gatherer: gatherer,
		opts:     opts,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	if s.metrics != nil {
		r.Use(s.instrument)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.opts.MetricsPath != "" {
		r.Handle(s.opts.MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))

		r.Post("/geocode", s.handleGeocode)
		r.Post("/geocode/manual", s.handleManual)

		r.Route("/cases", func(r chi.Router) {
			r.Get("/", s.listCases)
			r.Post("/", s.createCase)
			r.Get("/geojson", s.casesGeoJSON)
			r.Get("/stats", s.caseStats)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getCase)
				r.Put("/", s.updateCase)
				r.Delete("/", s.deleteCase)
				r.Put("/location", s.pinCase)
			})
		})

		r.Route("/vaccinations", func(r chi.Router) {
			r.Get("/", s.listVaccinations)
			r.Post("/", s.createVaccination)
			r.Get("/geojson", s.vaccinationsGeoJSON)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getVaccination)
				r.Put("/", s.updateVaccination)
				r.Delete("/", s.deleteVaccination)
				r.Put("/location", s.pinVaccination)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		logError("server: health ping", err)
		body["status"] = "unavailable"
		body["store"] = "unreachable"
		code = http.StatusServiceUnavailable
	}
	if s.breakers != nil {
		body["providers"] = s.breakers.States()
	}
	writeJSON(w, code, body)
}
