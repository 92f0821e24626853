package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ccz-paraguacu/zoonoses/internal/config"
	"github.com/ccz-paraguacu/zoonoses/internal/db"
	"github.com/ccz-paraguacu/zoonoses/internal/resilience"
	"github.com/ccz-paraguacu/zoonoses/internal/store"
	"github.com/ccz-paraguacu/zoonoses/pkg/geocode"
)

const defaultSQLitePath = "zoonoses.db"

func initStore(ctx context.Context, c config.StoreConfig) (store.Store, error) {
	switch c.Driver {
	case "sqlite":
		dsn := c.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		return store.NewSQLite(dsn)
	case "postgres":
		if c.DatabaseURL == "" {
			return nil, eris.New("database url is required (ZOONOSES_STORE_DATABASE_URL)")
		}
		return store.NewPostgres(ctx, c.DatabaseURL, db.PoolConfig{MaxConns: c.MaxConns, MinConns: c.MinConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Driver)
	}
}

// newResolver wires Nominatim and ViaCEP behind one breaker each. rec may
// be nil.
func newResolver(g config.GeocodeConfig, rec geocode.Recorder) (*geocode.Resolver, *resilience.Breakers) {
	breakers := resilience.NewBreakers(resilience.FromCircuitConfig(g.BreakerFailures, g.BreakerResetSecs))
	hc := &http.Client{Timeout: time.Duration(g.TimeoutSecs) * time.Second}

	httpOpts := func(baseURL, service string) []geocode.HTTPOption {
		opts := []geocode.HTTPOption{
			geocode.WithHTTPClient(hc),
			geocode.WithBaseURL(baseURL),
			geocode.WithUserAgent(g.UserAgent),
			geocode.WithRateLimit(g.RateLimit),
			geocode.WithBreaker(breakers.Get(service)),
		}
		if rec != nil {
			opts = append(opts, geocode.WithProviderRecorder(rec))
		}
		return opts
	}

	nominatim := geocode.NewNominatimClient(g.Region, httpOpts(g.NominatimURL, "nominatim")...)
	viacep := geocode.NewViaCEPClient(httpOpts(g.ViaCEPURL, "viacep")...)

	ropts := []geocode.ResolverOption{
		geocode.WithWeights(g.Weights),
		geocode.WithThresholds(g.AcceptThreshold, g.KeepThreshold),
	}
	if rec != nil {
		ropts = append(ropts, geocode.WithRecorder(rec))
	}
	return geocode.NewResolver(g.Region, nominatim.Variants(), viacep, ropts...), breakers
}
