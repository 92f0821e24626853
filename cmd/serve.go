package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ccz-paraguacu/zoonoses/internal/observability"
	"github.com/ccz-paraguacu/zoonoses/internal/server"
	"github.com/ccz-paraguacu/zoonoses/pkg/geocode"
)

var (
	servePort    int
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if serveMigrate {
			if err := st.Migrate(ctx); err != nil {
				return err
			}
		}

		var (
			metrics     *observability.Metrics
			rec         geocode.Recorder
			metricsPath string
		)
		if cfg.Metrics.Enabled {
			metrics = observability.NewMetrics(prometheus.DefaultRegisterer)
			rec = metrics
			metricsPath = cfg.Metrics.Path
		}
		resolver, breakers := newResolver(cfg.Geocode, rec)

		api := server.New(server.Deps{
			Store:    st,
			Resolver: resolver,
			Breakers: breakers,
			Metrics:  metrics,
		}, server.Options{
			CORSOrigins:    cfg.Server.CORSOrigins,
			RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSecs) * time.Second,
			MetricsPath:    metricsPath,
			MinConfidence:  cfg.Geocode.KeepThreshold,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (default from config)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "create tables before serving")
	rootCmd.AddCommand(serveCmd)
}
