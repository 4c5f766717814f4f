package main

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/bazirun/internal/application"
	"github.com/sawpanic/bazirun/internal/cache"
	"github.com/sawpanic/bazirun/internal/config"
	httpserver "github.com/sawpanic/bazirun/internal/interfaces/http"
	"github.com/sawpanic/bazirun/internal/interfaces/http/handlers"
	"github.com/sawpanic/bazirun/internal/persistence"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chart API over HTTP",
		Long: `Serve POST /v1/chart, GET /v1/terms/{year}, GET /health and GET /metrics.

Reference data is loaded once at startup. When cache.enabled is set the
rendered results are cached in Redis behind a circuit breaker, with an
in-process cache in front.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Listen host; config value when unset")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port; config value when unset")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	metrics := httpserver.NewMetricsRegistry()
	e, err := buildEngine(ctx, cfg, application.WithMarkerObserver(metrics.ObserveMarker))
	if err != nil {
		return err
	}
	defer e.Close()

	var client *redis.Client
	if cfg.Cache.Enabled {
		client, err = cache.NewRedisClient(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
		if err != nil {
			// the memory layer still serves; the breaker is not involved
			log.Warn().Err(err).Str("addr", cfg.Cache.Addr).Msg("redis unavailable, using the in-process cache only")
			client = nil
		}
	}
	charts := cache.NewChartCache(client, cache.Options{
		Namespace:     e.svc.Fingerprint(),
		TTL:           cfg.Cache.TTL,
		MemoryEntries: cfg.Cache.MemoryEntries,
		MaxFailures:   cfg.Cache.Breaker.MaxFailures,
		OpenTimeout:   cfg.Cache.Breaker.OpenTimeout,
	})
	defer charts.Close()

	var database persistence.RepositoryHealth
	if e.manager != nil && e.manager.IsEnabled() {
		database = e.manager.Health()
	}

	h := handlers.NewHandlers(e.svc, handlers.Options{
		Cache:    charts,
		Recorder: metrics,
		Database: database,
		Zone:     cfg.Location(),
		Version:  version,
	})
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimit:      cfg.Server.RateLimit,
		Burst:          cfg.Server.Burst,
	}, h, metrics)

	log.Info().
		Str("app", appName).
		Str("version", version).
		Str("fingerprint", e.svc.Fingerprint()).
		Str("terms", cfg.Data.TermsSource).
		Str("cache", charts.BreakerState()).
		Msg("chart API starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
