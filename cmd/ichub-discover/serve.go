package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/internal/config"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/hub"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/log"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/metrics"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/persistence"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the discovery hub, syncing caches to Postgres and serving metrics",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := log.WithComponent("ichub-discover")

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var pool *pgxpool.Pool
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("opening postgres connection for migration: %w", err)
		}
		if err := persistence.Migrate(db); err != nil {
			db.Close()
			return fmt.Errorf("running migrations: %w", err)
		}
		db.Close()

		pool, err = pgxpool.New(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("opening postgres pool: %w", err)
		}
		defer pool.Close()
	} else {
		logger.Warn().Msg("ICHUB_POSTGRES_DSN not set, running with in-memory caches only")
	}

	h, err := hub.New(hub.Config{
		ConnectorTTL:               cfg.ConnectorTTL,
		DtrTTL:                     cfg.DtrTTL,
		HarvestTimeout:             cfg.HarvestTimeout,
		DtrTypeFilter:              cfg.DtrTypeFilter(),
		ShellCacheCapacity:         cfg.ShellCacheCapacity,
		DiscoveryRetries:           cfg.DiscoveryRetries,
		DiscoveryTimeout:           cfg.DiscoveryTimeout,
		SubmodelNegotiationPoolCap: cfg.SubmodelNegotiationPoolCap,
		SubmodelFetchPoolCap:       cfg.SubmodelFetchPoolCap,
		SubmodelFetchTimeout:       cfg.SubmodelFetchTimeout,
		DiscoveryServiceURL:        cfg.DiscoveryServiceURL,
		Negotiation:                cfg.NegotiationConfig(),
		DB:                         pool,
		SyncInterval:               cfg.SyncInterval,
	})
	if err != nil {
		return fmt.Errorf("constructing hub: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("starting hub: %w", err)
	}
	defer h.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())

	server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics endpoint listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	metrics.SetVersion("1.0.0")
	metrics.RegisterComponent("discovery_hub", true, "running")

	logger.Info().Msg("discovery hub started")
	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.DiscoveryTimeout)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	return nil
}
