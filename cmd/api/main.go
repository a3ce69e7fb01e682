package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lead_routing_backend/internal/advisors"
	"lead_routing_backend/internal/events"
	apphttp "lead_routing_backend/internal/http"
	"lead_routing_backend/internal/http/router"
	"lead_routing_backend/internal/leads"
	"lead_routing_backend/internal/leads/conversion"
	"lead_routing_backend/internal/leads/ports"
	"lead_routing_backend/internal/metrics"
	"lead_routing_backend/internal/tracking/meta"
	"lead_routing_backend/platform/config"
	"lead_routing_backend/platform/db"
	"lead_routing_backend/platform/logger"
	"lead_routing_backend/platform/retry"
	"lead_routing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := retry.Do(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := retry.Do(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, log)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	// The API process only writes documents; triggers run in the worker.
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	var tracking ports.TrackingService
	if client := meta.NewClient(cfg, log); client != nil {
		tracking = client
	} else {
		log.Warn("conversions API not configured; funnel signals disabled")
	}
	signals := conversion.NewReporter(tracking, conversion.Settings{
		SourceURL:   cfg.GetTrackingSourceURL(),
		Currency:    cfg.GetTrackingCurrency(),
		PhoneRegion: cfg.GetPhoneDefaultRegion(),
	}, appMetrics, log)

	leadsModule := leads.NewModule(pool, val, cfg.GetPhoneDefaultRegion(), signals)
	advisorsModule := advisors.NewModule(pool, val)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Metrics:  appMetrics,
		Gatherer: registry,
		Modules: []apphttp.Module{
			leadsModule,
			advisorsModule,
		},
	}

	server := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
