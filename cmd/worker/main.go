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
	"lead_routing_backend/internal/advisors/scoring"
	"lead_routing_backend/internal/changefeed"
	"lead_routing_backend/internal/events"
	"lead_routing_backend/internal/leads"
	leadadapters "lead_routing_backend/internal/leads/adapters"
	"lead_routing_backend/internal/leads/conversion"
	"lead_routing_backend/internal/leads/ports"
	"lead_routing_backend/internal/metrics"
	"lead_routing_backend/internal/notification"
	"lead_routing_backend/internal/notification/telegram"
	"lead_routing_backend/internal/tracking/meta"
	"lead_routing_backend/platform/cache"
	"lead_routing_backend/platform/config"
	"lead_routing_backend/platform/db"
	"lead_routing_backend/platform/logger"
	"lead_routing_backend/platform/retry"
	"lead_routing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	if cfg.GetRedisURL() == "" {
		log.Error("REDIS_URL is required for the worker")
		os.Exit(1)
	}
	log.Info("starting worker", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	var guard *cache.Client
	if err := retry.Do(ctx, log, "redis connection", 5, 2*time.Second, func() error {
		c, err := cache.NewClient(ctx, cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
		if err != nil {
			return err
		}
		guard = c
		return nil
	}); err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	defer func() { _ = guard.Close() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	// ========================================================================
	// Trigger Handlers
	// ========================================================================

	advisorsModule := advisors.NewModule(pool, val)
	maintainer := advisorsModule.RegisterHandlers(eventBus, cfg.GetScoreCloseWeight(), appMetrics, log)

	leadsModule := leads.NewModule(pool, val, cfg.GetPhoneDefaultRegion(), nil)
	deps := leads.TriggerDeps{
		Candidates: leadadapters.NewCandidateFinderAdapter(advisorsModule.Repository()),
		Guard:      guard,
		Conversion: conversion.Settings{
			SourceURL:   cfg.GetTrackingSourceURL(),
			Currency:    cfg.GetTrackingCurrency(),
			PhoneRegion: cfg.GetPhoneDefaultRegion(),
		},
		LoyaltyLookback: cfg.GetLoyaltyLookback(),
		Metrics:         appMetrics,
		Log:             log,
	}
	if tracker := meta.NewClient(cfg, log); tracker != nil {
		deps.Tracking = tracker
	} else {
		log.Warn("conversions API not configured; schedule events disabled")
	}
	leadsModule.RegisterHandlers(eventBus, deps)

	var alerts ports.NotificationPort
	if bot := telegram.NewClient(cfg, log); bot != nil {
		alerts = bot
	} else {
		log.Warn("telegram not configured; admin alerts disabled")
	}
	notification.New(alerts, leadsModule.Repository(), appMetrics, log).RegisterHandlers(eventBus)

	// ========================================================================
	// Change Feed
	// ========================================================================

	dispatcher, err := changefeed.NewDispatcher(cfg, pool, log)
	if err != nil {
		log.Error("failed to initialize change-feed dispatcher", "error", err)
		panic("failed to initialize change-feed dispatcher: " + err.Error())
	}
	defer func() { _ = dispatcher.Close() }()

	worker, err := changefeed.NewWorker(cfg, pool, eventBus, appMetrics, log)
	if err != nil {
		log.Error("failed to initialize change-feed worker", "error", err)
		panic("failed to initialize change-feed worker: " + err.Error())
	}

	sweeper := scoring.NewFreshnessSweeper(maintainer, cfg.GetInventoryFreshnessWindow())
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.GetInventorySweepSpec(), func() {
		sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		defer cancel()
		if err := sweeper.Run(sweepCtx); err != nil {
			log.Error("inventory freshness sweep finished with errors", "error", err)
		}
	}); err != nil {
		log.Error("invalid inventory sweep schedule", "spec", cfg.GetInventorySweepSpec(), "error", err)
		panic("invalid inventory sweep schedule: " + err.Error())
	}

	metricsServer := &http.Server{
		Addr:              cfg.GetWorkerMetricsAddr(),
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dispatcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}
