// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"lead_routing_backend/internal/events"
	"lead_routing_backend/internal/metrics"
	"lead_routing_backend/platform/config"
	"lead_routing_backend/platform/logger"

	"github.com/prometheus/client_golang/prometheus"
)

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the router configuration.
	Config config.HTTPConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness/health checks (e.g., DB ping).
	Health HealthChecker
	// EventBus is the domain event bus for cross-module communication.
	EventBus events.Bus
	// Metrics records request counters; nil disables them.
	Metrics *metrics.Metrics
	// Gatherer backs the /metrics endpoint; nil hides it.
	Gatherer prometheus.Gatherer
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
