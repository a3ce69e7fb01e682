// Package leads provides the lead bounded context module.
// This file defines the module that encapsulates all leads setup, route
// registration and change-feed subscriptions.
package leads

import (
	"lead_routing_backend/internal/events"
	apphttp "lead_routing_backend/internal/http"
	"lead_routing_backend/internal/leads/assignment"
	"lead_routing_backend/internal/leads/conversion"
	"lead_routing_backend/internal/leads/handler"
	"lead_routing_backend/internal/leads/history"
	"lead_routing_backend/internal/leads/management"
	"lead_routing_backend/internal/leads/ports"
	"lead_routing_backend/internal/leads/repository"
	"lead_routing_backend/internal/metrics"
	"lead_routing_backend/platform/logger"
	"lead_routing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	repo    *repository.Repository
	handler *handler.Handler
}

// NewModule creates and initializes the leads module with all its dependencies.
// signals may be nil; funnel signals are then accepted and dropped.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, phoneRegion string, signals *conversion.Reporter) *Module {
	repo := repository.New(pool)
	mgmtSvc := management.New(repo, phoneRegion)

	return &Module{
		repo:    repo,
		handler: handler.New(mgmtSvc, signals, val),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Repository exposes the lead store to the composition root.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterPublicRoutes(ctx.Public.Group("/leads"))
	m.handler.RegisterRoutes(ctx.V1.Group("/leads"))
}

// TriggerDeps are the collaborators of the lead change-feed handlers.
type TriggerDeps struct {
	Candidates      ports.CandidateFinder
	Tracking        ports.TrackingService
	Guard           conversion.Guard
	Conversion      conversion.Settings
	LoyaltyLookback int
	Metrics         *metrics.Metrics
	Log             *logger.Logger
	Assignment      []assignment.Option
}

// RegisterHandlers subscribes routing, history and conversion reporting to
// lead writes. Each handler contains its own failures.
func (m *Module) RegisterHandlers(bus events.Bus, deps TriggerDeps) {
	engine := assignment.New(m.repo, deps.Candidates, bus, deps.LoyaltyLookback, deps.Metrics, deps.Log, deps.Assignment...)
	tracker := history.New(m.repo, deps.Metrics, deps.Log)
	dedup := conversion.New(deps.Tracking, deps.Guard, deps.Conversion, deps.Metrics, deps.Log)

	written := events.LeadWritten{}.EventName()
	bus.Subscribe(written, events.HandlerFunc(engine.Handle))
	bus.Subscribe(written, events.HandlerFunc(tracker.Handle))
	bus.Subscribe(written, events.HandlerFunc(dedup.Handle))

	deps.Log.Info("leads module registered event handlers")
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
