// Package advisors provides the advisor bounded context module: operator
// endpoints plus the handlers that keep inventory indexes and scores current.
package advisors

import (
	"lead_routing_backend/internal/advisors/handler"
	"lead_routing_backend/internal/advisors/inventory"
	"lead_routing_backend/internal/advisors/management"
	"lead_routing_backend/internal/advisors/repository"
	"lead_routing_backend/internal/advisors/scoring"
	"lead_routing_backend/internal/events"
	apphttp "lead_routing_backend/internal/http"
	"lead_routing_backend/internal/metrics"
	"lead_routing_backend/platform/logger"
	"lead_routing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	repo       *repository.Repository
	handler    *handler.Handler
	management *management.Service
	scoring    *scoring.Maintainer
}

func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := management.New(repo)

	return &Module{
		repo:       repo,
		handler:    handler.New(svc, val),
		management: svc,
	}
}

func (m *Module) Name() string {
	return "advisors"
}

// Repository exposes the advisor store, e.g. for candidate lookup.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/advisors"))
}

// RegisterHandlers subscribes the index and score maintainers. It returns
// the score maintainer so the caller can schedule the freshness sweep.
func (m *Module) RegisterHandlers(bus events.Bus, closeWeight float64, collectors *metrics.Metrics, log *logger.Logger) *scoring.Maintainer {
	index := inventory.New(m.repo, collectors, log)
	m.scoring = scoring.New(m.repo, closeWeight, collectors, log)

	bus.Subscribe(events.AdvisorWritten{}.EventName(), events.HandlerFunc(index.Handle))
	bus.Subscribe(events.AdvisorWritten{}.EventName(), events.HandlerFunc(m.scoring.HandleAdvisorWritten))
	bus.Subscribe(events.LeadWritten{}.EventName(), events.HandlerFunc(m.scoring.HandleLeadWritten))

	log.Info("advisors module registered event handlers")
	return m.scoring
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
