// Package notification sends operator alerts in response to lead and user
// events.
// Domain modules publish events; they do not know about the chat provider.
package notification

import (
	"context"
	"fmt"
	"time"

	"lead_routing_backend/internal/events"
	leaddomain "lead_routing_backend/internal/leads/domain"
	"lead_routing_backend/internal/leads/ports"
	leadrepo "lead_routing_backend/internal/leads/repository"
	"lead_routing_backend/internal/metrics"
	"lead_routing_backend/platform/logger"
)

const (
	component = "lead_alerts"

	alertTimezone = "America/Mexico_City"
)

// Module handles all notification-related event subscriptions.
type Module struct {
	alerts  ports.NotificationPort
	history leadrepo.ClientHistoryReader
	loc     *time.Location
	metrics *metrics.Metrics
	log     *logger.Logger
}

// New builds the module. alerts may be nil when no channel is configured.
func New(alerts ports.NotificationPort, history leadrepo.ClientHistoryReader, m *metrics.Metrics, log *logger.Logger) *Module {
	loc, err := time.LoadLocation(alertTimezone)
	if err != nil {
		loc = time.UTC
	}
	return &Module{
		alerts:  alerts,
		history: history,
		loc:     loc,
		metrics: m,
		log:     log.WithComponent(component),
	}
}

// RegisterHandlers subscribes the module to the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadWritten{}.EventName(), m)
	bus.Subscribe(events.LeadEscalated{}.EventName(), m)
	bus.Subscribe(events.AdvisorWritten{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method. Alerts are best
// effort; failures are logged and never returned.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	if m.alerts == nil {
		return nil
	}

	var err error
	switch e := event.(type) {
	case events.LeadWritten:
		if !e.IsCreate() {
			return nil
		}
		err = m.handleLeadCreated(ctx, e)
	case events.LeadEscalated:
		err = m.alerts.SendAlert(ctx, NoCoverageMessage(e))
	case events.AdvisorWritten:
		if !e.IsCreate() {
			return nil
		}
		err = m.alerts.SendAlert(ctx, NewUserMessage(e.After))
	default:
		return nil
	}

	if err != nil {
		m.metrics.RecordHandlerError(component)
		m.log.WithContext(ctx).HandlerError(component, err, "event", event.EventName())
	}
	return nil
}

func (m *Module) handleLeadCreated(ctx context.Context, e events.LeadWritten) error {
	var other []leaddomain.Lead
	if email := e.After.ClientEmail(); email != "" && m.history != nil {
		leads, err := m.history.ListRecentByClientEmail(ctx, email, maxHistoryRows+1, e.LeadID)
		if err != nil {
			// The alert still goes out without the history section.
			m.log.WithContext(ctx).Warn("client history lookup failed", "lead_id", e.LeadID, "error", err)
		} else {
			other = leads
		}
	}

	if err := m.alerts.SendAlert(ctx, NewLeadMessage(e.After, other, m.loc)); err != nil {
		return fmt.Errorf("send new lead alert: %w", err)
	}
	return nil
}
