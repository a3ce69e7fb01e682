// Package events holds the change events delivered by the change feed.
// Leads and advisors handlers subscribe to them by name.
package events

import (
	advisordomain "lead_routing_backend/internal/advisors/domain"
	leaddomain "lead_routing_backend/internal/leads/domain"
	"lead_routing_backend/platform/events"
	"lead_routing_backend/platform/logger"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Change Feed Events
// =============================================================================

// LeadWritten is published once per committed write to a lead.
// Before is nil on creation. Deletes are not published.
type LeadWritten struct {
	BaseEvent
	ChangeID uuid.UUID        `json:"changeId"`
	LeadID   uuid.UUID        `json:"leadId"`
	Before   *leaddomain.Lead `json:"before,omitempty"`
	After    leaddomain.Lead  `json:"after"`
}

func (e LeadWritten) EventName() string { return "leads.lead.written" }

// IsCreate reports whether the write created the lead.
func (e LeadWritten) IsCreate() bool { return e.Before == nil }

// StatusChanged reports whether the write moved the lead to another status.
func (e LeadWritten) StatusChanged() bool {
	if e.Before == nil {
		return e.After.Status != ""
	}
	return e.Before.Status != e.After.Status
}

// AdvisorWritten is published once per committed write to a user document.
type AdvisorWritten struct {
	BaseEvent
	ChangeID  uuid.UUID              `json:"changeId"`
	AdvisorID uuid.UUID              `json:"advisorId"`
	Before    *advisordomain.Advisor `json:"before,omitempty"`
	After     advisordomain.Advisor  `json:"after"`
}

func (e AdvisorWritten) EventName() string { return "advisors.advisor.written" }

// IsCreate reports whether the write created the document.
func (e AdvisorWritten) IsCreate() bool { return e.Before == nil }

// =============================================================================
// Routing Events
// =============================================================================

// LeadEscalated is published when no advisor covers a lead's development.
type LeadEscalated struct {
	BaseEvent
	LeadID          uuid.UUID `json:"leadId"`
	DevelopmentID   string    `json:"developmentId"`
	DevelopmentName string    `json:"developmentName"`
	ClientName      string    `json:"clientName"`
}

func (e LeadEscalated) EventName() string { return "leads.lead.escalated" }

// LeadAssigned is published after the assignment write commits.
type LeadAssigned struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	AdvisorID uuid.UUID `json:"advisorId"`
	Reason    string    `json:"reason"`
}

func (e LeadAssigned) EventName() string { return "leads.lead.assigned" }

