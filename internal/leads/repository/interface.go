package repository

import (
	"context"
	"time"

	"lead_routing_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// LeadReader provides read-only access to lead data.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	List(ctx context.Context, params ListParams) ([]domain.Lead, error)
}

// ClientHistoryReader looks up a client's earlier leads.
type ClientHistoryReader interface {
	ListRecentByClientEmail(ctx context.Context, email string, limit int, excludeID uuid.UUID) ([]domain.Lead, error)
}

// LeadWriter provides operator-facing write operations.
type LeadWriter interface {
	Create(ctx context.Context, params CreateParams) (domain.Lead, error)
	UpdateStatus(ctx context.Context, params UpdateStatusParams) (domain.Lead, error)
	ScheduleAppointment(ctx context.Context, params ScheduleParams) (domain.Lead, error)
}

// AssignmentWriter persists routing outcomes. Both writes are conditional on
// the lead still being unassigned and report whether they applied.
type AssignmentWriter interface {
	Assign(ctx context.Context, params AssignParams) (bool, error)
	Escalate(ctx context.Context, params EscalateParams) (bool, error)
}

// HistoryWriter appends history and consumes transient annotations.
type HistoryWriter interface {
	ReconcileHistory(ctx context.Context, params ReconcileParams) (bool, error)
}

// LeadRepository combines all lead repository interfaces.
type LeadRepository interface {
	LeadReader
	ClientHistoryReader
	LeadWriter
	AssignmentWriter
	HistoryWriter
}

// =====================================
// Parameters
// =====================================

type CreateParams struct {
	ClientName      string
	ClientEmail     *string
	ClientPhone     *string
	DevelopmentID   string
	DevelopmentName string
	Status          domain.Status
	ClientIP        *string
	UserAgent       *string
	SourceURL       *string
	FBC             *string
	FBP             *string
	ZipCode         *string
}

type ListParams struct {
	Status    *domain.Status
	AdvisorID *uuid.UUID
	Limit     int
}

type UpdateStatusParams struct {
	LeadID    uuid.UUID
	Status    domain.Status
	Reason    *string
	ChangedBy *string
}

type ScheduleParams struct {
	LeadID          uuid.UUID
	TrackingEventID string
	AppointmentAt   time.Time
	Reason          *string
	ChangedBy       *string
}

type AssignParams struct {
	LeadID    uuid.UUID
	AdvisorID uuid.UUID
	Reason    string
	Entry     domain.HistoryEntry
	At        time.Time
}

type EscalateParams struct {
	LeadID uuid.UUID
	Reason string
	Entry  domain.HistoryEntry
}

type ReconcileParams struct {
	LeadID         uuid.UUID
	ChangeID       uuid.UUID
	Entry          *domain.HistoryEntry
	ClearTransient bool
}
