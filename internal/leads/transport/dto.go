package transport

import (
	"time"

	"lead_routing_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// CreateLeadRequest is the public intake form. At least one of Email and
// Phone is required.
type CreateLeadRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=120"`
	Email           string `json:"email" validate:"omitempty,email,max=254"`
	Phone           string `json:"phone" validate:"omitempty,min=7,max=24"`
	DevelopmentID   string `json:"developmentId" validate:"required,max=100"`
	DevelopmentName string `json:"developmentName" validate:"omitempty,max=200"`
	SourceURL       string `json:"sourceUrl" validate:"omitempty,url,max=2048"`
	FBC             string `json:"fbc" validate:"omitempty,max=500"`
	FBP             string `json:"fbp" validate:"omitempty,max=500"`
	ZipCode         string `json:"zipCode" validate:"omitempty,max=10"`
}

// SignalRequest is a funnel step reported by the browser before the intake
// form is submitted.
type SignalRequest struct {
	Event           string  `json:"event" validate:"required,oneof=Contact ViewContent"`
	EventID         string  `json:"eventId" validate:"required,max=100"`
	Name            string  `json:"name" validate:"omitempty,max=120"`
	Email           string  `json:"email" validate:"omitempty,email,max=254"`
	Phone           string  `json:"phone" validate:"omitempty,min=7,max=24"`
	DevelopmentName string  `json:"developmentName" validate:"omitempty,max=200"`
	SourceURL       string  `json:"sourceUrl" validate:"omitempty,url,max=2048"`
	FBC             string  `json:"fbc" validate:"omitempty,max=500"`
	FBP             string  `json:"fbp" validate:"omitempty,max=500"`
	ZipCode         string  `json:"zipCode" validate:"omitempty,max=10"`
	Value           float64 `json:"value" validate:"omitempty,min=0"`
	Currency        string  `json:"currency" validate:"omitempty,len=3"`
}

type SignalResponse struct {
	Sent bool `json:"sent"`
}

// RequestContext is the browser context captured by the handler.
type RequestContext struct {
	ClientIP  string
	UserAgent string
}

type ListLeadsRequest struct {
	Status    string `form:"status" validate:"omitempty,max=40"`
	AdvisorID string `form:"advisorId" validate:"omitempty,uuid"`
	Limit     int    `form:"limit" validate:"omitempty,min=1,max=200"`
}

// UpdateStatusRequest moves a lead. Reason and ChangedBy are consumed into
// the history entry and do not persist on the lead.
type UpdateStatusRequest struct {
	Status    string  `json:"status" validate:"required,max=40"`
	Reason    *string `json:"reason" validate:"omitempty,max=500"`
	ChangedBy *string `json:"changedBy" validate:"omitempty,max=120"`
}

// ScheduleAppointmentRequest books or rebooks the visit. A new tracking id
// reports a new conversion.
type ScheduleAppointmentRequest struct {
	TrackingEventID string    `json:"trackingEventId" validate:"required,max=100"`
	AppointmentAt   time.Time `json:"appointmentAt" validate:"required"`
	Reason          *string   `json:"reason" validate:"omitempty,max=500"`
	ChangedBy       *string   `json:"changedBy" validate:"omitempty,max=120"`
}

type HistoryEntryResponse struct {
	Status      domain.Status `json:"status"`
	StatusLabel string        `json:"statusLabel"`
	Timestamp   time.Time     `json:"timestamp"`
	Note        string        `json:"note"`
	ChangedBy   string        `json:"changedBy"`
	Action      string        `json:"action,omitempty"`
}

type LeadResponse struct {
	ID               uuid.UUID              `json:"id"`
	ClientName       string                 `json:"clientName"`
	ClientEmail      *string                `json:"clientEmail,omitempty"`
	ClientPhone      *string                `json:"clientPhone,omitempty"`
	DevelopmentID    string                 `json:"developmentId"`
	DevelopmentName  string                 `json:"developmentName"`
	Status           domain.Status          `json:"status"`
	StatusLabel      string                 `json:"statusLabel"`
	AdvisorID        *uuid.UUID             `json:"advisorId,omitempty"`
	AssignmentReason string                 `json:"assignmentReason,omitempty"`
	AssignedAt       *time.Time             `json:"assignedAt,omitempty"`
	AppointmentAt    *time.Time             `json:"appointmentAt,omitempty"`
	TrackingEventID  *string                `json:"trackingEventId,omitempty"`
	History          []HistoryEntryResponse `json:"history"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

type LeadListResponse struct {
	Items []LeadResponse `json:"items"`
	Total int            `json:"total"`
}
