// Package management handles lead intake and operator updates.
// Routing, history and conversions react to the writes made here through
// the change feed; this package never calls them directly.
package management

import (
	"context"
	"errors"
	"strings"

	"lead_routing_backend/internal/leads/domain"
	"lead_routing_backend/internal/leads/repository"
	"lead_routing_backend/internal/leads/transport"
	"lead_routing_backend/platform/apperr"
	"lead_routing_backend/platform/phone"
	"lead_routing_backend/platform/sanitize"

	"github.com/google/uuid"
)

const defaultListLimit = 50

// Repository defines the data access interface needed by the management service.
// This is a consumer-driven interface - only what management needs.
type Repository interface {
	repository.LeadReader
	repository.LeadWriter
}

// Service handles lead management operations.
type Service struct {
	repo        Repository
	phoneRegion string
}

// New creates a new lead management service.
func New(repo Repository, phoneRegion string) *Service {
	return &Service{repo: repo, phoneRegion: phoneRegion}
}

// Create stores a new lead in pending_assignment.
func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest, rc transport.RequestContext) (transport.LeadResponse, error) {
	name := sanitize.Text(req.Name)
	if name == "" {
		return transport.LeadResponse{}, apperr.Validation("client name is required")
	}

	email := sanitize.Email(req.Email)
	phoneNumber := phone.NormalizeE164(req.Phone, s.phoneRegion)
	if email == "" && phoneNumber == "" {
		return transport.LeadResponse{}, apperr.Validation("email or phone is required")
	}

	developmentID := domain.NormalizeDevelopmentID(req.DevelopmentID)
	if developmentID == "" {
		return transport.LeadResponse{}, apperr.Validation("development is required")
	}

	lead, err := s.repo.Create(ctx, repository.CreateParams{
		ClientName:      name,
		ClientEmail:     optional(email),
		ClientPhone:     optional(phoneNumber),
		DevelopmentID:   developmentID,
		DevelopmentName: sanitize.Text(req.DevelopmentName),
		Status:          domain.StatusPendingAssignment,
		ClientIP:        optional(rc.ClientIP),
		UserAgent:       optional(rc.UserAgent),
		SourceURL:       optional(req.SourceURL),
		FBC:             optional(req.FBC),
		FBP:             optional(req.FBP),
		ZipCode:         optional(req.ZipCode),
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}

	return ToLeadResponse(lead), nil
}

// GetByID retrieves a lead by ID.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, mapNotFound(err)
	}
	return ToLeadResponse(lead), nil
}

// List returns the newest leads, optionally filtered.
func (s *Service) List(ctx context.Context, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	params := repository.ListParams{Limit: req.Limit}
	if params.Limit <= 0 {
		params.Limit = defaultListLimit
	}
	if req.Status != "" {
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			return transport.LeadListResponse{}, err
		}
		params.Status = &status
	}
	if req.AdvisorID != "" {
		advisorID, err := uuid.Parse(req.AdvisorID)
		if err != nil {
			return transport.LeadListResponse{}, apperr.Validation("invalid advisor id")
		}
		params.AdvisorID = &advisorID
	}

	leads, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.LeadListResponse{}, err
	}

	items := toLeadResponses(leads)
	return transport.LeadListResponse{Items: items, Total: len(items)}, nil
}

// UpdateStatus moves a lead to a new status. Unknown status values are
// rejected here, before anything is written.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, req transport.UpdateStatusRequest) (transport.LeadResponse, error) {
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	lead, err := s.repo.UpdateStatus(ctx, repository.UpdateStatusParams{
		LeadID:    id,
		Status:    status,
		Reason:    sanitize.TextPtr(req.Reason),
		ChangedBy: sanitize.TextPtr(req.ChangedBy),
	})
	if err != nil {
		return transport.LeadResponse{}, mapNotFound(err)
	}
	return ToLeadResponse(lead), nil
}

// ScheduleAppointment books the visit and records the tracking id that the
// conversion reporter keys on.
func (s *Service) ScheduleAppointment(ctx context.Context, id uuid.UUID, req transport.ScheduleAppointmentRequest) (transport.LeadResponse, error) {
	trackingID := strings.TrimSpace(req.TrackingEventID)
	if trackingID == "" {
		return transport.LeadResponse{}, apperr.Validation("tracking event id is required")
	}
	if req.AppointmentAt.IsZero() {
		return transport.LeadResponse{}, apperr.Validation("appointment time is required")
	}

	lead, err := s.repo.ScheduleAppointment(ctx, repository.ScheduleParams{
		LeadID:          id,
		TrackingEventID: trackingID,
		AppointmentAt:   req.AppointmentAt.UTC(),
		Reason:          sanitize.TextPtr(req.Reason),
		ChangedBy:       sanitize.TextPtr(req.ChangedBy),
	})
	if err != nil {
		return transport.LeadResponse{}, mapNotFound(err)
	}
	return ToLeadResponse(lead), nil
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("lead not found")
	}
	return err
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
