// Package management handles operator writes to advisor documents. The
// derived fields (active index, counters, score) are maintained by the
// change-feed handlers, never here.
package management

import (
	"context"
	"errors"
	"strings"

	"lead_routing_backend/internal/advisors/domain"
	"lead_routing_backend/internal/advisors/repository"
	"lead_routing_backend/internal/advisors/transport"
	"lead_routing_backend/platform/apperr"
	"lead_routing_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Repository is the consumer-driven slice of the advisor store.
type Repository interface {
	repository.AdvisorReader
	repository.AdvisorWriter
}

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, req transport.CreateAdvisorRequest) (transport.AdvisorResponse, error) {
	role := domain.RoleAdvisor
	if req.Role != "" {
		parsed, ok := domain.ParseRole(req.Role)
		if !ok {
			return transport.AdvisorResponse{}, apperr.Validation("unknown role")
		}
		role = parsed
	}

	name := sanitize.Text(req.DisplayName)
	if name == "" {
		return transport.AdvisorResponse{}, apperr.Validation("display name is required")
	}

	advisor, err := s.repo.Create(ctx, repository.CreateParams{
		DisplayName: name,
		Email:       sanitize.Email(req.Email),
		Role:        role,
		Inventory:   toInventory(req.Inventory),
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return transport.AdvisorResponse{}, apperr.Conflict("email already registered")
		}
		return transport.AdvisorResponse{}, err
	}
	return ToAdvisorResponse(advisor), nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.AdvisorResponse, error) {
	advisor, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.AdvisorResponse{}, mapNotFound(err)
	}
	return ToAdvisorResponse(advisor), nil
}

func (s *Service) List(ctx context.Context) (transport.AdvisorListResponse, error) {
	advisors, err := s.repo.ListAdvisors(ctx)
	if err != nil {
		return transport.AdvisorListResponse{}, err
	}
	items := make([]transport.AdvisorResponse, 0, len(advisors))
	for _, a := range advisors {
		items = append(items, ToAdvisorResponse(a))
	}
	return transport.AdvisorListResponse{Items: items, Total: len(items)}, nil
}

// UpdateInventory replaces the declared inventory. The active index follows
// asynchronously.
func (s *Service) UpdateInventory(ctx context.Context, id uuid.UUID, req transport.UpdateInventoryRequest) (transport.AdvisorResponse, error) {
	advisor, err := s.repo.UpdateInventory(ctx, id, toInventory(req.Inventory))
	if err != nil {
		return transport.AdvisorResponse{}, mapNotFound(err)
	}
	return ToAdvisorResponse(advisor), nil
}

func (s *Service) UpdateScoreComponents(ctx context.Context, id uuid.UUID, req transport.UpdateScoreComponentsRequest) (transport.AdvisorResponse, error) {
	advisor, err := s.repo.UpdateScoreComponents(ctx, id, domain.Components{
		SurveyPoints:    req.SurveyPoints,
		InventoryPoints: req.InventoryPoints,
		AdminPoints:     req.AdminPoints,
	})
	if err != nil {
		return transport.AdvisorResponse{}, mapNotFound(err)
	}
	return ToAdvisorResponse(advisor), nil
}

// Promote makes a user eligible for routing.
func (s *Service) Promote(ctx context.Context, id uuid.UUID) (transport.AdvisorResponse, error) {
	advisor, err := s.repo.Promote(ctx, id)
	if err != nil {
		return transport.AdvisorResponse{}, mapNotFound(err)
	}
	return ToAdvisorResponse(advisor), nil
}

func toInventory(items []transport.InventoryItemRequest) []domain.InventoryItem {
	out := make([]domain.InventoryItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.InventoryItem{
			DevelopmentID: strings.TrimSpace(item.DevelopmentID),
			Active:        item.Active,
		})
	}
	return out
}

// ToAdvisorResponse maps an advisor document onto its API shape.
func ToAdvisorResponse(a domain.Advisor) transport.AdvisorResponse {
	inventory := make([]transport.InventoryItemRequest, 0, len(a.Inventory))
	for _, item := range a.Inventory {
		inventory = append(inventory, transport.InventoryItemRequest{DevelopmentID: item.DevelopmentID, Active: item.Active})
	}
	index := a.ActiveInventoryIndex
	if index == nil {
		index = []string{}
	}

	var counters *transport.CountersResponse
	if a.Metrics.Counters != nil {
		counters = &transport.CountersResponse{Won: a.Metrics.Counters.Won, Lost: a.Metrics.Counters.Lost}
	}

	return transport.AdvisorResponse{
		ID:                   a.ID,
		DisplayName:          a.DisplayName,
		Email:                a.Email,
		Role:                 string(a.Role),
		Inventory:            inventory,
		ActiveInventoryIndex: index,
		InventoryUpdatedAt:   a.InventoryUpdatedAt,
		Metrics: transport.MetricsResponse{
			Counters:         counters,
			CloseRatePercent: a.Metrics.CloseRatePercent,
			ClosingPoints:    a.Metrics.ClosingPoints,
			SurveyPoints:     a.Metrics.SurveyPoints,
			InventoryPoints:  a.Metrics.InventoryPoints,
			AdminPoints:      a.Metrics.AdminPoints,
			FreshnessPoints:  a.Metrics.FreshnessPoints,
			ScoreUpdatedAt:   a.Metrics.ScoreUpdatedAt,
		},
		ScoreGlobal: a.ScoreGlobal,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("advisor not found")
	}
	return err
}
