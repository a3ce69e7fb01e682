package transport

import (
	"time"

	"github.com/google/uuid"
)

type InventoryItemRequest struct {
	DevelopmentID string `json:"developmentId" validate:"required,max=100"`
	Active        bool   `json:"active"`
}

type CreateAdvisorRequest struct {
	DisplayName string                 `json:"displayName" validate:"required,min=2,max=120"`
	Email       string                 `json:"email" validate:"required,email,max=254"`
	Role        string                 `json:"role" validate:"omitempty,oneof=advisor admin client"`
	Inventory   []InventoryItemRequest `json:"inventory" validate:"omitempty,max=500,dive"`
}

type UpdateInventoryRequest struct {
	Inventory []InventoryItemRequest `json:"inventory" validate:"max=500,dive"`
}

// UpdateScoreComponentsRequest sets the externally maintained inputs. A nil
// field falls back to its default in the score.
type UpdateScoreComponentsRequest struct {
	SurveyPoints    *float64 `json:"surveyPoints" validate:"omitempty,min=0,max=100"`
	InventoryPoints *float64 `json:"inventoryPoints" validate:"omitempty,min=0,max=100"`
	AdminPoints     *float64 `json:"adminPoints" validate:"omitempty,min=0,max=100"`
}

type CountersResponse struct {
	Won  int `json:"won"`
	Lost int `json:"lost"`
}

type MetricsResponse struct {
	Counters         *CountersResponse `json:"counters,omitempty"`
	CloseRatePercent float64           `json:"closeRatePercent"`
	ClosingPoints    float64           `json:"closingPoints"`
	SurveyPoints     *float64          `json:"surveyPoints,omitempty"`
	InventoryPoints  *float64          `json:"inventoryPoints,omitempty"`
	AdminPoints      *float64          `json:"adminPoints,omitempty"`
	FreshnessPoints  *float64          `json:"freshnessPoints,omitempty"`
	ScoreUpdatedAt   *time.Time        `json:"scoreUpdatedAt,omitempty"`
}

type AdvisorResponse struct {
	ID                   uuid.UUID              `json:"id"`
	DisplayName          string                 `json:"displayName"`
	Email                string                 `json:"email"`
	Role                 string                 `json:"role"`
	Inventory            []InventoryItemRequest `json:"inventory"`
	ActiveInventoryIndex []string               `json:"activeInventoryIds"`
	InventoryUpdatedAt   *time.Time             `json:"inventoryUpdatedAt,omitempty"`
	Metrics              MetricsResponse        `json:"metrics"`
	ScoreGlobal          float64                `json:"scoreGlobal"`
	CreatedAt            time.Time              `json:"createdAt"`
	UpdatedAt            time.Time              `json:"updatedAt"`
}

type AdvisorListResponse struct {
	Items []AdvisorResponse `json:"items"`
	Total int               `json:"total"`
}
