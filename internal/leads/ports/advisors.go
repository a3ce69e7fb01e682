// Package ports defines consumer-driven interfaces for external dependencies.
// These interfaces are defined in the Leads domain based on what it needs,
// rather than what other domains choose to offer.
package ports

import (
	"context"

	"github.com/google/uuid"
)

// Candidate is the slice of an advisor that routing ranks on.
type Candidate struct {
	ID               uuid.UUID
	DisplayName      string
	ScoreGlobal      float64
	CloseRatePercent float64
}

// CandidateFinder returns routing-eligible advisors whose active inventory
// index lists the development. The advisors domain implements it.
type CandidateFinder interface {
	ListCandidates(ctx context.Context, developmentID string) ([]Candidate, error)
}
