package adapters

import (
	"context"
	"fmt"

	advisorrepo "lead_routing_backend/internal/advisors/repository"
	"lead_routing_backend/internal/leads/ports"
)

// CandidateFinderAdapter implements ports.CandidateFinder using the advisors repository.
//
// Rows are re-checked against role and index in memory so a row read mid
// update never yields an ineligible candidate.
type CandidateFinderAdapter struct {
	repo advisorrepo.CandidateFinder
}

func NewCandidateFinderAdapter(repo advisorrepo.CandidateFinder) *CandidateFinderAdapter {
	return &CandidateFinderAdapter{repo: repo}
}

func (a *CandidateFinderAdapter) ListCandidates(ctx context.Context, developmentID string) ([]ports.Candidate, error) {
	if a == nil || a.repo == nil {
		return nil, fmt.Errorf("candidate finder not configured")
	}

	advisors, err := a.repo.ListCandidates(ctx, developmentID)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	out := make([]ports.Candidate, 0, len(advisors))
	for _, adv := range advisors {
		if !adv.IsAdvisor() || !adv.Covers(developmentID) {
			continue
		}
		out = append(out, ports.Candidate{
			ID:               adv.ID,
			DisplayName:      adv.DisplayName,
			ScoreGlobal:      adv.ScoreGlobal,
			CloseRatePercent: adv.Metrics.CloseRatePercent,
		})
	}
	return out, nil
}
