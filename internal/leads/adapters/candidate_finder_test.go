package adapters

import (
	"context"
	"testing"

	"lead_routing_backend/internal/advisors/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdvisorRepo struct {
	advisors []domain.Advisor
}

func (s stubAdvisorRepo) ListCandidates(context.Context, string) ([]domain.Advisor, error) {
	return s.advisors, nil
}

func TestCandidateFinderDropsIneligibleRows(t *testing.T) {
	eligible := domain.Advisor{ID: uuid.New(), Role: domain.RoleAdvisor, ActiveInventoryIndex: []string{"D1"}, ScoreGlobal: 80}
	admin := domain.Advisor{ID: uuid.New(), Role: domain.RoleAdmin, ActiveInventoryIndex: []string{"D1"}}
	stale := domain.Advisor{ID: uuid.New(), Role: domain.RoleAdvisor, ActiveInventoryIndex: []string{"D2"}}

	finder := NewCandidateFinderAdapter(stubAdvisorRepo{advisors: []domain.Advisor{eligible, admin, stale}})
	got, err := finder.ListCandidates(context.Background(), "D1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, eligible.ID, got[0].ID)
	assert.Equal(t, 80.0, got[0].ScoreGlobal)
}
