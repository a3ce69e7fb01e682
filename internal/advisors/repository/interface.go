package repository

import (
	"context"
	"time"

	"lead_routing_backend/internal/advisors/domain"

	"github.com/google/uuid"
)

// AdvisorReader provides read-only access to user documents.
type AdvisorReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Advisor, error)
	ListAdvisors(ctx context.Context) ([]domain.Advisor, error)
}

// CandidateFinder finds advisors whose active index covers a development.
type CandidateFinder interface {
	ListCandidates(ctx context.Context, developmentID string) ([]domain.Advisor, error)
}

// AdvisorWriter provides operator-facing write operations.
type AdvisorWriter interface {
	Create(ctx context.Context, params CreateParams) (domain.Advisor, error)
	UpdateInventory(ctx context.Context, id uuid.UUID, inventory []domain.InventoryItem) (domain.Advisor, error)
	UpdateScoreComponents(ctx context.Context, id uuid.UUID, components domain.Components) (domain.Advisor, error)
	Promote(ctx context.Context, id uuid.UUID) (domain.Advisor, error)
}

// IndexWriter stores a recomputed active inventory index.
type IndexWriter interface {
	SetActiveIndex(ctx context.Context, id uuid.UUID, index []string) (bool, error)
}

// MetricsWriter maintains counters and the derived score.
type MetricsWriter interface {
	ApplyCounterDelta(ctx context.Context, params CounterDeltaParams) (bool, error)
	Backfill(ctx context.Context, id uuid.UUID) (BackfillResult, error)
	RecomputeScore(ctx context.Context, id uuid.UUID, compute ScoreFunc) (domain.Advisor, bool, error)
	SetFreshnessPoints(ctx context.Context, id uuid.UUID, points float64) (bool, error)
}

// AdvisorRepository combines all advisor repository interfaces.
type AdvisorRepository interface {
	AdvisorReader
	CandidateFinder
	AdvisorWriter
	IndexWriter
	MetricsWriter
}

// ScoreFunc derives the score from the locked metrics row.
type ScoreFunc func(metrics domain.Metrics) domain.ScoreBreakdown

type CreateParams struct {
	DisplayName string
	Email       string
	Role        domain.Role
	Inventory   []domain.InventoryItem
}

type CounterDeltaParams struct {
	AdvisorID uuid.UUID
	ChangeID  uuid.UUID
	ChangedAt time.Time
	WonDelta  int
	LostDelta int
}

type BackfillResult struct {
	Counters   domain.Counters
	Backfilled bool
}
