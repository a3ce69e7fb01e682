// Package scoring keeps advisor won/lost counters and the composite score
// consistent with lead status transitions.
package scoring

import (
	"context"
	"fmt"
	"time"

	"lead_routing_backend/internal/advisors/domain"
	"lead_routing_backend/internal/advisors/repository"
	"lead_routing_backend/internal/events"
	leaddomain "lead_routing_backend/internal/leads/domain"
	"lead_routing_backend/internal/metrics"
	"lead_routing_backend/platform/logger"

	"github.com/google/uuid"
)

const component = "score_maintainer"

// Store is the slice of the advisor repository scoring needs.
type Store interface {
	repository.AdvisorReader
	repository.MetricsWriter
}

// Maintainer applies counter deltas, backfills legacy counters and
// recomputes scores.
type Maintainer struct {
	store       Store
	closeWeight float64
	metrics     *metrics.Metrics
	log         *logger.Logger
}

func New(store Store, closeWeight float64, m *metrics.Metrics, log *logger.Logger) *Maintainer {
	if closeWeight <= 0 {
		closeWeight = domain.DefaultCloseWeight
	}
	return &Maintainer{
		store:       store,
		closeWeight: closeWeight,
		metrics:     m,
		log:         log.WithComponent(component),
	}
}

// StatusDeltas maps a transition onto won/lost deltas. Entering a counted
// status adds one, leaving it subtracts one.
func StatusDeltas(before, after leaddomain.Status) (wonDelta, lostDelta int) {
	if before == after {
		return 0, 0
	}
	if after == leaddomain.StatusWon {
		wonDelta++
	}
	if before == leaddomain.StatusWon {
		wonDelta--
	}
	if after == leaddomain.StatusLost {
		lostDelta++
	}
	if before == leaddomain.StatusLost {
		lostDelta--
	}
	return wonDelta, lostDelta
}

// Transition is one status change that may move an advisor's counters.
type Transition struct {
	AdvisorID uuid.UUID
	ChangeID  uuid.UUID
	ChangedAt time.Time
	WonDelta  int
	LostDelta int
}

// HandleLeadWritten reacts to lead status transitions of assigned leads.
func (m *Maintainer) HandleLeadWritten(ctx context.Context, event events.Event) error {
	written, ok := event.(events.LeadWritten)
	if !ok || written.IsCreate() || !written.StatusChanged() || !written.After.IsAssigned() {
		return nil
	}

	won, lost := StatusDeltas(written.Before.Status, written.After.Status)
	if won == 0 && lost == 0 {
		return nil
	}

	err := m.ApplyTransition(ctx, Transition{
		AdvisorID: *written.After.AdvisorID,
		ChangeID:  written.ChangeID,
		ChangedAt: written.OccurredAt(),
		WonDelta:  won,
		LostDelta: lost,
	})
	if err != nil {
		m.metrics.RecordHandlerError(component)
		m.log.WithContext(ctx).HandlerError(component, err,
			"lead_id", written.LeadID,
			"advisor_id", *written.After.AdvisorID,
		)
	}
	return nil
}

// HandleAdvisorWritten recomputes the score when an advisor's inputs moved,
// e.g. an operator edited the externally supplied components.
func (m *Maintainer) HandleAdvisorWritten(ctx context.Context, event events.Event) error {
	written, ok := event.(events.AdvisorWritten)
	if !ok || !written.After.IsAdvisor() {
		return nil
	}
	if written.Before != nil && !scoreInputsChanged(*written.Before, written.After) {
		return nil
	}

	if _, err := m.Recalculate(ctx, written.AdvisorID, "advisor_write"); err != nil {
		m.metrics.RecordHandlerError(component)
		m.log.WithContext(ctx).HandlerError(component, err, "advisor_id", written.AdvisorID)
	}
	return nil
}

// ApplyTransition runs the three steps for one transition: atomic increment,
// one-time backfill for legacy counters, score recomputation.
func (m *Maintainer) ApplyTransition(ctx context.Context, t Transition) error {
	applied, err := m.store.ApplyCounterDelta(ctx, repository.CounterDeltaParams{
		AdvisorID: t.AdvisorID,
		ChangeID:  t.ChangeID,
		ChangedAt: t.ChangedAt,
		WonDelta:  t.WonDelta,
		LostDelta: t.LostDelta,
	})
	if err != nil {
		return fmt.Errorf("apply counter delta: %w", err)
	}
	if applied {
		m.metrics.RecordCounterDelta("won", t.WonDelta)
		m.metrics.RecordCounterDelta("lost", t.LostDelta)
	} else {
		if _, err := m.Backfill(ctx, t.AdvisorID); err != nil {
			return err
		}
	}

	if _, err := m.Recalculate(ctx, t.AdvisorID, "status_transition"); err != nil {
		return err
	}
	return nil
}

// Backfill rebuilds counters from the advisor's leads if they were never
// initialized. It is a no-op for advisors with counters.
func (m *Maintainer) Backfill(ctx context.Context, advisorID uuid.UUID) (repository.BackfillResult, error) {
	result, err := m.store.Backfill(ctx, advisorID)
	if err != nil {
		return repository.BackfillResult{}, fmt.Errorf("backfill counters: %w", err)
	}
	if result.Backfilled {
		m.metrics.RecordBackfill()
		m.log.WithContext(ctx).Info("advisor counters backfilled",
			"advisor_id", advisorID,
			"won", result.Counters.Won,
			"lost", result.Counters.Lost,
		)
	}
	return result, nil
}

// Recalculate recomputes close rate and score; the store writes only when
// they differ from what is stored.
func (m *Maintainer) Recalculate(ctx context.Context, advisorID uuid.UUID, trigger string) (domain.Advisor, error) {
	advisor, written, err := m.store.RecomputeScore(ctx, advisorID, m.Score)
	if err != nil {
		return domain.Advisor{}, fmt.Errorf("recompute score: %w", err)
	}
	if written {
		m.metrics.RecordScoreWrite(trigger)
		m.log.WithContext(ctx).Info("advisor score updated",
			"advisor_id", advisorID,
			"score", advisor.ScoreGlobal,
			"close_rate", advisor.Metrics.CloseRatePercent,
			"trigger", trigger,
		)
	}
	return advisor, nil
}

// Score is the pure score function applied to stored metrics.
func (m *Maintainer) Score(metrics domain.Metrics) domain.ScoreBreakdown {
	var counters domain.Counters
	if metrics.Counters != nil {
		counters = *metrics.Counters
	}
	return domain.ComputeScore(counters.CloseRatePercent(), metrics.ScoreInputs(), m.closeWeight)
}

func scoreInputsChanged(before, after domain.Advisor) bool {
	if before.Role != after.Role {
		return true
	}
	if !sameCounters(before.Metrics.Counters, after.Metrics.Counters) {
		return true
	}
	b, a := before.Metrics.ScoreInputs(), after.Metrics.ScoreInputs()
	return !sameFloat(b.SurveyPoints, a.SurveyPoints) ||
		!sameFloat(b.InventoryPoints, a.InventoryPoints) ||
		!sameFloat(b.AdminPoints, a.AdminPoints)
}

func sameCounters(a, b *domain.Counters) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
