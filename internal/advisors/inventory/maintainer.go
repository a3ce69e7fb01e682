// Package inventory keeps each advisor's active inventory index in step with
// the inventory list operators edit.
package inventory

import (
	"context"

	"lead_routing_backend/internal/advisors/domain"
	"lead_routing_backend/internal/advisors/repository"
	"lead_routing_backend/internal/events"
	"lead_routing_backend/internal/metrics"
	"lead_routing_backend/platform/logger"
)

const component = "inventory_index"

type Maintainer struct {
	store   repository.IndexWriter
	metrics *metrics.Metrics
	log     *logger.Logger
}

func New(store repository.IndexWriter, m *metrics.Metrics, log *logger.Logger) *Maintainer {
	return &Maintainer{store: store, metrics: m, log: log.WithComponent(component)}
}

// Handle recomputes the index for a written user document. The index write
// happens only when the derived index differs from the stored one, so the
// follow-up event for that write is a no-op.
func (m *Maintainer) Handle(ctx context.Context, event events.Event) error {
	written, ok := event.(events.AdvisorWritten)
	if !ok {
		return nil
	}

	index := domain.ActiveIndex(written.After.Inventory)
	if domain.SameIndex(index, written.After.ActiveInventoryIndex) {
		return nil
	}

	changed, err := m.store.SetActiveIndex(ctx, written.AdvisorID, index)
	if err != nil {
		m.metrics.RecordHandlerError(component)
		m.log.WithContext(ctx).HandlerError(component, err, "advisor_id", written.AdvisorID)
		return nil
	}
	if changed {
		m.metrics.RecordIndexWrite()
		m.log.WithContext(ctx).Info("active inventory index updated",
			"advisor_id", written.AdvisorID,
			"developments", len(index),
		)
	}
	return nil
}
