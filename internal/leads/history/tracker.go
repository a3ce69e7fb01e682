// Package history keeps the append-only status log of every lead and
// consumes the transient annotations a write leaves behind.
package history

import (
	"context"
	"strings"
	"time"

	"lead_routing_backend/internal/events"
	"lead_routing_backend/internal/leads/domain"
	"lead_routing_backend/internal/leads/repository"
	"lead_routing_backend/internal/metrics"
	"lead_routing_backend/platform/logger"
)

const component = "status_history"

// Tracker appends history entries on status transitions.
type Tracker struct {
	store   repository.HistoryWriter
	now     func() time.Time
	metrics *metrics.Metrics
	log     *logger.Logger
}

func New(store repository.HistoryWriter, m *metrics.Metrics, log *logger.Logger) *Tracker {
	return &Tracker{
		store:   store,
		now:     time.Now,
		metrics: m,
		log:     log.WithComponent(component),
	}
}

// Handle reconciles one lead write. Failures are logged, never returned.
func (t *Tracker) Handle(ctx context.Context, event events.Event) error {
	written, ok := event.(events.LeadWritten)
	if !ok {
		return nil
	}

	params, needed, err := t.Plan(written)
	if err != nil {
		t.metrics.RecordHandlerError(component)
		t.log.WithContext(ctx).HandlerError(component, err, "lead_id", written.LeadID)
		return nil
	}
	if !needed {
		return nil
	}

	applied, err := t.store.ReconcileHistory(ctx, params)
	if err != nil {
		t.metrics.RecordHandlerError(component)
		t.log.WithContext(ctx).HandlerError(component, err, "lead_id", written.LeadID)
		return nil
	}
	if !applied {
		return nil
	}

	if params.Entry != nil {
		t.metrics.RecordHistoryAppend()
		t.log.WithContext(ctx).Info("status history appended",
			"lead_id", written.LeadID,
			"status", params.Entry.Status,
			"changed_by", params.Entry.ChangedBy,
		)
	}
	if params.ClearTransient {
		t.metrics.RecordTransientCleanup()
	}
	return nil
}

// Plan decides what a write requires: a history entry when the status moved
// and the write did not already record it, and a cleanup when transient
// fields are present. needed is false when nothing must be written.
func (t *Tracker) Plan(written events.LeadWritten) (repository.ReconcileParams, bool, error) {
	after := written.After
	params := repository.ReconcileParams{
		LeadID:         written.LeadID,
		ChangeID:       written.ChangeID,
		ClearTransient: after.HasTransientFields(),
	}

	if written.StatusChanged() && !alreadyRecorded(written) {
		note := domain.NoteStatusUpdated
		if written.IsCreate() {
			note = domain.NoteLeadCreated
		}
		if reason := trimmed(after.StatusChangeReason); reason != "" {
			note = reason
		}

		entry, err := domain.NewHistoryEntry(after.Status, note, trimmed(after.ChangedBy), "", t.changedAt(written))
		if err != nil {
			return repository.ReconcileParams{}, false, err
		}
		params.Entry = &entry
	}

	return params, params.Entry != nil || params.ClearTransient, nil
}

// changedAt stamps entries with the time of the change, not of its delivery.
func (t *Tracker) changedAt(written events.LeadWritten) time.Time {
	if at := written.OccurredAt(); !at.IsZero() {
		return at
	}
	return t.now()
}

// alreadyRecorded reports whether the write appended an entry for the new
// status itself, as the atomic assignment write does.
func alreadyRecorded(written events.LeadWritten) bool {
	last, ok := written.After.LastHistoryEntry()
	if !ok || last.Status != written.After.Status {
		return false
	}
	if written.Before == nil {
		return true
	}
	return len(written.After.History) > len(written.Before.History)
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}
