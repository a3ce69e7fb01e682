package changefeed

import (
	"bytes"
	"encoding/json"
	"fmt"

	advisordomain "lead_routing_backend/internal/advisors/domain"
	"lead_routing_backend/internal/events"
	leaddomain "lead_routing_backend/internal/leads/domain"
)

// Decode converts a stored change into the event published for it.
// It returns a nil event for deletions, which have no subscribers.
func Decode(ch Change) (events.Event, error) {
	if isNull(ch.After) {
		return nil, nil
	}

	switch ch.Collection {
	case CollectionLeads:
		var after leaddomain.Lead
		if err := json.Unmarshal(ch.After, &after); err != nil {
			return nil, fmt.Errorf("decode lead after snapshot: %w", err)
		}
		var before *leaddomain.Lead
		if !isNull(ch.Before) {
			before = &leaddomain.Lead{}
			if err := json.Unmarshal(ch.Before, before); err != nil {
				return nil, fmt.Errorf("decode lead before snapshot: %w", err)
			}
		}
		return events.LeadWritten{
			BaseEvent: events.BaseEvent{Timestamp: ch.CreatedAt},
			ChangeID:  ch.ID,
			LeadID:    ch.DocumentID,
			Before:    before,
			After:     after,
		}, nil

	case CollectionUsers:
		var after advisordomain.Advisor
		if err := json.Unmarshal(ch.After, &after); err != nil {
			return nil, fmt.Errorf("decode advisor after snapshot: %w", err)
		}
		var before *advisordomain.Advisor
		if !isNull(ch.Before) {
			before = &advisordomain.Advisor{}
			if err := json.Unmarshal(ch.Before, before); err != nil {
				return nil, fmt.Errorf("decode advisor before snapshot: %w", err)
			}
		}
		return events.AdvisorWritten{
			BaseEvent: events.BaseEvent{Timestamp: ch.CreatedAt},
			ChangeID:  ch.ID,
			AdvisorID: ch.DocumentID,
			Before:    before,
			After:     after,
		}, nil
	}

	return nil, fmt.Errorf("unknown collection %q", ch.Collection)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
