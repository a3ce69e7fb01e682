package management

import (
	"lead_routing_backend/internal/leads/domain"
	"lead_routing_backend/internal/leads/transport"
)

// ToLeadResponse maps a lead document onto its API shape.
func ToLeadResponse(lead domain.Lead) transport.LeadResponse {
	history := make([]transport.HistoryEntryResponse, 0, len(lead.History))
	for _, h := range lead.History {
		history = append(history, transport.HistoryEntryResponse{
			Status:      h.Status,
			StatusLabel: h.Status.Label(),
			Timestamp:   h.Timestamp,
			Note:        h.Note,
			ChangedBy:   h.ChangedBy,
			Action:      h.Action,
		})
	}

	return transport.LeadResponse{
		ID:               lead.ID,
		ClientName:       lead.Client.Name,
		ClientEmail:      lead.Client.Email,
		ClientPhone:      lead.Client.Phone,
		DevelopmentID:    lead.DevelopmentID,
		DevelopmentName:  lead.DevelopmentName,
		Status:           lead.Status,
		StatusLabel:      lead.Status.Label(),
		AdvisorID:        lead.AdvisorID,
		AssignmentReason: lead.AssignmentReason,
		AssignedAt:       lead.AssignedAt,
		AppointmentAt:    lead.AppointmentAt,
		TrackingEventID:  lead.TrackingEventID,
		History:          history,
		CreatedAt:        lead.CreatedAt,
		UpdatedAt:        lead.UpdatedAt,
	}
}

func toLeadResponses(leads []domain.Lead) []transport.LeadResponse {
	out := make([]transport.LeadResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, ToLeadResponse(l))
	}
	return out
}
