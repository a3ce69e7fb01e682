package domain

import (
	"strings"

	"lead_routing_backend/platform/apperr"
)

// Status is the lifecycle state of a lead.
type Status string

const (
	StatusNew               Status = "new"
	StatusContacted         Status = "contacted"
	StatusVisitScheduled    Status = "visit_scheduled"
	StatusVisitConfirmed    Status = "visit_confirmed"
	StatusVisited           Status = "visited"
	StatusReserved          Status = "reserved"
	StatusWon               Status = "won"
	StatusLost              Status = "lost"
	StatusClosed            Status = "closed"
	StatusPendingAdmin      Status = "pending_admin"
	StatusPendingAssignment Status = "pending_assignment"
)

var statusLabels = map[Status]string{
	StatusNew:               "Nuevo Lead",
	StatusContacted:         "Contactado",
	StatusVisitScheduled:    "Cita Agendada",
	StatusVisitConfirmed:    "Cita Confirmada",
	StatusVisited:           "Visita Realizada",
	StatusReserved:          "Apartado",
	StatusWon:               "Vendido",
	StatusLost:              "Perdido",
	StatusClosed:            "Escriturado",
	StatusPendingAdmin:      "Pendiente Revisión",
	StatusPendingAssignment: "Procesando Asignación",
}

// AllStatuses returns the closed value set in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusNew,
		StatusContacted,
		StatusVisitScheduled,
		StatusVisitConfirmed,
		StatusVisited,
		StatusReserved,
		StatusWon,
		StatusLost,
		StatusClosed,
		StatusPendingAdmin,
		StatusPendingAssignment,
	}
}

// ParseStatus normalizes raw input ("WON", " Visit-Scheduled ") into a Status.
// Unknown values are rejected with a validation error.
func ParseStatus(raw string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	status := Status(normalized)
	if !status.Valid() {
		return "", apperr.Validation("unknown lead status").WithDetails(map[string]string{"status": raw})
	}
	return status, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label is the human readable name used in operator alerts.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

func (s Status) String() string { return string(s) }
