package domain

import (
	"errors"
	"time"
)

const (
	NoteLeadCreated   = "lead created"
	NoteStatusUpdated = "status updated"
	NoteNoCoverage    = "no coverage: no active advisor sells this development"

	ActionAutoAssigned    = "auto_assigned"
	ActionAssignmentError = "assignment_error"
)

var ErrHistoryWithoutStatus = errors.New("history entry requires a status")

// HistoryEntry is one immutable line of the status audit log.
type HistoryEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note"`
	ChangedBy string    `json:"changedBy"`
	Action    string    `json:"action,omitempty"`
}

// NewHistoryEntry builds an entry, defaulting the author to SystemActor.
func NewHistoryEntry(status Status, note, changedBy, action string, at time.Time) (HistoryEntry, error) {
	if status == "" {
		return HistoryEntry{}, ErrHistoryWithoutStatus
	}
	if changedBy == "" {
		changedBy = SystemActor
	}
	return HistoryEntry{
		Status:    status,
		Timestamp: at.UTC(),
		Note:      note,
		ChangedBy: changedBy,
		Action:    action,
	}, nil
}

// InsertHistoryEntry returns history with entry placed after every entry
// that is not later than it. Entries with equal timestamps keep write order.
func InsertHistoryEntry(history []HistoryEntry, entry HistoryEntry) []HistoryEntry {
	i := len(history)
	for i > 0 && history[i-1].Timestamp.After(entry.Timestamp) {
		i--
	}
	out := make([]HistoryEntry, 0, len(history)+1)
	out = append(out, history[:i]...)
	out = append(out, entry)
	return append(out, history[i:]...)
}
