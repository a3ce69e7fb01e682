// Package domain holds the lead document and its invariants.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SystemActor is recorded as the author of changes nobody claimed.
const SystemActor = "SYSTEM"

// Client carries the contact fields captured at intake.
type Client struct {
	Name  string  `json:"name"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// Attribution holds the browser context needed for conversion tracking.
type Attribution struct {
	ClientIP  *string `json:"clientIp,omitempty"`
	UserAgent *string `json:"userAgent,omitempty"`
	SourceURL *string `json:"sourceUrl,omitempty"`
	FBC       *string `json:"fbc,omitempty"`
	FBP       *string `json:"fbp,omitempty"`
	ZipCode   *string `json:"zipCode,omitempty"`
}

// Lead is a client inquiry for one development, routed to one advisor.
type Lead struct {
	ID               uuid.UUID      `json:"id"`
	Client           Client         `json:"client"`
	DevelopmentID    string         `json:"developmentId"`
	DevelopmentName  string         `json:"developmentName"`
	Status           Status         `json:"status"`
	AdvisorID        *uuid.UUID     `json:"advisorId,omitempty"`
	AssignmentReason string         `json:"assignmentReason,omitempty"`
	AssignedAt       *time.Time     `json:"assignedAt,omitempty"`
	History          []HistoryEntry `json:"history"`
	TrackingEventID  *string        `json:"trackingEventId,omitempty"`
	AppointmentAt    *time.Time     `json:"appointmentAt,omitempty"`
	Attribution      Attribution    `json:"attribution"`

	// Write-once annotations, cleared by the history tracker.
	StatusChangeReason *string `json:"statusChangeReason,omitempty"`
	ChangedBy          *string `json:"changedBy,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsAssigned reports whether an advisor owns the lead.
func (l Lead) IsAssigned() bool {
	return l.AdvisorID != nil && *l.AdvisorID != uuid.Nil
}

// HasTransientFields reports whether a write left annotations to consume.
func (l Lead) HasTransientFields() bool {
	return l.StatusChangeReason != nil || l.ChangedBy != nil
}

// ClientEmail returns the normalized client email or "".
func (l Lead) ClientEmail() string {
	if l.Client.Email == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*l.Client.Email))
}

// TrackingID returns the tracking event id or "" when absent.
func (l Lead) TrackingID() string {
	if l.TrackingEventID == nil {
		return ""
	}
	return strings.TrimSpace(*l.TrackingEventID)
}

// LastHistoryEntry returns the newest history entry.
func (l Lead) LastHistoryEntry() (HistoryEntry, bool) {
	if len(l.History) == 0 {
		return HistoryEntry{}, false
	}
	return l.History[len(l.History)-1], true
}

// NormalizeDevelopmentID is the canonical string form of a development id,
// shared by inventory indexing and candidate lookup.
func NormalizeDevelopmentID(id string) string {
	return strings.TrimSpace(id)
}

// SplitName splits a full name into first name and the remaining words.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
