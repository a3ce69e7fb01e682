// Package domain holds the advisor document, its inventory index and the
// performance score rules.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role decides whether a user takes part in lead routing.
type Role string

const (
	RoleAdvisor Role = "advisor"
	RoleAdmin   Role = "admin"
	RoleClient  Role = "client"
)

// ParseRole accepts the known roles case-insensitively.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case RoleAdvisor, RoleAdmin, RoleClient:
		return role, true
	}
	return "", false
}

// InventoryItem is one development an advisor declares, active or not.
type InventoryItem struct {
	DevelopmentID string `json:"developmentId"`
	Active        bool   `json:"active"`
}

// UnmarshalJSON tolerates numeric ids and "true"/"false" strings written by
// older clients.
func (i *InventoryItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		DevelopmentID json.RawMessage `json:"developmentId"`
		Active        json.RawMessage `json:"active"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := looseString(raw.DevelopmentID)
	if err != nil {
		return fmt.Errorf("inventory developmentId: %w", err)
	}
	i.DevelopmentID = id
	i.Active = looseBool(raw.Active)
	return nil
}

func looseString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func looseBool(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("true")) {
		return true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		b, _ := strconv.ParseBool(strings.TrimSpace(s))
		return b
	}
	return false
}

// Advisor is a user document as seen by routing and scoring.
type Advisor struct {
	ID                   uuid.UUID       `json:"id"`
	DisplayName          string          `json:"displayName"`
	Email                string          `json:"email"`
	Role                 Role            `json:"role"`
	Inventory            []InventoryItem `json:"inventory"`
	ActiveInventoryIndex []string        `json:"activeInventoryIndex"`
	InventoryUpdatedAt   *time.Time      `json:"inventoryUpdatedAt,omitempty"`
	Metrics              Metrics         `json:"metrics"`
	ScoreGlobal          float64         `json:"scoreGlobal"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// IsAdvisor reports whether the user is eligible for routing.
func (a Advisor) IsAdvisor() bool {
	return a.Role == RoleAdvisor
}

// Covers reports whether the stored index lists the development.
func (a Advisor) Covers(developmentID string) bool {
	_, found := slices.BinarySearch(a.ActiveInventoryIndex, strings.TrimSpace(developmentID))
	return found
}

// ActiveIndex derives the sorted, deduplicated set of active development ids.
func ActiveIndex(inventory []InventoryItem) []string {
	ids := make([]string, 0, len(inventory))
	for _, item := range inventory {
		if !item.Active {
			continue
		}
		id := strings.TrimSpace(item.DevelopmentID)
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// SameIndex compares two sorted indexes by value. nil and empty are equal.
func SameIndex(a, b []string) bool {
	return slices.Equal(a, b)
}
