package domain

import (
	"math"
	"time"
)

const (
	DefaultSurveyPoints    = 30.0
	DefaultInventoryPoints = 20.0
	DefaultAdminPoints     = 20.0
	DefaultCloseWeight     = 3.0
	FreshInventoryPoints   = 20.0

	closeRateCap = 10.0
	maxScore     = 100.0
)

// Counters are the authoritative won/lost tallies of an advisor.
type Counters struct {
	Won  int `json:"won"`
	Lost int `json:"lost"`
}

// Apply returns the counters shifted by the given deltas.
func (c Counters) Apply(wonDelta, lostDelta int) Counters {
	return Counters{Won: c.Won + wonDelta, Lost: c.Lost + lostDelta}
}

// CountClosed tallies won and lost among raw lead status values.
func CountClosed(statuses []string) Counters {
	var c Counters
	for _, s := range statuses {
		switch s {
		case "won":
			c.Won++
		case "lost":
			c.Lost++
		}
	}
	return c
}

// CloseRatePercent is won / (won + lost) × 100, one decimal, 0 without closed leads.
func (c Counters) CloseRatePercent() float64 {
	total := c.Won + c.Lost
	if total <= 0 {
		return 0
	}
	return round1(float64(c.Won) / float64(total) * 100)
}

// Metrics is the versioned performance record. Counters is nil for advisors
// created before incremental tracking; those need a backfill before use.
type Metrics struct {
	Counters         *Counters  `json:"counters,omitempty"`
	CloseRatePercent float64    `json:"closeRatePercent"`
	ClosingPoints    float64    `json:"closingPoints"`
	SurveyPoints     *float64   `json:"surveyPoints,omitempty"`
	InventoryPoints  *float64   `json:"inventoryPoints,omitempty"`
	AdminPoints      *float64   `json:"adminPoints,omitempty"`
	FreshnessPoints  *float64   `json:"freshnessPoints,omitempty"`
	ScoreUpdatedAt   *time.Time `json:"scoreUpdatedAt,omitempty"`
}

// NeedsBackfill reports whether counters were never initialized.
func (m Metrics) NeedsBackfill() bool {
	return m.Counters == nil
}

// Components are the externally maintained score inputs.
type Components struct {
	SurveyPoints    *float64
	InventoryPoints *float64
	AdminPoints     *float64
}

// Components returns the stored external inputs.
func (m Metrics) Components() Components {
	return Components{
		SurveyPoints:    m.SurveyPoints,
		InventoryPoints: m.InventoryPoints,
		AdminPoints:     m.AdminPoints,
	}
}

// ScoreInputs returns the components the score is computed from. An
// operator-supplied inventory value takes precedence over the freshness
// award written by the sweep.
func (m Metrics) ScoreInputs() Components {
	c := m.Components()
	if c.InventoryPoints == nil {
		c.InventoryPoints = m.FreshnessPoints
	}
	return c
}

// ScoreBreakdown is the derived composite score.
type ScoreBreakdown struct {
	CloseRatePercent float64
	ClosingPoints    float64
	SurveyPoints     float64
	InventoryPoints  float64
	AdminPoints      float64
	Total            float64
}

// ComputeScore derives the composite score. It is pure: the same inputs
// always produce the same breakdown.
func ComputeScore(closeRatePercent float64, components Components, closeWeight float64) ScoreBreakdown {
	if closeWeight <= 0 {
		closeWeight = DefaultCloseWeight
	}

	rate := math.Max(0, closeRatePercent)
	closing := round1(math.Min(rate, closeRateCap) * closeWeight)
	survey := valueOr(components.SurveyPoints, DefaultSurveyPoints)
	inventory := valueOr(components.InventoryPoints, DefaultInventoryPoints)
	admin := valueOr(components.AdminPoints, DefaultAdminPoints)

	total := closing + survey + inventory + admin
	total = math.Max(0, math.Min(maxScore, total))

	return ScoreBreakdown{
		CloseRatePercent: round1(rate),
		ClosingPoints:    closing,
		SurveyPoints:     survey,
		InventoryPoints:  inventory,
		AdminPoints:      admin,
		Total:            round1(total),
	}
}

// InventoryFreshnessPoints awards full points when the inventory was touched
// within window of now.
func InventoryFreshnessPoints(updatedAt *time.Time, now time.Time, window time.Duration) float64 {
	if updatedAt == nil || updatedAt.IsZero() {
		return 0
	}
	if now.Sub(*updatedAt) <= window {
		return FreshInventoryPoints
	}
	return 0
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
