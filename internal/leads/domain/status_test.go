package domain

import (
	"testing"
	"time"

	"lead_routing_backend/platform/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusNormalizesLegacySpellings(t *testing.T) {
	cases := map[string]Status{
		"WON":                StatusWon,
		" pending_admin ":    StatusPendingAdmin,
		"PENDING_ASSIGNMENT": StatusPendingAssignment,
		"Visit-Scheduled":    StatusVisitScheduled,
		"visit confirmed":    StatusVisitConfirmed,
	}
	for raw, want := range cases {
		got, err := ParseStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestParseStatusRejectsUnknown(t *testing.T) {
	_, err := ParseStatus("ASSIGNED_EXTERNAL")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = ParseStatus("")
	require.Error(t, err)
}

func TestAllStatusesAreValid(t *testing.T) {
	for _, s := range AllStatuses() {
		assert.True(t, s.Valid(), s)
		assert.NotEqual(t, string(s), s.Label())
	}
}

func TestNewHistoryEntryDefaults(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("CST", -6*3600))
	entry, err := NewHistoryEntry(StatusContacted, NoteStatusUpdated, "", "", at)
	require.NoError(t, err)
	assert.Equal(t, SystemActor, entry.ChangedBy)
	assert.Equal(t, time.UTC, entry.Timestamp.Location())

	_, err = NewHistoryEntry("", "x", "", "", at)
	assert.ErrorIs(t, err, ErrHistoryWithoutStatus)
}

func TestSplitName(t *testing.T) {
	first, last := SplitName("  Ana María López  ")
	assert.Equal(t, "Ana", first)
	assert.Equal(t, "María López", last)

	first, last = SplitName("Cher")
	assert.Equal(t, "Cher", first)
	assert.Empty(t, last)

	first, last = SplitName("")
	assert.Empty(t, first)
	assert.Empty(t, last)
}

func TestLeadHelpers(t *testing.T) {
	email := "  Client@Example.COM "
	tracking := " evt-1 "
	lead := Lead{Client: Client{Email: &email}, TrackingEventID: &tracking}
	assert.Equal(t, "client@example.com", lead.ClientEmail())
	assert.Equal(t, "evt-1", lead.TrackingID())
	assert.False(t, lead.IsAssigned())
	assert.False(t, lead.HasTransientFields())

	reason := "called"
	lead.StatusChangeReason = &reason
	assert.True(t, lead.HasTransientFields())
}

func TestInsertHistoryEntryKeepsTimestampOrder(t *testing.T) {
	t0 := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	history := []HistoryEntry{
		{Status: StatusNew, Timestamp: t0.Add(time.Minute)},
		{Status: StatusContacted, Timestamp: t0.Add(2 * time.Minute)},
	}

	got := InsertHistoryEntry(history, HistoryEntry{Status: StatusPendingAssignment, Timestamp: t0})
	require.Len(t, got, 3)
	assert.Equal(t, StatusPendingAssignment, got[0].Status)

	got = InsertHistoryEntry(got, HistoryEntry{Status: StatusWon, Timestamp: t0.Add(2 * time.Minute)})
	assert.Equal(t, StatusWon, got[3].Status)
	assert.Len(t, history, 2)
}
