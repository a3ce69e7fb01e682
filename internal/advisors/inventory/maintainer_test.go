package inventory

import (
	"context"
	"errors"
	"testing"

	"lead_routing_backend/internal/advisors/domain"
	"lead_routing_backend/internal/events"
	"lead_routing_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type indexCall struct {
	id    uuid.UUID
	index []string
}

type fakeIndexWriter struct {
	calls []indexCall
	err   error
}

func (f *fakeIndexWriter) SetActiveIndex(_ context.Context, id uuid.UUID, index []string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.calls = append(f.calls, indexCall{id: id, index: index})
	return true, nil
}

func written(inventory []domain.InventoryItem, stored []string) events.AdvisorWritten {
	id := uuid.New()
	return events.AdvisorWritten{
		AdvisorID: id,
		After: domain.Advisor{
			ID:                   id,
			Role:                 domain.RoleAdvisor,
			Inventory:            inventory,
			ActiveInventoryIndex: stored,
		},
	}
}

func TestHandle_WritesDerivedIndex(t *testing.T) {
	store := &fakeIndexWriter{}
	m := New(store, nil, logger.Discard())

	ev := written([]domain.InventoryItem{
		{DevelopmentID: "dev-b", Active: true},
		{DevelopmentID: " dev-a ", Active: true},
		{DevelopmentID: "dev-c", Active: false},
		{DevelopmentID: "dev-b", Active: true},
		{DevelopmentID: "", Active: true},
	}, nil)

	require.NoError(t, m.Handle(context.Background(), ev))
	require.Len(t, store.calls, 1)
	assert.Equal(t, ev.AdvisorID, store.calls[0].id)
	assert.Equal(t, []string{"dev-a", "dev-b"}, store.calls[0].index)
}

func TestHandle_NoWriteWhenIndexMatches(t *testing.T) {
	store := &fakeIndexWriter{}
	m := New(store, nil, logger.Discard())

	ev := written([]domain.InventoryItem{
		{DevelopmentID: "dev-a", Active: true},
	}, []string{"dev-a"})

	require.NoError(t, m.Handle(context.Background(), ev))
	assert.Empty(t, store.calls)
}

func TestHandle_EmptyInventoryClearsIndex(t *testing.T) {
	store := &fakeIndexWriter{}
	m := New(store, nil, logger.Discard())

	ev := written(nil, []string{"dev-a"})
	require.NoError(t, m.Handle(context.Background(), ev))
	require.Len(t, store.calls, 1)
	assert.Empty(t, store.calls[0].index)

	// An empty stored index and an empty inventory are already in step.
	store.calls = nil
	require.NoError(t, m.Handle(context.Background(), written(nil, nil)))
	assert.Empty(t, store.calls)
}

func TestHandle_SwallowsStoreError(t *testing.T) {
	store := &fakeIndexWriter{err: errors.New("db down")}
	m := New(store, nil, logger.Discard())

	ev := written([]domain.InventoryItem{{DevelopmentID: "dev-a", Active: true}}, nil)
	assert.NoError(t, m.Handle(context.Background(), ev))
}
