//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"lead_routing_backend/internal/advisors/domain"
	"lead_routing_backend/internal/changefeed"
	"lead_routing_backend/platform/db/dbtest"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createUser(t *testing.T, repo *Repository, role domain.Role) domain.Advisor {
	t.Helper()
	user, err := repo.Create(context.Background(), CreateParams{
		DisplayName: "Ana",
		Email:       uuid.NewString() + "@example.com",
		Role:        role,
	})
	require.NoError(t, err)
	return user
}

// legacyAdvisor is an advisor whose counters were never initialized.
func legacyAdvisor(t *testing.T, pool *pgxpool.Pool, repo *Repository) domain.Advisor {
	t.Helper()
	user := createUser(t, repo, domain.RoleClient)
	_, err := pool.Exec(context.Background(), `UPDATE users SET role = 'advisor' WHERE id = $1`, user.ID)
	require.NoError(t, err)
	return user
}

func insertLead(t *testing.T, pool *pgxpool.Pool, advisorID uuid.UUID, status string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(context.Background(), `
		INSERT INTO leads (client_name, development_id, status, advisor_id)
		VALUES ('Cliente', 'D1', $1, $2)
		RETURNING id
	`, status, advisorID).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestBackfillWaitsForInFlightLeadWrite(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.NewPool(t)
	repo := New(pool)

	advisor := legacyAdvisor(t, pool, repo)
	insertLead(t, pool, advisor.ID, "lost")
	leadID := insertLead(t, pool, advisor.ID, "visited")

	// A lead write that has recorded its change but not committed yet.
	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()
	_, err = tx.Exec(ctx, `SELECT id FROM leads WHERE id = $1 FOR UPDATE`, leadID)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, `UPDATE leads SET status = 'won' WHERE id = $1`, leadID)
	require.NoError(t, err)
	changeID, err := changefeed.Record(ctx, tx, changefeed.CollectionLeads, leadID, map[string]string{"status": "visited"}, map[string]string{"status": "won"})
	require.NoError(t, err)

	type outcome struct {
		result BackfillResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := repo.Backfill(ctx, advisor.ID)
		done <- outcome{res, err}
	}()

	select {
	case <-done:
		t.Fatal("backfill finished while a lead write still held its row")
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, tx.Commit(ctx))

	var got outcome
	select {
	case got = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("backfill did not finish after the lead write committed")
	}
	require.NoError(t, got.err)
	assert.True(t, got.result.Backfilled)
	assert.Equal(t, domain.Counters{Won: 1, Lost: 1}, got.result.Counters)

	// The delta for the same change arrives afterwards and must not count twice.
	_, changedAt := dbtest.LatestChange(t, pool, leadID)
	applied, err := repo.ApplyCounterDelta(ctx, CounterDeltaParams{
		AdvisorID: advisor.ID,
		ChangeID:  changeID,
		ChangedAt: changedAt,
		WonDelta:  1,
	})
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := repo.GetByID(ctx, advisor.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Metrics.Counters)
	assert.Equal(t, domain.Counters{Won: 1, Lost: 1}, *stored.Metrics.Counters)
}

func TestApplyCounterDeltaOncePerChange(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.NewPool(t)
	repo := New(pool)

	advisor := createUser(t, repo, domain.RoleAdvisor)
	leadID := insertLead(t, pool, advisor.ID, "won")

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	changeID, err := changefeed.Record(ctx, tx, changefeed.CollectionLeads, leadID, nil, map[string]string{"status": "won"})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	params := CounterDeltaParams{AdvisorID: advisor.ID, ChangeID: changeID, ChangedAt: time.Now(), WonDelta: 1}
	applied, err := repo.ApplyCounterDelta(ctx, params)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.ApplyCounterDelta(ctx, params)
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := repo.GetByID(ctx, advisor.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Metrics.Counters)
	assert.Equal(t, domain.Counters{Won: 1}, *stored.Metrics.Counters)
}

func TestApplyCounterDeltaLeavesLegacyCountersNull(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.NewPool(t)
	repo := New(pool)
	advisor := legacyAdvisor(t, pool, repo)

	applied, err := repo.ApplyCounterDelta(ctx, CounterDeltaParams{AdvisorID: advisor.ID, ChangedAt: time.Now(), LostDelta: 1})
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := repo.GetByID(ctx, advisor.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Metrics.Counters)
}

func TestPromoteCountsExistingLeads(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.NewPool(t)
	repo := New(pool)

	user := createUser(t, repo, domain.RoleClient)
	insertLead(t, pool, user.ID, "won")
	insertLead(t, pool, user.ID, "contacted")

	promoted, err := repo.Promote(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdvisor, promoted.Role)
	require.NotNil(t, promoted.Metrics.Counters)
	assert.Equal(t, domain.Counters{Won: 1}, *promoted.Metrics.Counters)

	var stamped bool
	require.NoError(t, pool.QueryRow(ctx, `SELECT counters_backfilled_at IS NOT NULL FROM users WHERE id = $1`, user.ID).Scan(&stamped))
	assert.True(t, stamped)
}

func TestSetFreshnessPointsKeepsOperatorInventory(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.NewPool(t)
	repo := New(pool)
	advisor := createUser(t, repo, domain.RoleAdvisor)

	inventory := 15.0
	_, err := repo.UpdateScoreComponents(ctx, advisor.ID, domain.Components{InventoryPoints: &inventory})
	require.NoError(t, err)

	applied, err := repo.SetFreshnessPoints(ctx, advisor.ID, 0)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.SetFreshnessPoints(ctx, advisor.ID, 0)
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := repo.GetByID(ctx, advisor.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Metrics.InventoryPoints)
	require.NotNil(t, stored.Metrics.FreshnessPoints)
	assert.Equal(t, 15.0, *stored.Metrics.InventoryPoints)
	assert.Equal(t, 0.0, *stored.Metrics.FreshnessPoints)
	assert.Equal(t, 15.0, *stored.Metrics.ScoreInputs().InventoryPoints)
}
