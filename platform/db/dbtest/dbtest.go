//go:build integration

// Package dbtest gives integration tests a migrated PostgreSQL schema of
// their own. Set TEST_DATABASE_URL or DATABASE_URL; tests skip otherwise.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"lead_routing_backend/platform/db"
	"lead_routing_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// NewPool creates a throwaway schema, points a pool's search_path at it and
// runs the embedded migrations. The schema is dropped on cleanup.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		t.Skip("set TEST_DATABASE_URL or DATABASE_URL to run integration tests")
	}

	admin, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, admin.Ping(ctx))

	schema := "it_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA "%s"`, schema))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), fmt.Sprintf(`DROP SCHEMA IF EXISTS "%s" CASCADE`, schema))
		admin.Close()
	})

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.RunMigrations(ctx, pool, logger.Discard()))
	return pool
}

// LatestChange returns the id and recording time of the newest change for a
// document.
func LatestChange(t *testing.T, pool *pgxpool.Pool, documentID uuid.UUID) (uuid.UUID, time.Time) {
	t.Helper()
	var (
		id uuid.UUID
		at time.Time
	)
	err := pool.QueryRow(context.Background(), `
		SELECT id, created_at FROM document_changes
		WHERE document_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, documentID).Scan(&id, &at)
	require.NoError(t, err)
	return id, at
}
