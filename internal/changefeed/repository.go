package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusEnqueued  Status = "enqueued"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"

	errRepoNotConfigured = "changefeed repository not configured"
)

var ErrNotFound = errors.New("document change not found")

// Change is one committed write awaiting delivery.
type Change struct {
	ID         uuid.UUID
	Collection string
	DocumentID uuid.UUID
	Before     json.RawMessage
	After      json.RawMessage
	Status     Status
	Attempts   int
	CreatedAt  time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Change, error) {
	if r == nil || r.pool == nil {
		return Change{}, errors.New(errRepoNotConfigured)
	}

	var ch Change
	var status string
	var before, after []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, collection, document_id, before, after, status, attempts, created_at
		 FROM document_changes
		 WHERE id = $1`,
		id,
	).Scan(&ch.ID, &ch.Collection, &ch.DocumentID, &before, &after, &status, &ch.Attempts, &ch.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Change{}, ErrNotFound
	}
	if err != nil {
		return Change{}, err
	}
	ch.Status = Status(status)
	ch.Before = before
	ch.After = after
	return ch, nil
}

// ClaimPending moves up to limit pending changes to enqueued, oldest first.
// Concurrent dispatchers never claim the same row.
func (r *Repository) ClaimPending(ctx context.Context, limit int) ([]Change, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	if limit < 1 {
		limit = 50
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `WITH cte AS (
		SELECT id
		FROM document_changes
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	UPDATE document_changes c
	SET status = 'enqueued', updated_at = now()
	FROM cte
	WHERE c.id = cte.id
	RETURNING c.id, c.collection, c.document_id, c.status, c.attempts, c.created_at`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Change
	for rows.Next() {
		var ch Change
		var status string
		if err := rows.Scan(&ch.ID, &ch.Collection, &ch.DocumentID, &status, &ch.Attempts, &ch.CreatedAt); err != nil {
			return nil, err
		}
		ch.Status = Status(status)
		results = append(results, ch)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

// ReleaseStale returns changes stuck in enqueued for longer than age to
// pending, covering a dispatcher that died between claim and enqueue.
func (r *Repository) ReleaseStale(ctx context.Context, age time.Duration) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New(errRepoNotConfigured)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE document_changes
		 SET status = 'pending', updated_at = now()
		 WHERE status = 'enqueued' AND attempts = 0 AND updated_at < $1`,
		time.Now().Add(-age),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE document_changes
		 SET status = 'pending', last_error = $2, updated_at = now()
		 WHERE id = $1`,
		id, lastError,
	)
	return err
}

func (r *Repository) MarkAttempt(ctx context.Context, id uuid.UUID) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE document_changes
		 SET attempts = attempts + 1, updated_at = now()
		 WHERE id = $1`,
		id,
	)
	return err
}

func (r *Repository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE document_changes
		 SET status = 'delivered', last_error = NULL, updated_at = now()
		 WHERE id = $1`,
		id,
	)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE document_changes
		 SET status = 'failed', last_error = $2, updated_at = now()
		 WHERE id = $1`,
		id, lastError,
	)
	return err
}
