// Package changefeed turns committed document writes into at-least-once
// delivered events. Repositories record a change row in the same
// transaction as the write; the dispatcher hands rows to asynq and the
// worker publishes them on the event bus.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Collections with a change feed.
const (
	CollectionLeads = "leads"
	CollectionUsers = "users"
)

// Record stores a before/after snapshot of a document inside tx.
// before is nil on creation.
func Record(ctx context.Context, tx pgx.Tx, collection string, documentID uuid.UUID, before, after any) (uuid.UUID, error) {
	var beforeJSON []byte
	if before != nil {
		data, err := json.Marshal(before)
		if err != nil {
			return uuid.Nil, fmt.Errorf("marshal before snapshot: %w", err)
		}
		beforeJSON = data
	}

	afterJSON, err := json.Marshal(after)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal after snapshot: %w", err)
	}

	var id uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO document_changes (collection, document_id, before, after, created_at)
		 VALUES ($1, $2, $3, $4, clock_timestamp())
		 RETURNING id`,
		collection, documentID, beforeJSON, afterJSON,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ClaimReceipt marks change as consumed by consumer inside tx. It returns
// false when the consumer already handled the change, in which case the
// caller must roll back its write.
func ClaimReceipt(ctx context.Context, tx pgx.Tx, changeID uuid.UUID, consumer string) (bool, error) {
	if changeID == uuid.Nil {
		return true, nil
	}
	tag, err := tx.Exec(ctx,
		`INSERT INTO change_receipts (change_id, consumer)
		 VALUES ($1, $2)
		 ON CONFLICT (change_id, consumer) DO NOTHING`,
		changeID, consumer,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
