package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"lead_routing_backend/internal/changefeed"
	"lead_routing_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

// consumerHistory identifies the history tracker in change receipts.
const consumerHistory = "lead_history"

const leadColumns = `id, client_name, client_email, client_phone, development_id, development_name,
	status, advisor_id, assignment_reason, assigned_at, history, tracking_event_id, appointment_at,
	client_ip, user_agent, source_url, fbc, fbp, zip_code, status_change_reason, changed_by,
	created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ LeadRepository = (*Repository)(nil)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var (
		lead    domain.Lead
		status  string
		history []byte
	)
	err := row.Scan(
		&lead.ID, &lead.Client.Name, &lead.Client.Email, &lead.Client.Phone, &lead.DevelopmentID, &lead.DevelopmentName,
		&status, &lead.AdvisorID, &lead.AssignmentReason, &lead.AssignedAt, &history, &lead.TrackingEventID, &lead.AppointmentAt,
		&lead.Attribution.ClientIP, &lead.Attribution.UserAgent, &lead.Attribution.SourceURL,
		&lead.Attribution.FBC, &lead.Attribution.FBP, &lead.Attribution.ZipCode,
		&lead.StatusChangeReason, &lead.ChangedBy,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}

	lead.Status = domain.Status(status)
	lead.History = []domain.HistoryEntry{}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &lead.History); err != nil {
			return domain.Lead{}, fmt.Errorf("decode lead history: %w", err)
		}
	}
	return lead, nil
}

func getLead(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanLead(q.QueryRow(ctx, query, id))
}

// mutate runs fn against the locked row and, when fn reports a change,
// records the before/after snapshots in the change feed before committing.
func (r *Repository) mutate(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, tx pgx.Tx, before domain.Lead) (bool, error)) (domain.Lead, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Lead{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getLead(ctx, tx, id, true)
	if err != nil {
		return domain.Lead{}, false, err
	}

	applied, err := fn(ctx, tx, before)
	if err != nil || !applied {
		return before, false, err
	}

	after, err := getLead(ctx, tx, id, false)
	if err != nil {
		return domain.Lead{}, false, err
	}

	if _, err := changefeed.Record(ctx, tx, changefeed.CollectionLeads, id, before, after); err != nil {
		return domain.Lead{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, false, err
	}
	return after, true, nil
}

func (r *Repository) Create(ctx context.Context, params CreateParams) (domain.Lead, error) {
	status := params.Status
	if status == "" {
		status = domain.StatusPendingAssignment
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Lead{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lead, err := scanLead(tx.QueryRow(ctx, `
		INSERT INTO leads (
			client_name, client_email, client_phone, development_id, development_name, status,
			client_ip, user_agent, source_url, fbc, fbp, zip_code
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+leadColumns,
		params.ClientName, params.ClientEmail, params.ClientPhone,
		domain.NormalizeDevelopmentID(params.DevelopmentID), params.DevelopmentName, string(status),
		params.ClientIP, params.UserAgent, params.SourceURL, params.FBC, params.FBP, params.ZipCode,
	))
	if err != nil {
		return domain.Lead{}, err
	}

	if _, err := changefeed.Record(ctx, tx, changefeed.CollectionLeads, lead.ID, nil, lead); err != nil {
		return domain.Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return getLead(ctx, r.pool, id, false)
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]domain.Lead, error) {
	limit := params.Limit
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var status *string
	if params.Status != nil {
		s := string(*params.Status)
		status = &s
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE ($1::text IS NULL OR status = $1)
			AND ($2::uuid IS NULL OR advisor_id = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, status, params.AdvisorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return leads, nil
}

// ListRecentByClientEmail returns the client's newest leads, excluding one.
func (r *Repository) ListRecentByClientEmail(ctx context.Context, email string, limit int, excludeID uuid.UUID) ([]domain.Lead, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || limit < 1 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE lower(client_email) = $1 AND id <> $2
		ORDER BY created_at DESC
		LIMIT $3
	`, email, excludeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []domain.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return leads, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, params UpdateStatusParams) (domain.Lead, error) {
	lead, _, err := r.mutate(ctx, params.LeadID, func(ctx context.Context, tx pgx.Tx, _ domain.Lead) (bool, error) {
		_, err := tx.Exec(ctx, `
			UPDATE leads
			SET status = $2, status_change_reason = $3, changed_by = $4, updated_at = now()
			WHERE id = $1
		`, params.LeadID, string(params.Status), params.Reason, params.ChangedBy)
		return err == nil, err
	})
	return lead, err
}

func (r *Repository) ScheduleAppointment(ctx context.Context, params ScheduleParams) (domain.Lead, error) {
	lead, _, err := r.mutate(ctx, params.LeadID, func(ctx context.Context, tx pgx.Tx, _ domain.Lead) (bool, error) {
		_, err := tx.Exec(ctx, `
			UPDATE leads
			SET tracking_event_id = $2, appointment_at = $3, status = $4,
				status_change_reason = $5, changed_by = $6, updated_at = now()
			WHERE id = $1
		`, params.LeadID, params.TrackingEventID, params.AppointmentAt, string(domain.StatusVisitScheduled),
			params.Reason, params.ChangedBy)
		return err == nil, err
	})
	return lead, err
}

// Assign attaches the advisor, sets status new and appends the assignment
// entry in one statement. It does nothing if the lead already has an advisor.
func (r *Repository) Assign(ctx context.Context, params AssignParams) (bool, error) {
	entry, err := json.Marshal(params.Entry)
	if err != nil {
		return false, err
	}

	_, applied, err := r.mutate(ctx, params.LeadID, func(ctx context.Context, tx pgx.Tx, _ domain.Lead) (bool, error) {
		tag, err := tx.Exec(ctx, `
			UPDATE leads
			SET advisor_id = $2, status = $3, assignment_reason = $4, assigned_at = $5,
				history = history || jsonb_build_array($6::jsonb), updated_at = now()
			WHERE id = $1 AND advisor_id IS NULL
		`, params.LeadID, params.AdvisorID, string(domain.StatusNew), params.Reason, params.At, entry)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() == 1, nil
	})
	return applied, err
}

// Escalate parks an unassigned lead for an admin with a single history entry.
// A lead already parked is left untouched.
func (r *Repository) Escalate(ctx context.Context, params EscalateParams) (bool, error) {
	entry, err := json.Marshal(params.Entry)
	if err != nil {
		return false, err
	}

	_, applied, err := r.mutate(ctx, params.LeadID, func(ctx context.Context, tx pgx.Tx, _ domain.Lead) (bool, error) {
		tag, err := tx.Exec(ctx, `
			UPDATE leads
			SET status = $2, assignment_reason = $3,
				history = history || jsonb_build_array($4::jsonb), updated_at = now()
			WHERE id = $1 AND advisor_id IS NULL AND status <> $2
		`, params.LeadID, string(domain.StatusPendingAdmin), params.Reason, entry)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() == 1, nil
	})
	return applied, err
}

// ReconcileHistory inserts an entry in timestamp order and/or clears the
// transient fields. A change already reconciled is skipped.
func (r *Repository) ReconcileHistory(ctx context.Context, params ReconcileParams) (bool, error) {
	if params.Entry == nil && !params.ClearTransient {
		return false, nil
	}

	var entry []byte
	if params.Entry != nil {
		data, err := json.Marshal(params.Entry)
		if err != nil {
			return false, err
		}
		entry = data
	}

	_, applied, err := r.mutate(ctx, params.LeadID, func(ctx context.Context, tx pgx.Tx, _ domain.Lead) (bool, error) {
		fresh, err := changefeed.ClaimReceipt(ctx, tx, params.ChangeID, consumerHistory)
		if err != nil || !fresh {
			return false, err
		}

		_, err = tx.Exec(ctx, `
			UPDATE leads
			SET history = CASE WHEN $2::jsonb IS NULL THEN history ELSE (
					SELECT jsonb_agg(h.e ORDER BY (h.e->>'timestamp')::timestamptz, h.ord)
					FROM jsonb_array_elements(history || jsonb_build_array($2::jsonb)) WITH ORDINALITY AS h(e, ord)
				) END,
				status_change_reason = CASE WHEN $3 THEN NULL ELSE status_change_reason END,
				changed_by = CASE WHEN $3 THEN NULL ELSE changed_by END,
				updated_at = now()
			WHERE id = $1
		`, params.LeadID, entry, params.ClearTransient)
		return err == nil, err
	})
	return applied, err
}
