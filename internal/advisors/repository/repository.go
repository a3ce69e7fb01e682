package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"lead_routing_backend/internal/advisors/domain"
	"lead_routing_backend/internal/changefeed"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound   = errors.New("advisor not found")
	ErrEmailTaken = errors.New("email already registered")
)

// consumerScoring identifies the counter increment in change receipts.
const consumerScoring = "advisor_scoring"

const advisorColumns = `id, display_name, email, role, inventory, active_inventory_ids, inventory_updated_at,
	won_count, lost_count, close_rate_percent, closing_points, survey_points, inventory_points, admin_points,
	freshness_points, score_global, score_updated_at, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ AdvisorRepository = (*Repository)(nil)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanAdvisor(row pgx.Row) (domain.Advisor, error) {
	var (
		a         domain.Advisor
		role      string
		inventory []byte
		won, lost *int
	)
	err := row.Scan(
		&a.ID, &a.DisplayName, &a.Email, &role, &inventory, &a.ActiveInventoryIndex, &a.InventoryUpdatedAt,
		&won, &lost, &a.Metrics.CloseRatePercent, &a.Metrics.ClosingPoints,
		&a.Metrics.SurveyPoints, &a.Metrics.InventoryPoints, &a.Metrics.AdminPoints,
		&a.Metrics.FreshnessPoints, &a.ScoreGlobal, &a.Metrics.ScoreUpdatedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Advisor{}, ErrNotFound
	}
	if err != nil {
		return domain.Advisor{}, err
	}

	a.Role = domain.Role(role)
	if won != nil && lost != nil {
		a.Metrics.Counters = &domain.Counters{Won: *won, Lost: *lost}
	}
	a.Inventory = []domain.InventoryItem{}
	if len(inventory) > 0 {
		if err := json.Unmarshal(inventory, &a.Inventory); err != nil {
			return domain.Advisor{}, fmt.Errorf("decode inventory: %w", err)
		}
	}
	if a.ActiveInventoryIndex == nil {
		a.ActiveInventoryIndex = []string{}
	}
	return a, nil
}

func getAdvisor(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (domain.Advisor, error) {
	query := `SELECT ` + advisorColumns + ` FROM users WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanAdvisor(q.QueryRow(ctx, query, id))
}

// mutate runs fn against the locked row and records the change when fn
// reports one.
func (r *Repository) mutate(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, tx pgx.Tx, before domain.Advisor) (bool, error)) (domain.Advisor, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Advisor{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getAdvisor(ctx, tx, id, true)
	if err != nil {
		return domain.Advisor{}, false, err
	}

	applied, err := fn(ctx, tx, before)
	if err != nil || !applied {
		return before, false, err
	}

	after, err := getAdvisor(ctx, tx, id, false)
	if err != nil {
		return domain.Advisor{}, false, err
	}

	if _, err := changefeed.Record(ctx, tx, changefeed.CollectionUsers, id, before, after); err != nil {
		return domain.Advisor{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Advisor{}, false, err
	}
	return after, true, nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]domain.Advisor, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	advisors := make([]domain.Advisor, 0)
	for rows.Next() {
		a, err := scanAdvisor(rows)
		if err != nil {
			return nil, err
		}
		advisors = append(advisors, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return advisors, nil
}

// Create inserts a user. Advisors start with initialized counters; other
// roles keep NULL counters until promoted.
func (r *Repository) Create(ctx context.Context, params CreateParams) (domain.Advisor, error) {
	inventory, err := json.Marshal(nonNilInventory(params.Inventory))
	if err != nil {
		return domain.Advisor{}, err
	}

	var won, lost *int
	if params.Role == domain.RoleAdvisor {
		zero := 0
		won, lost = &zero, &zero
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Advisor{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	advisor, err := scanAdvisor(tx.QueryRow(ctx, `
		INSERT INTO users (display_name, email, role, inventory, inventory_updated_at, won_count, lost_count)
		VALUES ($1, $2, $3, $4, now(), $5, $6)
		RETURNING `+advisorColumns,
		params.DisplayName, strings.ToLower(strings.TrimSpace(params.Email)), string(params.Role), inventory, won, lost,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Advisor{}, ErrEmailTaken
		}
		return domain.Advisor{}, err
	}

	if _, err := changefeed.Record(ctx, tx, changefeed.CollectionUsers, advisor.ID, nil, advisor); err != nil {
		return domain.Advisor{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Advisor{}, err
	}
	return advisor, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Advisor, error) {
	return getAdvisor(ctx, r.pool, id, false)
}

func (r *Repository) ListAdvisors(ctx context.Context) ([]domain.Advisor, error) {
	return r.list(ctx, `
		SELECT `+advisorColumns+`
		FROM users
		WHERE role = $1
		ORDER BY created_at ASC
	`, string(domain.RoleAdvisor))
}

// ListCandidates uses the GIN index on active_inventory_ids.
func (r *Repository) ListCandidates(ctx context.Context, developmentID string) ([]domain.Advisor, error) {
	return r.list(ctx, `
		SELECT `+advisorColumns+`
		FROM users
		WHERE role = $1 AND active_inventory_ids @> ARRAY[$2::text]
	`, string(domain.RoleAdvisor), strings.TrimSpace(developmentID))
}

func (r *Repository) UpdateInventory(ctx context.Context, id uuid.UUID, inventory []domain.InventoryItem) (domain.Advisor, error) {
	data, err := json.Marshal(nonNilInventory(inventory))
	if err != nil {
		return domain.Advisor{}, err
	}

	advisor, _, err := r.mutate(ctx, id, func(ctx context.Context, tx pgx.Tx, _ domain.Advisor) (bool, error) {
		_, err := tx.Exec(ctx, `
			UPDATE users
			SET inventory = $2, inventory_updated_at = now(), updated_at = now()
			WHERE id = $1
		`, id, data)
		return err == nil, err
	})
	return advisor, err
}

func (r *Repository) UpdateScoreComponents(ctx context.Context, id uuid.UUID, components domain.Components) (domain.Advisor, error) {
	advisor, _, err := r.mutate(ctx, id, func(ctx context.Context, tx pgx.Tx, _ domain.Advisor) (bool, error) {
		_, err := tx.Exec(ctx, `
			UPDATE users
			SET survey_points = $2, inventory_points = $3, admin_points = $4, updated_at = now()
			WHERE id = $1
		`, id, components.SurveyPoints, components.InventoryPoints, components.AdminPoints)
		return err == nil, err
	})
	return advisor, err
}

// Promote grants the advisor role. Counters that were never initialized are
// counted from the user's existing leads in the same transaction.
func (r *Repository) Promote(ctx context.Context, id uuid.UUID) (domain.Advisor, error) {
	advisor, _, err := r.mutate(ctx, id, func(ctx context.Context, tx pgx.Tx, before domain.Advisor) (bool, error) {
		if before.IsAdvisor() && !before.Metrics.NeedsBackfill() {
			return false, nil
		}
		if !before.Metrics.NeedsBackfill() {
			_, err := tx.Exec(ctx, `UPDATE users SET role = $2, updated_at = now() WHERE id = $1`, id, string(domain.RoleAdvisor))
			return err == nil, err
		}
		counters, err := countClosedLeads(ctx, tx, id)
		if err != nil {
			return false, err
		}
		_, err = tx.Exec(ctx, `
			UPDATE users
			SET role = $2, won_count = $3, lost_count = $4,
				counters_backfilled_at = clock_timestamp(), updated_at = now()
			WHERE id = $1
		`, id, string(domain.RoleAdvisor), counters.Won, counters.Lost)
		return err == nil, err
	})
	return advisor, err
}

// SetActiveIndex stores index unless the stored value is already equal.
func (r *Repository) SetActiveIndex(ctx context.Context, id uuid.UUID, index []string) (bool, error) {
	if index == nil {
		index = []string{}
	}
	_, applied, err := r.mutate(ctx, id, func(ctx context.Context, tx pgx.Tx, before domain.Advisor) (bool, error) {
		if domain.SameIndex(before.ActiveInventoryIndex, index) {
			return false, nil
		}
		_, err := tx.Exec(ctx, `
			UPDATE users
			SET active_inventory_ids = $2, index_updated_at = now(), updated_at = now()
			WHERE id = $1
		`, id, index)
		return err == nil, err
	})
	return applied, err
}

// ApplyCounterDelta increments the counters in SQL. NULL counters stay NULL
// so legacy advisors still get their backfill, and a change older than the
// backfill is skipped because the backfill already counted it. The receipt
// makes a redelivered change a no-op.
func (r *Repository) ApplyCounterDelta(ctx context.Context, params CounterDeltaParams) (bool, error) {
	if params.WonDelta == 0 && params.LostDelta == 0 {
		return false, nil
	}
	changedAt := params.ChangedAt
	if changedAt.IsZero() {
		changedAt = time.Now()
	}

	_, applied, err := r.mutate(ctx, params.AdvisorID, func(ctx context.Context, tx pgx.Tx, _ domain.Advisor) (bool, error) {
		fresh, err := changefeed.ClaimReceipt(ctx, tx, params.ChangeID, consumerScoring)
		if err != nil || !fresh {
			return false, err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE users
			SET won_count = won_count + $2, lost_count = lost_count + $3, updated_at = now()
			WHERE id = $1
				AND won_count IS NOT NULL AND lost_count IS NOT NULL
				AND (counters_backfilled_at IS NULL OR counters_backfilled_at < $4)
		`, params.AdvisorID, params.WonDelta, params.LostDelta, changedAt)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() == 1, nil
	})
	return applied, err
}

// Backfill counts won and lost leads from scratch for an advisor whose
// counters were never initialized. The row lock makes it run once.
func (r *Repository) Backfill(ctx context.Context, id uuid.UUID) (BackfillResult, error) {
	var result BackfillResult

	advisor, applied, err := r.mutate(ctx, id, func(ctx context.Context, tx pgx.Tx, before domain.Advisor) (bool, error) {
		if !before.Metrics.NeedsBackfill() {
			result.Counters = *before.Metrics.Counters
			return false, nil
		}

		counters, err := countClosedLeads(ctx, tx, id)
		if err != nil {
			return false, err
		}
		// Stamped after the count so every change it could not see is newer.
		_, err = tx.Exec(ctx, `
			UPDATE users
			SET won_count = $2, lost_count = $3,
				counters_backfilled_at = clock_timestamp(), updated_at = now()
			WHERE id = $1
		`, id, counters.Won, counters.Lost)
		return err == nil, err
	})
	if err != nil {
		return BackfillResult{}, err
	}
	if applied && advisor.Metrics.Counters != nil {
		result.Counters = *advisor.Metrics.Counters
		result.Backfilled = true
	}
	return result, nil
}

// RecomputeScore derives the score from the locked row and writes it with a
// fresh timestamp only when the rate or score moved.
func (r *Repository) RecomputeScore(ctx context.Context, id uuid.UUID, compute ScoreFunc) (domain.Advisor, bool, error) {
	return r.mutate(ctx, id, func(ctx context.Context, tx pgx.Tx, before domain.Advisor) (bool, error) {
		score := compute(before.Metrics)
		if sameScore(before, score) && before.Metrics.ScoreUpdatedAt != nil {
			return false, nil
		}
		_, err := tx.Exec(ctx, `
			UPDATE users
			SET close_rate_percent = $2, closing_points = $3, score_global = $4,
				score_updated_at = now(), updated_at = now()
			WHERE id = $1
		`, id, score.CloseRatePercent, score.ClosingPoints, score.Total)
		return err == nil, err
	})
}

// SetFreshnessPoints stores the sweep's inventory award. It lives beside the
// operator-supplied inventory_points and never overwrites it.
func (r *Repository) SetFreshnessPoints(ctx context.Context, id uuid.UUID, points float64) (bool, error) {
	_, applied, err := r.mutate(ctx, id, func(ctx context.Context, tx pgx.Tx, before domain.Advisor) (bool, error) {
		if before.Metrics.FreshnessPoints != nil && *before.Metrics.FreshnessPoints == points {
			return false, nil
		}
		_, err := tx.Exec(ctx, `
			UPDATE users SET freshness_points = $2, updated_at = now() WHERE id = $1
		`, id, points)
		return err == nil, err
	})
	return applied, err
}

// countClosedLeads tallies the advisor's won and lost leads. FOR SHARE waits
// for lead transactions that still hold their row lock, so a status change
// recorded before the count but committed during it is included.
func countClosedLeads(ctx context.Context, tx pgx.Tx, advisorID uuid.UUID) (domain.Counters, error) {
	rows, err := tx.Query(ctx, `SELECT status FROM leads WHERE advisor_id = $1 FOR SHARE`, advisorID)
	if err != nil {
		return domain.Counters{}, err
	}
	statuses, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return domain.Counters{}, err
	}
	return domain.CountClosed(statuses), nil
}

func sameScore(a domain.Advisor, score domain.ScoreBreakdown) bool {
	const epsilon = 1e-9
	return math.Abs(a.ScoreGlobal-score.Total) < epsilon &&
		math.Abs(a.Metrics.CloseRatePercent-score.CloseRatePercent) < epsilon &&
		math.Abs(a.Metrics.ClosingPoints-score.ClosingPoints) < epsilon
}

func nonNilInventory(items []domain.InventoryItem) []domain.InventoryItem {
	if items == nil {
		return []domain.InventoryItem{}
	}
	return items
}
