package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead_routing_backend/internal/advisors/domain"
)

// FreshnessSweeper awards inventory points to advisors who kept their
// inventory current within the window.
type FreshnessSweeper struct {
	maintainer *Maintainer
	window     time.Duration
	now        func() time.Time
}

func NewFreshnessSweeper(m *Maintainer, window time.Duration) *FreshnessSweeper {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return &FreshnessSweeper{maintainer: m, window: window, now: time.Now}
}

// Run sweeps every advisor once. Individual failures do not stop the sweep.
func (s *FreshnessSweeper) Run(ctx context.Context) error {
	advisors, err := s.maintainer.store.ListAdvisors(ctx)
	if err != nil {
		return fmt.Errorf("list advisors: %w", err)
	}

	now := s.now()
	var errs []error
	updated := 0
	for _, a := range advisors {
		if err := ctx.Err(); err != nil {
			return err
		}
		changed, err := s.sweepOne(ctx, a, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("advisor %s: %w", a.ID, err))
			continue
		}
		if changed {
			updated++
		}
	}

	s.maintainer.log.WithContext(ctx).Info("inventory freshness sweep finished",
		"advisors", len(advisors),
		"updated", updated,
		"failed", len(errs),
	)
	return errors.Join(errs...)
}

func (s *FreshnessSweeper) sweepOne(ctx context.Context, a domain.Advisor, now time.Time) (bool, error) {
	points := domain.InventoryFreshnessPoints(a.InventoryUpdatedAt, now, s.window)
	changed, err := s.maintainer.store.SetFreshnessPoints(ctx, a.ID, points)
	if err != nil || !changed {
		return false, err
	}
	if _, err := s.maintainer.Recalculate(ctx, a.ID, "freshness_sweep"); err != nil {
		return true, err
	}
	return true, nil
}
