// Package assignment routes newly created leads to an advisor.
package assignment

import (
	"cmp"
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"lead_routing_backend/internal/events"
	"lead_routing_backend/internal/leads/domain"
	"lead_routing_backend/internal/leads/ports"
	"lead_routing_backend/internal/leads/repository"
	"lead_routing_backend/internal/metrics"
	"lead_routing_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const component = "assignment"

const (
	ReasonLoyalty    = "loyalty"
	ReasonMerit      = "merit"
	ReasonNoCoverage = "no coverage"
)

// Result is the outcome of one routing attempt.
type Result string

const (
	ResultAssigned  Result = "assigned"
	ResultEscalated Result = "escalated"
	ResultSkipped   Result = "skipped"
)

// Outcome describes what Route did.
type Outcome struct {
	Result    Result
	AdvisorID uuid.UUID
	Reason    string
}

// LeadStore is the slice of the lead repository routing needs.
type LeadStore interface {
	repository.ClientHistoryReader
	repository.AssignmentWriter
}

// Publisher receives routing events.
type Publisher interface {
	Publish(ctx context.Context, event events.Event)
}

// Picker returns an index in [0, n). It breaks exact merit ties.
type Picker func(n int) int

// Engine assigns new leads by loyalty, then merit.
type Engine struct {
	leads      LeadStore
	candidates ports.CandidateFinder
	publisher  Publisher
	lookback   int
	pick       Picker
	now        func() time.Time
	metrics    *metrics.Metrics
	log        *logger.Logger
}

type Option func(*Engine)

// WithPicker replaces the random tie-breaker.
func WithPicker(p Picker) Option {
	return func(e *Engine) { e.pick = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(leads LeadStore, candidates ports.CandidateFinder, publisher Publisher, lookback int, m *metrics.Metrics, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		leads:      leads,
		candidates: candidates,
		publisher:  publisher,
		lookback:   lookback,
		pick:       rand.IntN,
		now:        time.Now,
		metrics:    m,
		log:        log.WithComponent(component),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle routes leads on creation. Failures are logged, never returned.
func (e *Engine) Handle(ctx context.Context, event events.Event) error {
	written, ok := event.(events.LeadWritten)
	if !ok || !written.IsCreate() {
		return nil
	}

	outcome, err := e.Route(ctx, written.After)
	if err != nil {
		e.metrics.RecordHandlerError(component)
		e.log.WithContext(ctx).HandlerError(component, err, "lead_id", written.LeadID)
		return nil
	}

	e.metrics.RecordAssignment(string(outcome.Result), outcome.Reason)
	e.log.WithContext(ctx).Info("lead routed",
		"lead_id", written.LeadID,
		"result", outcome.Result,
		"advisor_id", outcome.AdvisorID,
		"reason", outcome.Reason,
	)
	return nil
}

// Route selects an advisor for lead and persists the result atomically.
func (e *Engine) Route(ctx context.Context, lead domain.Lead) (Outcome, error) {
	if lead.IsAssigned() {
		return Outcome{Result: ResultSkipped, AdvisorID: *lead.AdvisorID}, nil
	}

	developmentID := domain.NormalizeDevelopmentID(lead.DevelopmentID)

	var (
		candidates []ports.Candidate
		prior      []domain.Lead
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := e.candidates.ListCandidates(gctx, developmentID)
		if err != nil {
			return fmt.Errorf("list candidates: %w", err)
		}
		candidates = found
		return nil
	})
	if email := lead.ClientEmail(); email != "" && e.lookback > 0 {
		g.Go(func() error {
			found, err := e.leads.ListRecentByClientEmail(gctx, email, e.lookback, lead.ID)
			if err != nil {
				return fmt.Errorf("list prior leads: %w", err)
			}
			prior = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Outcome{}, err
	}

	if len(candidates) == 0 {
		return e.escalate(ctx, lead)
	}

	winner, reason := e.selectWinner(candidates, prior)
	return e.assign(ctx, lead, winner, reason)
}

func (e *Engine) selectWinner(candidates []ports.Candidate, prior []domain.Lead) (ports.Candidate, string) {
	if winner, ok := loyaltyMatch(candidates, prior); ok {
		return winner, ReasonLoyalty
	}
	return meritWinner(candidates, e.pick), ReasonMerit
}

// loyaltyMatch returns the candidate who handled the client's most recent
// prior lead, if any.
func loyaltyMatch(candidates []ports.Candidate, prior []domain.Lead) (ports.Candidate, bool) {
	byID := make(map[uuid.UUID]ports.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	for _, p := range prior {
		if !p.IsAssigned() {
			continue
		}
		if c, ok := byID[*p.AdvisorID]; ok {
			return c, true
		}
	}
	return ports.Candidate{}, false
}

// meritWinner ranks by score, then close rate, and draws among exact leaders.
func meritWinner(candidates []ports.Candidate, pick Picker) ports.Candidate {
	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(a, b ports.Candidate) int {
		if c := cmp.Compare(b.ScoreGlobal, a.ScoreGlobal); c != 0 {
			return c
		}
		return cmp.Compare(b.CloseRatePercent, a.CloseRatePercent)
	})

	leaders := 1
	for leaders < len(ranked) &&
		ranked[leaders].ScoreGlobal == ranked[0].ScoreGlobal &&
		ranked[leaders].CloseRatePercent == ranked[0].CloseRatePercent {
		leaders++
	}
	if leaders == 1 || pick == nil {
		return ranked[0]
	}

	i := pick(leaders)
	if i < 0 || i >= leaders {
		i = 0
	}
	return ranked[i]
}

func (e *Engine) assign(ctx context.Context, lead domain.Lead, winner ports.Candidate, reason string) (Outcome, error) {
	at := e.now()
	entry, err := domain.NewHistoryEntry(
		domain.StatusNew,
		fmt.Sprintf("auto-assigned to %s (%s)", displayName(winner), reason),
		domain.SystemActor,
		domain.ActionAutoAssigned,
		at,
	)
	if err != nil {
		return Outcome{}, err
	}

	applied, err := e.leads.Assign(ctx, repository.AssignParams{
		LeadID:    lead.ID,
		AdvisorID: winner.ID,
		Reason:    reason,
		Entry:     entry,
		At:        at.UTC(),
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("assign lead: %w", err)
	}
	if !applied {
		return Outcome{Result: ResultSkipped}, nil
	}

	if e.publisher != nil {
		e.publisher.Publish(ctx, events.LeadAssigned{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			AdvisorID: winner.ID,
			Reason:    reason,
		})
	}
	return Outcome{Result: ResultAssigned, AdvisorID: winner.ID, Reason: reason}, nil
}

func (e *Engine) escalate(ctx context.Context, lead domain.Lead) (Outcome, error) {
	entry, err := domain.NewHistoryEntry(
		domain.StatusPendingAdmin,
		domain.NoteNoCoverage,
		domain.SystemActor,
		domain.ActionAssignmentError,
		e.now(),
	)
	if err != nil {
		return Outcome{}, err
	}

	applied, err := e.leads.Escalate(ctx, repository.EscalateParams{
		LeadID: lead.ID,
		Reason: ReasonNoCoverage,
		Entry:  entry,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("escalate lead: %w", err)
	}
	if !applied {
		return Outcome{Result: ResultSkipped, Reason: ReasonNoCoverage}, nil
	}

	if e.publisher != nil {
		e.publisher.Publish(ctx, events.LeadEscalated{
			BaseEvent:       events.NewBaseEvent(),
			LeadID:          lead.ID,
			DevelopmentID:   lead.DevelopmentID,
			DevelopmentName: lead.DevelopmentName,
			ClientName:      lead.Client.Name,
		})
	}
	return Outcome{Result: ResultEscalated, Reason: ReasonNoCoverage}, nil
}

func displayName(c ports.Candidate) string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.ID.String()
}
