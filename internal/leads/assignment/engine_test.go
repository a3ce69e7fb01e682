package assignment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	advisordomain "lead_routing_backend/internal/advisors/domain"
	"lead_routing_backend/internal/events"
	"lead_routing_backend/internal/leads/domain"
	"lead_routing_backend/internal/leads/ports"
	"lead_routing_backend/internal/leads/repository"
	"lead_routing_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLeadStore struct {
	mu     sync.Mutex
	leads  map[uuid.UUID]*domain.Lead
	writes int
}

func newFakeLeadStore(leads ...domain.Lead) *fakeLeadStore {
	s := &fakeLeadStore{leads: map[uuid.UUID]*domain.Lead{}}
	for i := range leads {
		l := leads[i]
		s.leads[l.ID] = &l
	}
	return s
}

func (s *fakeLeadStore) get(id uuid.UUID) domain.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.leads[id]
}

func (s *fakeLeadStore) ListRecentByClientEmail(_ context.Context, email string, limit int, excludeID uuid.UUID) ([]domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Lead
	for _, l := range s.leads {
		if l.ID != excludeID && l.ClientEmail() == email {
			out = append(out, *l)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeLeadStore) Assign(_ context.Context, p repository.AssignParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.leads[p.LeadID]
	if l.IsAssigned() {
		return false, nil
	}
	advisorID := p.AdvisorID
	at := p.At
	l.AdvisorID = &advisorID
	l.Status = domain.StatusNew
	l.AssignmentReason = p.Reason
	l.AssignedAt = &at
	l.History = append(l.History, p.Entry)
	s.writes++
	return true, nil
}

func (s *fakeLeadStore) Escalate(_ context.Context, p repository.EscalateParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.leads[p.LeadID]
	if l.IsAssigned() || l.Status == domain.StatusPendingAdmin {
		return false, nil
	}
	l.Status = domain.StatusPendingAdmin
	l.AssignmentReason = p.Reason
	l.History = append(l.History, p.Entry)
	s.writes++
	return true, nil
}

// advisorFinder filters real advisor documents the way the repository does.
type advisorFinder struct {
	advisors []advisordomain.Advisor
	err      error
}

func (f advisorFinder) ListCandidates(_ context.Context, developmentID string) ([]ports.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []ports.Candidate
	for _, a := range f.advisors {
		a.ActiveInventoryIndex = advisordomain.ActiveIndex(a.Inventory)
		if a.IsAdvisor() && a.Covers(developmentID) {
			out = append(out, ports.Candidate{ID: a.ID, DisplayName: a.DisplayName, ScoreGlobal: a.ScoreGlobal, CloseRatePercent: a.Metrics.CloseRatePercent})
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func advisor(name string, score float64, devs ...string) advisordomain.Advisor {
	inv := make([]advisordomain.InventoryItem, 0, len(devs))
	for _, d := range devs {
		inv = append(inv, advisordomain.InventoryItem{DevelopmentID: d, Active: true})
	}
	return advisordomain.Advisor{ID: uuid.New(), DisplayName: name, Role: advisordomain.RoleAdvisor, Inventory: inv, ScoreGlobal: score}
}

func newLead(dev string, email string) domain.Lead {
	l := domain.Lead{ID: uuid.New(), DevelopmentID: dev, Status: domain.StatusPendingAssignment, History: []domain.HistoryEntry{}}
	if email != "" {
		l.Client.Email = &email
	}
	return l
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newEngine(store *fakeLeadStore, finder ports.CandidateFinder, pub Publisher, opts ...Option) *Engine {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(store, finder, pub, 5, nil, logger.Discard(), opts...)
}

func TestExampleScenarioInactiveInventoryIsNotCandidate(t *testing.T) {
	a := advisor("A", 80, "D1")
	b := advisordomain.Advisor{
		ID: uuid.New(), DisplayName: "B", Role: advisordomain.RoleAdvisor, ScoreGlobal: 95,
		Inventory: []advisordomain.InventoryItem{{DevelopmentID: "D1", Active: false}},
	}
	lead := newLead("D1", "")
	store := newFakeLeadStore(lead)

	out, err := newEngine(store, advisorFinder{advisors: []advisordomain.Advisor{a, b}}, nil).Route(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, ResultAssigned, out.Result)
	assert.Equal(t, a.ID, out.AdvisorID)

	got := store.get(lead.ID)
	require.Len(t, got.History, 1)
	assert.Equal(t, domain.StatusNew, got.History[0].Status)
	assert.Contains(t, got.History[0].Note, "auto")
	assert.Equal(t, domain.ActionAutoAssigned, got.History[0].Action)
	assert.Equal(t, domain.StatusNew, got.Status)
	assert.Equal(t, ReasonMerit, got.AssignmentReason)
	require.NotNil(t, got.AssignedAt)
	assert.Equal(t, fixedNow, *got.AssignedAt)
}

func TestRouteIsIdempotent(t *testing.T) {
	a := advisor("A", 80, "D1")
	lead := newLead("D1", "")
	store := newFakeLeadStore(lead)
	engine := newEngine(store, advisorFinder{advisors: []advisordomain.Advisor{a}}, nil)

	_, err := engine.Route(context.Background(), lead)
	require.NoError(t, err)
	first := store.get(lead.ID)

	// Redelivery of the creation snapshot and a call with the assigned lead.
	out, err := engine.Route(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, ResultSkipped, out.Result)

	out, err = engine.Route(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, ResultSkipped, out.Result)

	second := store.get(lead.ID)
	assert.Equal(t, first.AdvisorID, second.AdvisorID)
	assert.Len(t, second.History, len(first.History))
	assert.Equal(t, 1, store.writes)
}

func TestCoverageGateEscalatesOnce(t *testing.T) {
	lead := newLead("D9", "")
	store := newFakeLeadStore(lead)
	pub := &recordingPublisher{}
	engine := newEngine(store, advisorFinder{advisors: []advisordomain.Advisor{advisor("A", 80, "D1")}}, pub)

	out, err := engine.Route(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, ResultEscalated, out.Result)

	_, err = engine.Route(context.Background(), lead)
	require.NoError(t, err)

	got := store.get(lead.ID)
	assert.Equal(t, domain.StatusPendingAdmin, got.Status)
	assert.Nil(t, got.AdvisorID)
	require.Len(t, got.History, 1)
	assert.True(t, strings.Contains(got.History[0].Note, "no coverage"))
	assert.Equal(t, domain.ActionAssignmentError, got.History[0].Action)

	require.Len(t, pub.events, 1)
	escalated, ok := pub.events[0].(events.LeadEscalated)
	require.True(t, ok)
	assert.Equal(t, lead.ID, escalated.LeadID)
}

func TestLoyaltyBeatsScore(t *testing.T) {
	a := advisor("A", 10, "D1", "D2")
	b := advisor("B", 99, "D2")

	previous := newLead("D1", "client@example.com")
	previous.AdvisorID = &a.ID
	previous.Status = domain.StatusLost

	lead := newLead("D2", "  CLIENT@example.com")
	store := newFakeLeadStore(previous, lead)

	out, err := newEngine(store, advisorFinder{advisors: []advisordomain.Advisor{a, b}}, nil).Route(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, a.ID, out.AdvisorID)
	assert.Equal(t, ReasonLoyalty, out.Reason)
}

func TestLoyaltyIgnoresAdvisorsNoLongerCovering(t *testing.T) {
	a := advisor("A", 10, "D1")
	b := advisor("B", 50, "D2")

	previous := newLead("D1", "client@example.com")
	previous.AdvisorID = &a.ID
	lead := newLead("D2", "client@example.com")
	store := newFakeLeadStore(previous, lead)

	out, err := newEngine(store, advisorFinder{advisors: []advisordomain.Advisor{a, b}}, nil).Route(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, b.ID, out.AdvisorID)
	assert.Equal(t, ReasonMerit, out.Reason)
}

func TestMeritPicksStrictlyHighestScore(t *testing.T) {
	low := advisor("low", 60, "D1")
	high := advisor("high", 91.5, "D1")
	mid := advisor("mid", 91.4, "D1")
	lead := newLead("D1", "")
	store := newFakeLeadStore(lead)

	out, err := newEngine(store, advisorFinder{advisors: []advisordomain.Advisor{low, high, mid}}, nil).Route(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, high.ID, out.AdvisorID)
}

func TestMeritTieSelectsOneOfTheLeaders(t *testing.T) {
	a := advisor("A", 90, "D1")
	b := advisor("B", 90, "D1")
	c := advisor("C", 70, "D1")
	finder := advisorFinder{advisors: []advisordomain.Advisor{c, a, b}}

	seen := map[uuid.UUID]bool{}
	for i := 0; i < 40; i++ {
		lead := newLead("D1", "")
		store := newFakeLeadStore(lead)
		out, err := newEngine(store, finder, nil).Route(context.Background(), lead)
		require.NoError(t, err)
		require.Contains(t, []uuid.UUID{a.ID, b.ID}, out.AdvisorID)
		seen[out.AdvisorID] = true
	}
	assert.NotContains(t, seen, c.ID)
}

func TestMeritTieUsesPicker(t *testing.T) {
	a := advisor("A", 90, "D1")
	b := advisor("B", 90, "D1")
	lead := newLead("D1", "")
	store := newFakeLeadStore(lead)

	var gotN int
	picker := func(n int) int { gotN = n; return 1 }
	out, err := newEngine(store, advisorFinder{advisors: []advisordomain.Advisor{a, b}}, nil, WithPicker(picker)).Route(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, 2, gotN)
	assert.Equal(t, b.ID, out.AdvisorID)
}

func TestMeritBreaksScoreTieOnCloseRate(t *testing.T) {
	a := advisor("A", 90, "D1")
	a.Metrics.CloseRatePercent = 20
	b := advisor("B", 90, "D1")
	b.Metrics.CloseRatePercent = 45

	got := meritWinner([]ports.Candidate{
		{ID: a.ID, ScoreGlobal: 90, CloseRatePercent: 20},
		{ID: b.ID, ScoreGlobal: 90, CloseRatePercent: 45},
	}, func(int) int { t.Fatal("picker must not run without an exact tie"); return 0 })
	assert.Equal(t, b.ID, got.ID)
}

func TestHandleSwallowsErrorsAndIgnoresUpdates(t *testing.T) {
	lead := newLead("D1", "")
	store := newFakeLeadStore(lead)
	engine := newEngine(store, advisorFinder{err: errors.New("db down")}, nil)

	err := engine.Handle(context.Background(), events.LeadWritten{LeadID: lead.ID, After: lead})
	require.NoError(t, err)
	assert.Zero(t, store.writes)

	before := lead
	err = engine.Handle(context.Background(), events.LeadWritten{LeadID: lead.ID, Before: &before, After: lead})
	require.NoError(t, err)
	assert.Zero(t, store.writes)
}
