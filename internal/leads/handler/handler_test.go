package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lead_routing_backend/internal/leads/conversion"
	"lead_routing_backend/internal/leads/domain"
	"lead_routing_backend/internal/leads/management"
	"lead_routing_backend/internal/leads/ports"
	"lead_routing_backend/internal/leads/repository"
	"lead_routing_backend/platform/logger"
	"lead_routing_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	leads   map[uuid.UUID]domain.Lead
	created []repository.CreateParams
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	l, ok := m.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	return l, nil
}

func (m *memRepo) List(context.Context, repository.ListParams) ([]domain.Lead, error) {
	out := make([]domain.Lead, 0, len(m.leads))
	for _, l := range m.leads {
		out = append(out, l)
	}
	return out, nil
}

func (m *memRepo) Create(_ context.Context, p repository.CreateParams) (domain.Lead, error) {
	m.created = append(m.created, p)
	l := domain.Lead{ID: uuid.New(), Client: domain.Client{Name: p.ClientName}, DevelopmentID: p.DevelopmentID, Status: p.Status}
	m.leads[l.ID] = l
	return l, nil
}

func (m *memRepo) UpdateStatus(_ context.Context, p repository.UpdateStatusParams) (domain.Lead, error) {
	l, ok := m.leads[p.LeadID]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	l.Status = p.Status
	m.leads[l.ID] = l
	return l, nil
}

func (m *memRepo) ScheduleAppointment(_ context.Context, p repository.ScheduleParams) (domain.Lead, error) {
	l, ok := m.leads[p.LeadID]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	l.Status = domain.StatusVisitScheduled
	m.leads[l.ID] = l
	return l, nil
}

type recordingTracker struct {
	events []ports.TrackingEvent
}

func (r *recordingTracker) SendEvent(_ context.Context, ev ports.TrackingEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func setup(t *testing.T) (*gin.Engine, *memRepo) {
	engine, repo, _ := setupWithTracking(t, nil)
	return engine, repo
}

func setupWithTracking(t *testing.T, tracking ports.TrackingService) (*gin.Engine, *memRepo, *conversion.Reporter) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := &memRepo{leads: map[uuid.UUID]domain.Lead{}}
	signals := conversion.NewReporter(tracking, conversion.Settings{PhoneRegion: "MX"}, nil, logger.Discard())
	h := New(management.New(repo, "US"), signals, validator.New())

	engine := gin.New()
	h.RegisterPublicRoutes(engine.Group("/public/leads"))
	h.RegisterRoutes(engine.Group("/leads"))
	return engine, repo, signals
}

func do(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestCreate_CapturesRequestContext(t *testing.T) {
	engine, repo := setup(t)

	rec := do(engine, http.MethodPost, "/public/leads", `{"name":"Ana Lopez","email":"ana@example.com","developmentId":"Torre Norte"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Len(t, repo.created, 1)
	require.NotNil(t, repo.created[0].ClientIP)
	assert.Equal(t, "203.0.113.7", *repo.created[0].ClientIP)
	assert.Equal(t, domain.StatusPendingAssignment, repo.created[0].Status)
}

func TestCreate_ValidationErrors(t *testing.T) {
	engine, repo := setup(t)

	rec := do(engine, http.MethodPost, "/public/leads", `{"name":"A","developmentId":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, msgValidationFailed, body.Error)
	assert.Equal(t, "min", body.Details["name"])
	assert.Empty(t, repo.created)
}

func TestCreate_RequiresContactChannel(t *testing.T) {
	engine, _ := setup(t)

	rec := do(engine, http.MethodPost, "/public/leads", `{"name":"Ana Lopez","developmentId":"torre"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "email or phone is required")
}

func TestGetByID(t *testing.T) {
	engine, repo := setup(t)
	id := uuid.New()
	repo.leads[id] = domain.Lead{ID: id, Status: domain.StatusNew}

	rec := do(engine, http.MethodGet, "/leads/"+id.String(), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(engine, http.MethodGet, "/leads/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(engine, http.MethodGet, "/leads/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateStatus(t *testing.T) {
	engine, repo := setup(t)
	id := uuid.New()
	repo.leads[id] = domain.Lead{ID: id, Status: domain.StatusNew}

	rec := do(engine, http.MethodPatch, "/leads/"+id.String()+"/status", `{"status":"WON"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.StatusWon, repo.leads[id].Status)

	rec = do(engine, http.MethodPatch, "/leads/"+id.String()+"/status", `{"status":"archived"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.StatusWon, repo.leads[id].Status)
}

func TestReportSignal_ForwardsContactWithRequestContext(t *testing.T) {
	tracker := &recordingTracker{}
	engine, repo, _ := setupWithTracking(t, tracker)

	rec := do(engine, http.MethodPost, "/public/leads/signals",
		`{"event":"Contact","eventId":"evt-1","name":"Ana Lopez","email":"Ana@Example.com","developmentName":"Torre Norte"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"sent":true}`, rec.Body.String())

	require.Len(t, tracker.events, 1)
	ev := tracker.events[0]
	assert.Equal(t, conversion.EventContact, ev.Name)
	assert.Equal(t, "evt-1", ev.EventID)
	assert.Equal(t, "203.0.113.7", ev.UserData.ClientIP)
	assert.Equal(t, "ana@example.com", ev.UserData.Email)
	assert.Equal(t, "lopez", ev.UserData.LastName)
	assert.Empty(t, repo.created)
}

func TestReportSignal_RejectsOtherEvents(t *testing.T) {
	tracker := &recordingTracker{}
	engine, _, _ := setupWithTracking(t, tracker)

	rec := do(engine, http.MethodPost, "/public/leads/signals", `{"event":"Schedule","eventId":"evt-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(engine, http.MethodPost, "/public/leads/signals", `{"event":"ViewContent"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, tracker.events)
}

func TestReportSignal_TrackingDisabled(t *testing.T) {
	engine, _ := setup(t)

	rec := do(engine, http.MethodPost, "/public/leads/signals", `{"event":"ViewContent","eventId":"evt-2"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"sent":false}`, rec.Body.String())
}
