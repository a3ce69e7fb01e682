package management

import (
	"context"
	"testing"
	"time"

	"lead_routing_backend/internal/leads/domain"
	"lead_routing_backend/internal/leads/repository"
	"lead_routing_backend/internal/leads/transport"
	"lead_routing_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	created  []repository.CreateParams
	updates  []repository.UpdateStatusParams
	schedule []repository.ScheduleParams
	leads    map[uuid.UUID]domain.Lead
	listed   repository.ListParams
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{leads: map[uuid.UUID]domain.Lead{}}
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	l, ok := f.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	return l, nil
}

func (f *fakeRepo) List(_ context.Context, params repository.ListParams) ([]domain.Lead, error) {
	f.listed = params
	return nil, nil
}

func (f *fakeRepo) Create(_ context.Context, p repository.CreateParams) (domain.Lead, error) {
	f.created = append(f.created, p)
	lead := domain.Lead{
		ID:            uuid.New(),
		Client:        domain.Client{Name: p.ClientName, Email: p.ClientEmail, Phone: p.ClientPhone},
		DevelopmentID: p.DevelopmentID,
		Status:        p.Status,
	}
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, p repository.UpdateStatusParams) (domain.Lead, error) {
	l, ok := f.leads[p.LeadID]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	f.updates = append(f.updates, p)
	l.Status = p.Status
	return l, nil
}

func (f *fakeRepo) ScheduleAppointment(_ context.Context, p repository.ScheduleParams) (domain.Lead, error) {
	l, ok := f.leads[p.LeadID]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	f.schedule = append(f.schedule, p)
	l.TrackingEventID = &p.TrackingEventID
	l.Status = domain.StatusVisitScheduled
	return l, nil
}

func TestCreate_NormalizesIntake(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, "US")

	resp, err := svc.Create(context.Background(), transport.CreateLeadRequest{
		Name:          "  Ana   <b>Lopez</b> ",
		Email:         " Ana@Example.com ",
		Phone:         "(650) 253-0000",
		DevelopmentID: " D1 ",
	}, transport.RequestContext{ClientIP: "203.0.113.7"})
	require.NoError(t, err)

	require.Len(t, repo.created, 1)
	p := repo.created[0]
	assert.Equal(t, "Ana Lopez", p.ClientName)
	assert.Equal(t, "ana@example.com", *p.ClientEmail)
	assert.Equal(t, "+16502530000", *p.ClientPhone)
	assert.Equal(t, "D1", p.DevelopmentID)
	assert.Equal(t, domain.StatusPendingAssignment, p.Status)
	assert.Equal(t, "203.0.113.7", *p.ClientIP)
	assert.Nil(t, p.UserAgent)
	assert.Equal(t, domain.StatusPendingAssignment, resp.Status)
}

func TestCreate_RequiresContact(t *testing.T) {
	svc := New(newFakeRepo(), "MX")

	_, err := svc.Create(context.Background(), transport.CreateLeadRequest{Name: "Ana", DevelopmentID: "D1"}, transport.RequestContext{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, "MX")
	lead, _ := repo.Create(context.Background(), repository.CreateParams{ClientName: "Ana", Status: domain.StatusNew})

	_, err := svc.UpdateStatus(context.Background(), lead.ID, transport.UpdateStatusRequest{Status: "archived"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, repo.updates)
}

func TestUpdateStatus_NormalizesAndCarriesAnnotations(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, "MX")
	lead, _ := repo.Create(context.Background(), repository.CreateParams{ClientName: "Ana", Status: domain.StatusNew})
	reason := " client called back "

	resp, err := svc.UpdateStatus(context.Background(), lead.ID, transport.UpdateStatusRequest{Status: "Visit-Scheduled", Reason: &reason})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVisitScheduled, resp.Status)
	require.Len(t, repo.updates, 1)
	assert.Equal(t, "client called back", *repo.updates[0].Reason)
	assert.Nil(t, repo.updates[0].ChangedBy)
}

func TestNotFoundMapsToAppError(t *testing.T) {
	svc := New(newFakeRepo(), "MX")

	_, err := svc.GetByID(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.ScheduleAppointment(context.Background(), uuid.New(), transport.ScheduleAppointmentRequest{
		TrackingEventID: "evt-1",
		AppointmentAt:   time.Now(),
	})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestList_ParsesFilters(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, "MX")
	advisorID := uuid.New()

	_, err := svc.List(context.Background(), transport.ListLeadsRequest{Status: "won", AdvisorID: advisorID.String()})
	require.NoError(t, err)
	assert.Equal(t, defaultListLimit, repo.listed.Limit)
	assert.Equal(t, domain.StatusWon, *repo.listed.Status)
	assert.Equal(t, advisorID, *repo.listed.AdvisorID)
}
