package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glendisraptor/analytics-connector/internal/models"
	"github.com/glendisraptor/analytics-connector/internal/repository"
)

type stubScheduleRepo struct {
	repository.ScheduleRepository
	due       []*models.Schedule
	triggered map[string]time.Time // schedule id -> next_run stamped
}

func (r *stubScheduleRepo) ListDue(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	return r.due, nil
}

func (r *stubScheduleRepo) MarkTriggered(ctx context.Context, id string, lastRun, nextRun time.Time) error {
	if r.triggered == nil {
		r.triggered = map[string]time.Time{}
	}
	r.triggered[id] = nextRun
	return nil
}

type stubConnRepo struct {
	repository.ConnectionRepository
	conns map[string]*models.Connection
}

func (r *stubConnRepo) Get(ctx context.Context, id string) (*models.Connection, error) {
	conn, ok := r.conns[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return conn, nil
}

type stubJobRepo struct {
	repository.JobRepository
	created  []string // connection ids
	conflict bool
}

func (r *stubJobRepo) Create(ctx context.Context, connectionID string, jobType models.JobType) (*models.Job, error) {
	if r.conflict {
		return nil, &repository.ConflictError{ConnectionID: connectionID, ExistingJobID: "job-0"}
	}
	r.created = append(r.created, connectionID)
	return &models.Job{ID: "job-1", ConnectionID: connectionID, Status: models.JobPending, JobType: jobType}, nil
}

func dueSchedule(id, connID string) *models.Schedule {
	return &models.Schedule{
		ID:            id,
		ConnectionID:  connID,
		Frequency:     models.FrequencyDaily,
		ScheduledTime: "02:00",
		IsActive:      true,
	}
}

func connectedConn(id string) *models.Connection {
	return &models.Connection{ID: id, Status: models.StatusConnected, IsActive: true}
}

func TestTickTriggersDueSchedule(t *testing.T) {
	schedules := &stubScheduleRepo{due: []*models.Schedule{dueSchedule("sched-1", "conn-1")}}
	conns := &stubConnRepo{conns: map[string]*models.Connection{"conn-1": connectedConn("conn-1")}}
	jobs := &stubJobRepo{}
	s := New(schedules, conns, jobs, time.Minute, zerolog.Nop())

	now := time.Date(2026, 8, 28, 3, 0, 0, 0, time.UTC)
	s.Tick(context.Background(), now)

	assert.Equal(t, []string{"conn-1"}, jobs.created)
	next, ok := schedules.triggered["sched-1"]
	require.True(t, ok, "schedule must be advanced")
	assert.Equal(t, time.Date(2026, 8, 29, 2, 0, 0, 0, time.UTC), next)
}

func TestTickAdvancesScheduleOnConflict(t *testing.T) {
	schedules := &stubScheduleRepo{due: []*models.Schedule{dueSchedule("sched-1", "conn-1")}}
	conns := &stubConnRepo{conns: map[string]*models.Connection{"conn-1": connectedConn("conn-1")}}
	jobs := &stubJobRepo{conflict: true}
	s := New(schedules, conns, jobs, time.Minute, zerolog.Nop())

	s.Tick(context.Background(), time.Date(2026, 8, 28, 3, 0, 0, 0, time.UTC))

	assert.Empty(t, jobs.created)
	_, ok := schedules.triggered["sched-1"]
	assert.True(t, ok, "a conflicting trigger still advances next_run")
}

func TestTickSkipsUnreadyConnections(t *testing.T) {
	notConnected := connectedConn("conn-1")
	notConnected.Status = models.StatusPending
	disabled := connectedConn("conn-2")
	disabled.IsActive = false

	schedules := &stubScheduleRepo{due: []*models.Schedule{
		dueSchedule("sched-1", "conn-1"),
		dueSchedule("sched-2", "conn-2"),
		dueSchedule("sched-3", "conn-3"), // connection missing entirely
	}}
	conns := &stubConnRepo{conns: map[string]*models.Connection{
		"conn-1": notConnected,
		"conn-2": disabled,
	}}
	jobs := &stubJobRepo{}
	s := New(schedules, conns, jobs, time.Minute, zerolog.Nop())

	s.Tick(context.Background(), time.Date(2026, 8, 28, 3, 0, 0, 0, time.UTC))

	assert.Empty(t, jobs.created)
	// Every due schedule advances regardless, so unready connections do not
	// pin their schedules to the past.
	assert.Len(t, schedules.triggered, 3)
}

func TestTickFallsBackOnBrokenSchedule(t *testing.T) {
	broken := dueSchedule("sched-1", "conn-1")
	broken.ScheduledTime = "not a time"

	schedules := &stubScheduleRepo{due: []*models.Schedule{broken}}
	conns := &stubConnRepo{conns: map[string]*models.Connection{"conn-1": connectedConn("conn-1")}}
	jobs := &stubJobRepo{}
	s := New(schedules, conns, jobs, time.Minute, zerolog.Nop())

	now := time.Date(2026, 8, 28, 3, 0, 0, 0, time.UTC)
	s.Tick(context.Background(), now)

	next, ok := schedules.triggered["sched-1"]
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Hour), next, "unparseable schedules retry in an hour")
}
