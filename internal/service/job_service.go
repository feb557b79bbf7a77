package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/glendisraptor/analytics-connector/internal/analytics"
	"github.com/glendisraptor/analytics-connector/internal/models"
	"github.com/glendisraptor/analytics-connector/internal/repository"
)

// ErrNotConnected rejects operations that need a tested, connected source.
var ErrNotConnected = errors.New("connection must be tested and connected first")

// JobService is the trigger side of the job tracker: it admits new jobs
// through the guarded creation path and exposes job records for observation.
type JobService struct {
	jobs        repository.JobRepository
	connections repository.ConnectionRepository
	store       *analytics.Store
	logger      zerolog.Logger
}

func NewJobService(
	jobs repository.JobRepository,
	connections repository.ConnectionRepository,
	store *analytics.Store,
	logger zerolog.Logger,
) *JobService {
	return &JobService{
		jobs:        jobs,
		connections: connections,
		store:       store,
		logger:      logger.With().Str("component", "job_service").Logger(),
	}
}

// Trigger requests a new job for a connection. The duplicate check is atomic
// with job creation; a second trigger while one is in flight comes back as a
// repository.ConflictError naming the existing job.
func (s *JobService) Trigger(ctx context.Context, connectionID string, jobType models.JobType) (*models.Job, error) {
	if jobType == "" {
		jobType = models.JobTypeManualSync
	}
	if !jobType.Valid() {
		return nil, errors.Errorf("invalid job type: %s", jobType)
	}

	conn, err := s.connections.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if !conn.IsActive {
		return nil, repository.ErrNotFound
	}
	// Connectivity probes are allowed from any status; data syncs need a
	// connected source.
	if jobType != models.JobTypeTest && conn.Status != models.StatusConnected {
		return nil, ErrNotConnected
	}

	job, err := s.jobs.Create(ctx, connectionID, jobType)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("job_id", job.ID).Str("connection_id", connectionID).
		Str("job_type", string(jobType)).Msg("Job queued")
	return job, nil
}

func (s *JobService) Get(ctx context.Context, jobID string) (*models.Job, error) {
	return s.jobs.Get(ctx, jobID)
}

func (s *JobService) List(ctx context.Context, filter repository.JobFilter) ([]*models.Job, error) {
	return s.jobs.List(ctx, filter)
}

// ListAnalyticsTables returns the derived table names synced for a
// connection, read from the analytics store's sync metadata. This is the
// surface the visualization collaborator consumes.
func (s *JobService) ListAnalyticsTables(ctx context.Context, connectionID string) ([]string, error) {
	return s.store.ListTables(ctx, connectionID)
}
