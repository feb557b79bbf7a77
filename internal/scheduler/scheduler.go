package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/glendisraptor/analytics-connector/internal/models"
	"github.com/glendisraptor/analytics-connector/internal/repository"
)

// Scheduler polls for due schedules and requests scheduled_sync jobs through
// the job tracker's guarded creation path. It assumes a single active
// instance per deployment; the job guard deduplicates if that assumption is
// ever violated, at the cost of extra conflict rejections.
type Scheduler struct {
	schedules    repository.ScheduleRepository
	connections  repository.ConnectionRepository
	jobs         repository.JobRepository
	pollInterval time.Duration
	logger       zerolog.Logger
}

func New(
	schedules repository.ScheduleRepository,
	connections repository.ConnectionRepository,
	jobs repository.JobRepository,
	pollInterval time.Duration,
	logger zerolog.Logger,
) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	return &Scheduler{
		schedules:    schedules,
		connections:  connections,
		jobs:         jobs,
		pollInterval: pollInterval,
		logger:       logger.With().Str("component", "etl_scheduler").Logger(),
	}
}

// Start runs the poll loop until the context is cancelled. Per-schedule
// errors are logged and never kill the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info().Dur("poll_interval", s.pollInterval).Msg("Scheduler started")
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx, time.Now().UTC())
		}
	}
}

// Tick processes every due schedule once. Exported so tests can drive the
// scheduler without the ticker.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	due, err := s.schedules.ListDue(ctx, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list due schedules")
		return
	}

	for _, schedule := range due {
		s.processSchedule(ctx, schedule, now)
	}
}

func (s *Scheduler) processSchedule(ctx context.Context, schedule *models.Schedule, now time.Time) {
	logger := s.logger.With().
		Str("schedule_id", schedule.ID).
		Str("connection_id", schedule.ConnectionID).
		Logger()

	if s.connectionReady(ctx, schedule, logger) {
		_, err := s.jobs.Create(ctx, schedule.ConnectionID, models.JobTypeScheduledSync)
		switch {
		case err == nil:
			logger.Info().Msg("Triggered scheduled sync")
		case repository.IsConflict(err):
			// A job is already in flight; skip silently and advance the
			// schedule anyway so the next poll does not re-trigger.
			logger.Debug().Msg("Sync already in flight, skipping trigger")
		default:
			logger.Error().Err(err).Msg("Failed to create scheduled job")
		}
	}

	next, err := NextRun(schedule, now)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to compute next run, retrying in one hour")
		next = now.Add(time.Hour)
	}
	if err := s.schedules.MarkTriggered(ctx, schedule.ID, now, next); err != nil {
		logger.Error().Err(err).Msg("Failed to advance schedule")
		return
	}
	logger.Debug().Time("next_run", next).Msg("Schedule advanced")
}

// connectionReady verifies the owning connection is still active and
// connected before a scheduled trigger.
func (s *Scheduler) connectionReady(ctx context.Context, schedule *models.Schedule, logger zerolog.Logger) bool {
	conn, err := s.connections.Get(ctx, schedule.ConnectionID)
	if err != nil {
		logger.Warn().Err(err).Msg("Connection lookup failed for due schedule")
		return false
	}
	if !conn.IsActive || conn.Status != models.StatusConnected {
		logger.Debug().Str("status", string(conn.Status)).Bool("active", conn.IsActive).
			Msg("Connection not ready for scheduled sync")
		return false
	}
	return true
}
