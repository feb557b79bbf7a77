package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/glendisraptor/analytics-connector/internal/models"
	"github.com/glendisraptor/analytics-connector/internal/repository"
	"github.com/glendisraptor/analytics-connector/internal/scheduler"
)

// Schedule defaults for connections that never configured one.
const (
	defaultScheduledTime = "02:00"
)

// ScheduleService manages the one-per-connection sync schedules.
type ScheduleService struct {
	schedules   repository.ScheduleRepository
	connections repository.ConnectionRepository
	logger      zerolog.Logger
}

func NewScheduleService(
	schedules repository.ScheduleRepository,
	connections repository.ConnectionRepository,
	logger zerolog.Logger,
) *ScheduleService {
	return &ScheduleService{
		schedules:   schedules,
		connections: connections,
		logger:      logger.With().Str("component", "schedule_service").Logger(),
	}
}

// GetOrCreate returns the connection's schedule, creating the default one
// (daily at 02:00, active, next_run initialized) on first access.
func (s *ScheduleService) GetOrCreate(ctx context.Context, connectionID string) (*models.Schedule, error) {
	conn, err := s.connections.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	existing, err := s.schedules.GetByConnection(ctx, connectionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	schedule := &models.Schedule{
		ConnectionID:  connectionID,
		Frequency:     conn.SyncFrequency,
		ScheduledTime: defaultScheduledTime,
		IsActive:      true,
	}
	next, err := scheduler.NextRun(schedule, time.Now().UTC())
	if err != nil {
		return nil, errors.Wrap(err, "initialize next run")
	}
	schedule.NextRunAt = &next

	created, err := s.schedules.Create(ctx, schedule)
	if err != nil {
		return nil, errors.Wrap(err, "create schedule")
	}
	s.logger.Info().Str("connection_id", connectionID).Str("frequency", string(created.Frequency)).
		Msg("Created default schedule")
	return created, nil
}

type UpdateScheduleParams struct {
	Frequency     *models.SyncFrequency
	ScheduledTime *string
	DaysOfWeek    *string
	DayOfMonth    *int
	IsActive      *bool
}

// Update applies partial changes to a connection's schedule. Cadence or
// anchor changes recompute next_run so the new configuration takes effect
// immediately rather than after the stale next_run passes.
func (s *ScheduleService) Update(ctx context.Context, connectionID string, params UpdateScheduleParams) (*models.Schedule, error) {
	schedule, err := s.schedules.GetByConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	recompute := false
	if params.Frequency != nil {
		if !params.Frequency.Valid() {
			return nil, errors.Errorf("invalid frequency: %s", *params.Frequency)
		}
		schedule.Frequency = *params.Frequency
		recompute = true
	}
	if params.ScheduledTime != nil {
		schedule.ScheduledTime = *params.ScheduledTime
		if _, _, err := schedule.AnchorTime(); err != nil {
			return nil, err
		}
		recompute = true
	}
	if params.DaysOfWeek != nil {
		schedule.DaysOfWeek = params.DaysOfWeek
		recompute = true
	}
	if params.DayOfMonth != nil {
		if *params.DayOfMonth < 1 || *params.DayOfMonth > 31 {
			return nil, errors.Errorf("day_of_month %d out of range", *params.DayOfMonth)
		}
		schedule.DayOfMonth = params.DayOfMonth
		recompute = true
	}
	if params.IsActive != nil {
		schedule.IsActive = *params.IsActive
	}

	if recompute {
		next, err := scheduler.NextRun(schedule, time.Now().UTC())
		if err != nil {
			return nil, errors.Wrap(err, "recompute next run")
		}
		schedule.NextRunAt = &next
	}

	if err := s.schedules.Update(ctx, schedule); err != nil {
		return nil, errors.Wrap(err, "update schedule")
	}
	return schedule, nil
}
