package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/glendisraptor/analytics-connector/internal/models"
)

type ScheduleRepository interface {
	Create(ctx context.Context, schedule *models.Schedule) (*models.Schedule, error)
	GetByConnection(ctx context.Context, connectionID string) (*models.Schedule, error)
	Update(ctx context.Context, schedule *models.Schedule) error
	// ListDue returns active schedules whose next_run_at is unset or has
	// passed.
	ListDue(ctx context.Context, now time.Time) ([]*models.Schedule, error)
	// MarkTriggered stamps last_run_at and advances next_run_at after a poll
	// tick handled the schedule, whether or not a job was actually created.
	MarkTriggered(ctx context.Context, id string, lastRun, nextRun time.Time) error
}

type scheduleRepository struct {
	db *sql.DB
}

func NewScheduleRepository(db *sql.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

const scheduleColumns = `id, connection_id, frequency, scheduled_time, days_of_week, day_of_month,
	is_active, last_run_at, next_run_at, created_at, updated_at`

func (r *scheduleRepository) Create(ctx context.Context, schedule *models.Schedule) (*models.Schedule, error) {
	const query = `
		INSERT INTO etl_schedules (connection_id, frequency, scheduled_time, days_of_week, day_of_month, is_active, next_run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		schedule.ConnectionID, schedule.Frequency, schedule.ScheduledTime,
		schedule.DaysOfWeek, schedule.DayOfMonth, schedule.IsActive, schedule.NextRunAt,
	).Scan(&schedule.ID, &schedule.CreatedAt, &schedule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return schedule, nil
}

func (r *scheduleRepository) GetByConnection(ctx context.Context, connectionID string) (*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM etl_schedules WHERE connection_id = $1`
	schedule := &models.Schedule{}
	err := r.db.QueryRowContext(ctx, query, connectionID).Scan(
		&schedule.ID, &schedule.ConnectionID, &schedule.Frequency, &schedule.ScheduledTime,
		&schedule.DaysOfWeek, &schedule.DayOfMonth, &schedule.IsActive,
		&schedule.LastRunAt, &schedule.NextRunAt, &schedule.CreatedAt, &schedule.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return schedule, nil
}

func (r *scheduleRepository) Update(ctx context.Context, schedule *models.Schedule) error {
	const query = `
		UPDATE etl_schedules
		SET frequency = $1, scheduled_time = $2, days_of_week = $3, day_of_month = $4,
		    is_active = $5, next_run_at = $6, updated_at = NOW()
		WHERE id = $7`
	res, err := r.db.ExecContext(ctx, query,
		schedule.Frequency, schedule.ScheduledTime, schedule.DaysOfWeek, schedule.DayOfMonth,
		schedule.IsActive, schedule.NextRunAt, schedule.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *scheduleRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM etl_schedules
		WHERE is_active AND (next_run_at IS NULL OR next_run_at <= $1)
		ORDER BY next_run_at ASC NULLS FIRST`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []*models.Schedule
	for rows.Next() {
		schedule := &models.Schedule{}
		if err := rows.Scan(
			&schedule.ID, &schedule.ConnectionID, &schedule.Frequency, &schedule.ScheduledTime,
			&schedule.DaysOfWeek, &schedule.DayOfMonth, &schedule.IsActive,
			&schedule.LastRunAt, &schedule.NextRunAt, &schedule.CreatedAt, &schedule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

func (r *scheduleRepository) MarkTriggered(ctx context.Context, id string, lastRun, nextRun time.Time) error {
	const query = `
		UPDATE etl_schedules
		SET last_run_at = $1, next_run_at = $2, updated_at = NOW()
		WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, lastRun, nextRun, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
