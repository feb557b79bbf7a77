package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/glendisraptor/analytics-connector/internal/models"
)

// JobFilter narrows ListJobs. Zero values mean "any".
type JobFilter struct {
	ConnectionID string
	Status       models.JobStatus
	Limit        int
}

type JobRepository interface {
	// Create inserts a pending job, rejecting the trigger with a
	// ConflictError while another job for the connection is pending or
	// running. The check is atomic with the insert.
	Create(ctx context.Context, connectionID string, jobType models.JobType) (*models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, filter JobFilter) ([]*models.Job, error)
	// ClaimNextPending moves the oldest pending job to running and stamps
	// started_at. Returns nil when nothing is pending.
	ClaimNextPending(ctx context.Context) (*models.Job, error)
	Complete(ctx context.Context, id string, recordsProcessed int64) error
	Fail(ctx context.Context, id string, errorMessage string) error
	ActiveJob(ctx context.Context, connectionID string) (*models.Job, error)
}

type jobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) JobRepository {
	return &jobRepository{db: db}
}

const jobColumns = `id, connection_id, status, job_type, records_processed, error_message,
	started_at, completed_at, created_at, updated_at`

// uniqueViolation is the postgres error code raised by the partial unique
// index on active jobs; it backstops the WHERE NOT EXISTS guard under
// concurrent triggers.
const uniqueViolation = "23505"

func (r *jobRepository) Create(ctx context.Context, connectionID string, jobType models.JobType) (*models.Job, error) {
	job := &models.Job{
		ConnectionID: connectionID,
		Status:       models.JobPending,
		JobType:      jobType,
	}
	const query = `
		INSERT INTO etl_jobs (connection_id, job_type, status)
		SELECT $1, $2, $3
		WHERE NOT EXISTS (
			SELECT 1 FROM etl_jobs
			WHERE connection_id = $1 AND status IN ($4, $5)
		)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		connectionID, jobType, models.JobPending, models.JobPending, models.JobRunning,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err == nil {
		return job, nil
	}

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return nil, r.conflict(ctx, connectionID)
	}
	if err == sql.ErrNoRows {
		return nil, r.conflict(ctx, connectionID)
	}
	return nil, err
}

func (r *jobRepository) conflict(ctx context.Context, connectionID string) error {
	conflict := &ConflictError{ConnectionID: connectionID}
	if existing, err := r.ActiveJob(ctx, connectionID); err == nil && existing != nil {
		conflict.ExistingJobID = existing.ID
	}
	return conflict
}

func (r *jobRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM etl_jobs WHERE id = $1`
	job := &models.Job{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &job.ConnectionID, &job.Status, &job.JobType, &job.RecordsProcessed,
		&job.ErrorMessage, &job.StartedAt, &job.CompletedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepository) List(ctx context.Context, filter JobFilter) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM etl_jobs WHERE 1=1`
	var args []any
	if filter.ConnectionID != "" {
		args = append(args, filter.ConnectionID)
		query += fmt.Sprintf(" AND connection_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += ` ORDER BY created_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job := &models.Job{}
		if err := rows.Scan(
			&job.ID, &job.ConnectionID, &job.Status, &job.JobType, &job.RecordsProcessed,
			&job.ErrorMessage, &job.StartedAt, &job.CompletedAt, &job.CreatedAt, &job.UpdatedAt,
		); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *jobRepository) ClaimNextPending(ctx context.Context) (*models.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const claim = `
		SELECT id FROM etl_jobs
		WHERE status = $1
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1`
	var id string
	if err := tx.QueryRowContext(ctx, claim, models.JobPending).Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	const start = `
		UPDATE etl_jobs
		SET status = $1, started_at = NOW(), updated_at = NOW()
		WHERE id = $2
		RETURNING ` + jobColumns
	job := &models.Job{}
	if err := tx.QueryRowContext(ctx, start, models.JobRunning, id).Scan(
		&job.ID, &job.ConnectionID, &job.Status, &job.JobType, &job.RecordsProcessed,
		&job.ErrorMessage, &job.StartedAt, &job.CompletedAt, &job.CreatedAt, &job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepository) Complete(ctx context.Context, id string, recordsProcessed int64) error {
	const query = `
		UPDATE etl_jobs
		SET status = $1, records_processed = $2, error_message = NULL,
		    completed_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, models.JobCompleted, recordsProcessed, id, models.JobRunning)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *jobRepository) Fail(ctx context.Context, id string, errorMessage string) error {
	const query = `
		UPDATE etl_jobs
		SET status = $1, error_message = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND status IN ($4, $5)`
	res, err := r.db.ExecContext(ctx, query, models.JobFailed, errorMessage, id, models.JobPending, models.JobRunning)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *jobRepository) ActiveJob(ctx context.Context, connectionID string) (*models.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM etl_jobs
		WHERE connection_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1`
	job := &models.Job{}
	err := r.db.QueryRowContext(ctx, query, connectionID, models.JobPending, models.JobRunning).Scan(
		&job.ID, &job.ConnectionID, &job.Status, &job.JobType, &job.RecordsProcessed,
		&job.ErrorMessage, &job.StartedAt, &job.CompletedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}
