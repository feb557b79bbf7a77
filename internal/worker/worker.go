package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/glendisraptor/analytics-connector/internal/analytics"
	"github.com/glendisraptor/analytics-connector/internal/etl"
	"github.com/glendisraptor/analytics-connector/internal/models"
	"github.com/glendisraptor/analytics-connector/internal/repository"
)

// Worker is the execution side of the job tracker: it owns the queue of
// pending jobs and is the only mutator of a job once that job is claimed.
// Claims use FOR UPDATE SKIP LOCKED, so multiple workers never double-run a
// job.
type Worker struct {
	jobs         repository.JobRepository
	connections  repository.ConnectionRepository
	orchestrator *etl.Orchestrator
	notifier     analytics.Notifier
	pollInterval time.Duration
	logger       zerolog.Logger
}

func New(
	jobs repository.JobRepository,
	connections repository.ConnectionRepository,
	orchestrator *etl.Orchestrator,
	notifier analytics.Notifier,
	pollInterval time.Duration,
	logger zerolog.Logger,
) *Worker {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Worker{
		jobs:         jobs,
		connections:  connections,
		orchestrator: orchestrator,
		notifier:     notifier,
		pollInterval: pollInterval,
		logger:       logger.With().Str("component", "etl_worker").Logger(),
	}
}

// Start runs the poll loop until the context is cancelled. Job failures are
// recorded on the job, never returned out of the loop.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info().Dur("poll_interval", w.pollInterval).Msg("Worker started, polling for jobs")
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Worker stopped")
			return ctx.Err()
		case <-ticker.C:
			w.drainPending(ctx)
		}
	}
}

// drainPending claims and runs jobs until the queue is empty. Jobs for
// different connections run back to back on this worker; the one-active-job
// guard already serializes work per connection at creation time.
func (w *Worker) drainPending(ctx context.Context) {
	for {
		job, err := w.jobs.ClaimNextPending(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("Failed to claim pending job")
			return
		}
		if job == nil {
			return
		}
		w.run(ctx, job)
	}
}

func (w *Worker) run(ctx context.Context, job *models.Job) {
	logger := w.logger.With().
		Str("job_id", job.ID).
		Str("connection_id", job.ConnectionID).
		Str("job_type", string(job.JobType)).
		Logger()
	logger.Info().Msg("Running ETL job")

	if job.JobType == models.JobTypeTest {
		w.runProbe(ctx, job, logger)
		return
	}

	result, err := w.orchestrator.Run(ctx, job.ConnectionID, job.JobType)
	if err != nil {
		logger.Error().Err(err).Msg("ETL job failed")
		if ferr := w.jobs.Fail(ctx, job.ID, err.Error()); ferr != nil {
			logger.Error().Err(ferr).Msg("Failed to record job failure")
		}
		return
	}

	if err := w.jobs.Complete(ctx, job.ID, result.RecordsProcessed); err != nil {
		logger.Error().Err(err).Msg("Failed to record job completion")
		return
	}
	logger.Info().
		Int64("records_processed", result.RecordsProcessed).
		Int("tables_synced", len(result.TablesSynced)).
		Msg("ETL job completed")

	w.notifyDownstream(ctx, job.ConnectionID, result, logger)
}

// runProbe handles jobs of kind "test": a connectivity round-trip with no
// data movement.
func (w *Worker) runProbe(ctx context.Context, job *models.Job, logger zerolog.Logger) {
	conn, err := w.connections.Get(ctx, job.ConnectionID)
	if err != nil {
		w.jobs.Fail(ctx, job.ID, err.Error())
		return
	}
	if !w.orchestrator.Probe(ctx, conn) {
		w.jobs.Fail(ctx, job.ID, fmt.Sprintf("connectivity test failed for %s source", conn.SourceKind))
		return
	}
	if err := w.jobs.Complete(ctx, job.ID, 0); err != nil {
		logger.Error().Err(err).Msg("Failed to record probe completion")
	}
}

// notifyDownstream tells the visualization collaborator about the finished
// run and flips analytics_ready once the notification lands. Notification
// failures do not affect the job outcome.
func (w *Worker) notifyDownstream(ctx context.Context, connectionID string, result etl.Result, logger zerolog.Logger) {
	if w.notifier == nil || len(result.TablesSynced) == 0 {
		return
	}
	if err := w.notifier.SyncCompleted(ctx, connectionID, result.TablesSynced, result.RecordsProcessed); err != nil {
		logger.Warn().Err(err).Msg("Downstream sync notification failed")
		return
	}
	if err := w.connections.SetAnalyticsReady(ctx, connectionID); err != nil {
		// Not connected anymore, or already gone; the flag stays unset.
		logger.Debug().Err(err).Msg("Skipped analytics_ready flag")
	}
}
