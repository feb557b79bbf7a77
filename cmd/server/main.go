package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/glendisraptor/analytics-connector/internal/analytics"
	"github.com/glendisraptor/analytics-connector/internal/config"
	"github.com/glendisraptor/analytics-connector/internal/etl"
	"github.com/glendisraptor/analytics-connector/internal/migration"
	"github.com/glendisraptor/analytics-connector/internal/repository"
	"github.com/glendisraptor/analytics-connector/internal/scheduler"
	"github.com/glendisraptor/analytics-connector/internal/vault"
	"github.com/glendisraptor/analytics-connector/internal/worker"

	_ "github.com/lib/pq" // PostgreSQL driver
)

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	// Load configuration.
	cfg := config.Load()

	// Initialize the primary metadata store.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	if err := migration.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Initialize the analytics store.
	analyticsDB, err := sql.Open("postgres", cfg.AnalyticsDatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the analytics database")
	}
	defer analyticsDB.Close()
	if err := analyticsDB.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping analytics database")
	}

	store := analytics.NewStore(analyticsDB, logger)
	if err := store.EnsureMetadataTable(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("Failed to prepare analytics store")
	}

	// Credential vault, keyed from the environment.
	credVault, err := vault.New()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize credential vault")
	}

	// Repositories.
	connRepo := repository.NewConnectionRepository(db)
	jobRepo := repository.NewJobRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)

	orchestrator := etl.NewOrchestrator(connRepo, credVault, store, nil, cfg.Worker.IncrementalRowLimit, logger)
	notifier := analytics.NewLogNotifier(logger)

	etlWorker := worker.New(jobRepo, connRepo, orchestrator, notifier, cfg.Worker.PollInterval, logger)
	etlScheduler := scheduler.New(scheduleRepo, connRepo, jobRepo, cfg.Scheduler.PollInterval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		etlWorker.Start(ctx)
	}()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		etlScheduler.Start(ctx)
	}()

	// Wait for an interrupt signal, then drain both loops.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	cancel()
	<-workerDone
	<-schedulerDone

	logger.Info().Msg("Application terminated.")
}
