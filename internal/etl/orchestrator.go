package etl

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/glendisraptor/analytics-connector/internal/models"
	"github.com/glendisraptor/analytics-connector/internal/repository"
	"github.com/glendisraptor/analytics-connector/internal/source"
	"github.com/glendisraptor/analytics-connector/internal/vault"
)

// DefaultIncrementalRowLimit caps per-table extraction for non-full job
// kinds. This is sampling, not change-data-capture; there is no watermark.
const DefaultIncrementalRowLimit = 1000

// TableLoader writes one cleaned table into the analytics store, returning
// the number of rows loaded.
type TableLoader interface {
	Load(ctx context.Context, tbl *source.Table, connectionID, sourceTable string) (int64, error)
}

// AdapterOpener builds a source adapter from a kind and decrypted
// credentials. Tests substitute fakes here.
type AdapterOpener func(kind models.SourceKind, creds vault.Credentials) (source.Adapter, error)

// Result summarizes one orchestration run.
type Result struct {
	RecordsProcessed int64
	TablesSynced     []string
}

// Orchestrator composes adapter, transform and load across all tables of one
// connection. Failures are fatal only before the per-table sweep begins;
// inside the sweep a bad table is logged and skipped.
type Orchestrator struct {
	connections repository.ConnectionRepository
	vault       *vault.Vault
	loader      TableLoader
	open        AdapterOpener
	rowLimit    int
	logger      zerolog.Logger
}

func NewOrchestrator(
	connections repository.ConnectionRepository,
	v *vault.Vault,
	loader TableLoader,
	open AdapterOpener,
	rowLimit int,
	logger zerolog.Logger,
) *Orchestrator {
	if open == nil {
		open = source.Open
	}
	if rowLimit <= 0 {
		rowLimit = DefaultIncrementalRowLimit
	}
	return &Orchestrator{
		connections: connections,
		vault:       v,
		loader:      loader,
		open:        open,
		rowLimit:    rowLimit,
		logger:      logger.With().Str("component", "etl_orchestrator").Logger(),
	}
}

// Run executes one ETL sweep for a connection and returns the sum of rows
// loaded across its tables.
func (o *Orchestrator) Run(ctx context.Context, connectionID string, jobType models.JobType) (Result, error) {
	logger := o.logger.With().
		Str("run_id", uuid.NewString()).
		Str("connection_id", connectionID).
		Logger()

	conn, err := o.connections.Get(ctx, connectionID)
	if err != nil {
		return Result{}, errors.Wrapf(err, "connection %s", connectionID)
	}
	if !conn.IsActive {
		return Result{}, errors.Errorf("connection %s is disabled", connectionID)
	}

	creds, err := o.vault.Decrypt(conn.EncryptedCredentials)
	if err != nil {
		return Result{}, errors.Wrapf(err, "decrypt credentials for connection %s", connectionID)
	}

	adapter, err := o.open(conn.SourceKind, creds)
	if err != nil {
		return Result{}, errors.Wrapf(err, "open %s source", conn.SourceKind)
	}
	defer adapter.Close()

	tables, err := adapter.ListTables(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "list source tables")
	}

	limit := 0
	if !jobType.FullExtract() {
		limit = o.rowLimit
	}

	var result Result
	for _, table := range tables {
		if ShouldSkipTable(table) {
			logger.Debug().Str("table", table).Msg("Skipping system table")
			continue
		}

		rows, loaded, err := o.processTable(ctx, adapter, conn, table, limit)
		if err != nil {
			// One bad table must not abort the sweep.
			logger.Error().Err(err).Str("table", table).Msg("Failed to process table")
			continue
		}
		if !loaded {
			continue // empty table, skipped without error
		}
		result.RecordsProcessed += rows
		result.TablesSynced = append(result.TablesSynced, table)
		logger.Info().Str("table", table).Int64("rows", rows).Msg("Processed table")
	}

	if err := o.connections.MarkSynced(ctx, connectionID, time.Now().UTC()); err != nil {
		logger.Error().Err(err).Msg("Failed to stamp last sync time")
	}

	return result, nil
}

// processTable runs extract -> transform -> load for one table. loaded is
// false when the extraction came back empty and the table was skipped.
func (o *Orchestrator) processTable(ctx context.Context, adapter source.Adapter, conn *models.Connection, table string, limit int) (rows int64, loaded bool, err error) {
	tbl, err := adapter.ExtractTable(ctx, table, limit)
	if err != nil {
		return 0, false, errors.Wrap(err, "extract")
	}
	if tbl.Empty() {
		return 0, false, nil
	}

	Transform(tbl, conn.ID, table, time.Now().UTC())

	rows, err = o.loader.Load(ctx, tbl, conn.ID, table)
	if err != nil {
		return 0, false, errors.Wrap(err, "load")
	}
	return rows, true, nil
}

// OpenAdapter exposes the orchestrator's adapter factory so the registry can
// inspect sources with the same wiring (and the same test fakes).
func (o *Orchestrator) OpenAdapter(kind models.SourceKind, creds vault.Credentials) (source.Adapter, error) {
	return o.open(kind, creds)
}

// Probe runs a connectivity test with the connection's stored credentials.
// Used for jobs of kind "test" and by the registry's test operation.
func (o *Orchestrator) Probe(ctx context.Context, conn *models.Connection) bool {
	creds, err := o.vault.Decrypt(conn.EncryptedCredentials)
	if err != nil {
		o.logger.Error().Err(err).Str("connection_id", conn.ID).Msg("Failed to decrypt credentials for probe")
		return false
	}
	adapter, err := o.open(conn.SourceKind, creds)
	if err != nil {
		o.logger.Warn().Err(err).Str("connection_id", conn.ID).Msg("Failed to open source for probe")
		return false
	}
	defer adapter.Close()
	return adapter.Test(ctx)
}
