package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/glendisraptor/analytics-connector/internal/etl"
	"github.com/glendisraptor/analytics-connector/internal/models"
	"github.com/glendisraptor/analytics-connector/internal/repository"
	"github.com/glendisraptor/analytics-connector/internal/vault"
)

// ConnectionService is the registry for source connections: registration,
// credential updates, soft deletion and connectivity testing.
type ConnectionService struct {
	connections  repository.ConnectionRepository
	vault        *vault.Vault
	orchestrator *etl.Orchestrator
	logger       zerolog.Logger
}

func NewConnectionService(
	connections repository.ConnectionRepository,
	v *vault.Vault,
	orchestrator *etl.Orchestrator,
	logger zerolog.Logger,
) *ConnectionService {
	return &ConnectionService{
		connections:  connections,
		vault:        v,
		orchestrator: orchestrator,
		logger:       logger.With().Str("component", "connection_service").Logger(),
	}
}

type RegisterConnectionParams struct {
	Name          string
	SourceKind    models.SourceKind
	Credentials   vault.Credentials
	SyncFrequency models.SyncFrequency
}

// Register encrypts the credentials bundle and creates the connection in
// status pending. Nothing is tested yet.
func (s *ConnectionService) Register(ctx context.Context, params RegisterConnectionParams) (*models.Connection, error) {
	if params.Name == "" {
		return nil, errors.New("connection name is required")
	}
	if !params.SourceKind.Valid() {
		return nil, errors.Errorf("unsupported source kind: %s", params.SourceKind)
	}
	if params.SyncFrequency == "" {
		params.SyncFrequency = models.FrequencyDaily
	}
	if !params.SyncFrequency.Valid() {
		return nil, errors.Errorf("invalid sync frequency: %s", params.SyncFrequency)
	}

	blob, err := s.vault.Encrypt(params.Credentials)
	if err != nil {
		return nil, errors.Wrap(err, "encrypt credentials")
	}

	conn := &models.Connection{
		Name:                 params.Name,
		SourceKind:           params.SourceKind,
		EncryptedCredentials: blob,
		Status:               models.StatusPending,
		SyncFrequency:        params.SyncFrequency,
	}
	created, err := s.connections.Create(ctx, conn)
	if err != nil {
		return nil, errors.Wrap(err, "create connection")
	}
	s.logger.Info().Str("connection_id", created.ID).Str("source_kind", string(created.SourceKind)).
		Msg("Registered connection")
	return created, nil
}

type UpdateConnectionParams struct {
	Name          *string
	Credentials   *vault.Credentials
	SyncFrequency *models.SyncFrequency
}

// Update applies partial changes. A credentials change always resets the
// status to pending: a prior "connected" is not trustworthy against new
// credentials. The analytics_ready flag drops with it.
func (s *ConnectionService) Update(ctx context.Context, id string, params UpdateConnectionParams) (*models.Connection, error) {
	conn, err := s.connections.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		conn.Name = *params.Name
	}
	if params.SyncFrequency != nil {
		if !params.SyncFrequency.Valid() {
			return nil, errors.Errorf("invalid sync frequency: %s", *params.SyncFrequency)
		}
		conn.SyncFrequency = *params.SyncFrequency
	}
	if params.Credentials != nil {
		blob, err := s.vault.Encrypt(*params.Credentials)
		if err != nil {
			return nil, errors.Wrap(err, "encrypt credentials")
		}
		conn.EncryptedCredentials = blob
		conn.Status = models.StatusPending
		conn.AnalyticsReady = false
	}

	if err := s.connections.Update(ctx, conn); err != nil {
		return nil, errors.Wrap(err, "update connection")
	}
	return conn, nil
}

// Test runs a connectivity round-trip and resolves the connection status to
// connected or failed, stamping last_tested_at either way.
func (s *ConnectionService) Test(ctx context.Context, id string) (bool, error) {
	conn, err := s.connections.Get(ctx, id)
	if err != nil {
		return false, err
	}

	if err := s.connections.UpdateStatus(ctx, id, models.StatusTesting); err != nil {
		return false, errors.Wrap(err, "mark connection testing")
	}

	ok := s.orchestrator.Probe(ctx, conn)
	status := models.StatusConnected
	if !ok {
		status = models.StatusFailed
	}
	if err := s.connections.RecordTestResult(ctx, id, status, time.Now().UTC()); err != nil {
		return ok, errors.Wrap(err, "record test result")
	}

	s.logger.Info().Str("connection_id", id).Bool("success", ok).Msg("Tested connection")
	return ok, nil
}

func (s *ConnectionService) Get(ctx context.Context, id string) (*models.Connection, error) {
	return s.connections.Get(ctx, id)
}

func (s *ConnectionService) List(ctx context.Context) ([]*models.Connection, error) {
	return s.connections.List(ctx)
}

// Delete soft-disables the connection. Jobs and schedules referencing it stay
// in place; readers check is_active instead of depending on cascades.
func (s *ConnectionService) Delete(ctx context.Context, id string) error {
	if err := s.connections.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("connection_id", id).Msg("Disabled connection")
	return nil
}

// TableColumn describes one column of a source table for schema inspection.
type TableColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableSchema is the inspected shape of one source table.
type TableSchema struct {
	Name    string        `json:"name"`
	Columns []TableColumn `json:"columns"`
}

// GetSchema inspects the source's tables and column shapes by sampling one
// row per table through the adapter contract. Requires a connected source.
func (s *ConnectionService) GetSchema(ctx context.Context, id string) ([]TableSchema, error) {
	conn, err := s.connections.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if conn.Status != models.StatusConnected {
		return nil, ErrNotConnected
	}

	creds, err := s.vault.Decrypt(conn.EncryptedCredentials)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt credentials")
	}
	adapter, err := s.orchestrator.OpenAdapter(conn.SourceKind, creds)
	if err != nil {
		return nil, errors.Wrap(err, "open source")
	}
	defer adapter.Close()

	tables, err := adapter.ListTables(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list tables")
	}

	schemas := make([]TableSchema, 0, len(tables))
	for _, table := range tables {
		sample, err := adapter.ExtractTable(ctx, table, 1)
		if err != nil {
			s.logger.Warn().Err(err).Str("table", table).Msg("Failed to sample table for schema")
			continue
		}
		schema := TableSchema{Name: table}
		for _, col := range sample.Columns {
			schema.Columns = append(schema.Columns, TableColumn{Name: col.Name, Type: string(col.Type)})
		}
		schemas = append(schemas, schema)
	}
	return schemas, nil
}
