package service

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glendisraptor/analytics-connector/internal/etl"
	"github.com/glendisraptor/analytics-connector/internal/models"
	"github.com/glendisraptor/analytics-connector/internal/repository"
	"github.com/glendisraptor/analytics-connector/internal/source"
	"github.com/glendisraptor/analytics-connector/internal/vault"
)

type memConnRepo struct {
	repository.ConnectionRepository
	nextID    int
	conns     map[string]*models.Connection
	statusLog []models.ConnectionStatus
}

func newMemConnRepo() *memConnRepo {
	return &memConnRepo{conns: map[string]*models.Connection{}}
}

func (r *memConnRepo) Create(ctx context.Context, conn *models.Connection) (*models.Connection, error) {
	r.nextID++
	conn.ID = fmt.Sprintf("conn-%d", r.nextID)
	conn.IsActive = true
	conn.CreatedAt = time.Now().UTC()
	conn.UpdatedAt = conn.CreatedAt
	r.conns[conn.ID] = conn
	return conn, nil
}

func (r *memConnRepo) Get(ctx context.Context, id string) (*models.Connection, error) {
	conn, ok := r.conns[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *conn
	return &cp, nil
}

func (r *memConnRepo) Update(ctx context.Context, conn *models.Connection) error {
	stored, ok := r.conns[conn.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Name = conn.Name
	stored.EncryptedCredentials = conn.EncryptedCredentials
	stored.Status = conn.Status
	stored.SyncFrequency = conn.SyncFrequency
	stored.AnalyticsReady = conn.AnalyticsReady
	return nil
}

func (r *memConnRepo) UpdateStatus(ctx context.Context, id string, status models.ConnectionStatus) error {
	conn, ok := r.conns[id]
	if !ok {
		return repository.ErrNotFound
	}
	conn.Status = status
	r.statusLog = append(r.statusLog, status)
	return nil
}

func (r *memConnRepo) RecordTestResult(ctx context.Context, id string, status models.ConnectionStatus, testedAt time.Time) error {
	conn, ok := r.conns[id]
	if !ok {
		return repository.ErrNotFound
	}
	conn.Status = status
	conn.LastTestedAt = &testedAt
	r.statusLog = append(r.statusLog, status)
	return nil
}

func (r *memConnRepo) SoftDelete(ctx context.Context, id string) error {
	conn, ok := r.conns[id]
	if !ok || !conn.IsActive {
		return repository.ErrNotFound
	}
	conn.IsActive = false
	return nil
}

type probeAdapter struct {
	ok     bool
	tables map[string]*source.Table
}

func (a *probeAdapter) Test(ctx context.Context) bool { return a.ok }

func (a *probeAdapter) ListTables(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(a.tables))
	for name := range a.tables {
		names = append(names, name)
	}
	return names, nil
}

func (a *probeAdapter) ExtractTable(ctx context.Context, name string, limit int) (*source.Table, error) {
	tbl, ok := a.tables[name]
	if !ok {
		return nil, fmt.Errorf("no such table %q", name)
	}
	return tbl, nil
}

func (a *probeAdapter) Close() error { return nil }

func connServiceFixture(t *testing.T, adapter *probeAdapter) (*ConnectionService, *memConnRepo, *vault.Vault) {
	t.Helper()

	v, err := vault.NewWithKey(bytes.Repeat([]byte{0x19}, 32))
	require.NoError(t, err)

	repo := newMemConnRepo()
	open := func(kind models.SourceKind, creds vault.Credentials) (source.Adapter, error) {
		return adapter, nil
	}
	orch := etl.NewOrchestrator(repo, v, nil, open, 0, zerolog.Nop())
	return NewConnectionService(repo, v, orch, zerolog.Nop()), repo, v
}

func TestRegisterEncryptsAndDefaults(t *testing.T) {
	svc, repo, v := connServiceFixture(t, &probeAdapter{})

	created, err := svc.Register(context.Background(), RegisterConnectionParams{
		Name:        "prod replica",
		SourceKind:  models.SourcePostgres,
		Credentials: vault.Credentials{Host: "db", Password: "topsecret"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, models.FrequencyDaily, created.SyncFrequency, "frequency defaults to daily")
	assert.True(t, created.IsActive)
	assert.NotContains(t, string(created.EncryptedCredentials), "topsecret")

	stored := repo.conns[created.ID]
	creds, err := v.Decrypt(stored.EncryptedCredentials)
	require.NoError(t, err)
	assert.Equal(t, "topsecret", creds.Password)
}

func TestRegisterValidatesInput(t *testing.T) {
	svc, _, _ := connServiceFixture(t, &probeAdapter{})
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterConnectionParams{SourceKind: models.SourcePostgres})
	assert.Error(t, err, "name is required")

	_, err = svc.Register(ctx, RegisterConnectionParams{Name: "x", SourceKind: "oracle"})
	assert.Error(t, err, "unknown source kinds are rejected")

	_, err = svc.Register(ctx, RegisterConnectionParams{
		Name: "x", SourceKind: models.SourceMySQL, SyncFrequency: "fortnightly",
	})
	assert.Error(t, err, "unknown frequencies are rejected")
}

func TestUpdateCredentialsResetsStatus(t *testing.T) {
	svc, repo, v := connServiceFixture(t, &probeAdapter{})
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterConnectionParams{
		Name:        "prod replica",
		SourceKind:  models.SourcePostgres,
		Credentials: vault.Credentials{Password: "old"},
	})
	require.NoError(t, err)

	// Simulate a successful test and sync having happened.
	repo.conns[created.ID].Status = models.StatusConnected
	repo.conns[created.ID].AnalyticsReady = true

	updated, err := svc.Update(ctx, created.ID, UpdateConnectionParams{
		Credentials: &vault.Credentials{Password: "new"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, updated.Status, "new credentials invalidate the old test result")
	assert.False(t, updated.AnalyticsReady)

	creds, err := v.Decrypt(repo.conns[created.ID].EncryptedCredentials)
	require.NoError(t, err)
	assert.Equal(t, "new", creds.Password)
}

func TestUpdateWithoutCredentialsKeepsStatus(t *testing.T) {
	svc, repo, _ := connServiceFixture(t, &probeAdapter{})
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterConnectionParams{
		Name:       "prod replica",
		SourceKind: models.SourcePostgres,
	})
	require.NoError(t, err)
	repo.conns[created.ID].Status = models.StatusConnected

	weekly := models.FrequencyWeekly
	updated, err := svc.Update(ctx, created.ID, UpdateConnectionParams{SyncFrequency: &weekly})
	require.NoError(t, err)

	assert.Equal(t, models.StatusConnected, updated.Status)
	assert.Equal(t, models.FrequencyWeekly, updated.SyncFrequency)
}

func TestTestResolvesStatus(t *testing.T) {
	adapter := &probeAdapter{ok: true}
	svc, repo, _ := connServiceFixture(t, adapter)
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterConnectionParams{
		Name:       "prod replica",
		SourceKind: models.SourcePostgres,
	})
	require.NoError(t, err)

	ok, err := svc.Test(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []models.ConnectionStatus{models.StatusTesting, models.StatusConnected}, repo.statusLog)
	assert.NotNil(t, repo.conns[created.ID].LastTestedAt)

	adapter.ok = false
	ok, err = svc.Test(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.StatusFailed, repo.conns[created.ID].Status)
}

func TestDeleteSoftDisables(t *testing.T) {
	svc, repo, _ := connServiceFixture(t, &probeAdapter{})
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterConnectionParams{
		Name:       "prod replica",
		SourceKind: models.SourcePostgres,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.False(t, repo.conns[created.ID].IsActive)

	// A second delete finds nothing visible.
	assert.ErrorIs(t, svc.Delete(ctx, created.ID), repository.ErrNotFound)
}

func TestGetSchemaRequiresConnectedSource(t *testing.T) {
	svc, _, _ := connServiceFixture(t, &probeAdapter{})
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterConnectionParams{
		Name:       "prod replica",
		SourceKind: models.SourcePostgres,
	})
	require.NoError(t, err)

	_, err = svc.GetSchema(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestGetSchemaDescribesTables(t *testing.T) {
	adapter := &probeAdapter{tables: map[string]*source.Table{
		"users": {
			Name: "users",
			Columns: []source.Column{
				{Name: "id", Type: source.TypeInt64},
				{Name: "email", Type: source.TypeText},
			},
			Rows: [][]any{{int64(1), "a@example.com"}},
		},
	}}
	svc, repo, _ := connServiceFixture(t, adapter)
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterConnectionParams{
		Name:       "prod replica",
		SourceKind: models.SourcePostgres,
	})
	require.NoError(t, err)
	repo.conns[created.ID].Status = models.StatusConnected

	schemas, err := svc.GetSchema(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	assert.Equal(t, "users", schemas[0].Name)
	assert.Equal(t, []TableColumn{
		{Name: "id", Type: "int64"},
		{Name: "email", Type: "text"},
	}, schemas[0].Columns)
}
