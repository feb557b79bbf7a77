package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/glendisraptor/analytics-connector/internal/models"
)

type ConnectionRepository interface {
	Create(ctx context.Context, conn *models.Connection) (*models.Connection, error)
	Get(ctx context.Context, id string) (*models.Connection, error)
	List(ctx context.Context) ([]*models.Connection, error)
	Update(ctx context.Context, conn *models.Connection) error
	UpdateStatus(ctx context.Context, id string, status models.ConnectionStatus) error
	RecordTestResult(ctx context.Context, id string, status models.ConnectionStatus, testedAt time.Time) error
	MarkSynced(ctx context.Context, id string, syncedAt time.Time) error
	SetAnalyticsReady(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
}

type connectionRepository struct {
	db *sql.DB
}

func NewConnectionRepository(db *sql.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

const connectionColumns = `id, name, source_kind, encrypted_credentials, status, last_tested_at,
	last_sync_at, analytics_ready, is_active, sync_frequency, created_at, updated_at`

func (r *connectionRepository) Create(ctx context.Context, conn *models.Connection) (*models.Connection, error) {
	const query = `
		INSERT INTO connections (name, source_kind, encrypted_credentials, status, sync_frequency, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, is_active, analytics_ready, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		conn.Name, conn.SourceKind, conn.EncryptedCredentials, conn.Status, conn.SyncFrequency,
	).Scan(&conn.ID, &conn.IsActive, &conn.AnalyticsReady, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (r *connectionRepository) Get(ctx context.Context, id string) (*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`
	conn := &models.Connection{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&conn.ID, &conn.Name, &conn.SourceKind, &conn.EncryptedCredentials, &conn.Status,
		&conn.LastTestedAt, &conn.LastSyncAt, &conn.AnalyticsReady, &conn.IsActive,
		&conn.SyncFrequency, &conn.CreatedAt, &conn.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (r *connectionRepository) List(ctx context.Context) ([]*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE is_active ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var connections []*models.Connection
	for rows.Next() {
		conn := &models.Connection{}
		if err := rows.Scan(
			&conn.ID, &conn.Name, &conn.SourceKind, &conn.EncryptedCredentials, &conn.Status,
			&conn.LastTestedAt, &conn.LastSyncAt, &conn.AnalyticsReady, &conn.IsActive,
			&conn.SyncFrequency, &conn.CreatedAt, &conn.UpdatedAt,
		); err != nil {
			return nil, err
		}
		connections = append(connections, conn)
	}
	return connections, rows.Err()
}

func (r *connectionRepository) Update(ctx context.Context, conn *models.Connection) error {
	const query = `
		UPDATE connections
		SET name = $1, encrypted_credentials = $2, status = $3, sync_frequency = $4,
		    analytics_ready = $5, updated_at = NOW()
		WHERE id = $6`
	res, err := r.db.ExecContext(ctx, query,
		conn.Name, conn.EncryptedCredentials, conn.Status, conn.SyncFrequency, conn.AnalyticsReady, conn.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *connectionRepository) UpdateStatus(ctx context.Context, id string, status models.ConnectionStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE connections SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *connectionRepository) RecordTestResult(ctx context.Context, id string, status models.ConnectionStatus, testedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE connections SET status = $1, last_tested_at = $2, updated_at = NOW() WHERE id = $3`,
		status, testedAt, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *connectionRepository) MarkSynced(ctx context.Context, id string, syncedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE connections SET last_sync_at = $1, updated_at = NOW() WHERE id = $2`, syncedAt, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetAnalyticsReady flips the flag only while the connection is connected;
// anything else is a no-op reported as ErrNotFound.
func (r *connectionRepository) SetAnalyticsReady(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE connections SET analytics_ready = TRUE, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, models.StatusConnected)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SoftDelete deactivates the connection. Jobs and schedules keep their rows;
// readers filter on is_active instead of relying on storage cascades.
func (r *connectionRepository) SoftDelete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE connections SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
