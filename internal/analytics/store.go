package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/glendisraptor/analytics-connector/internal/source"
)

// insertBatchSize bounds the number of rows per INSERT so the parameter
// count stays well under the postgres wire limit.
const insertBatchSize = 500

// Store writes cleaned tables into the analytics database with full-refresh
// semantics and keeps the sync_metadata bookkeeping table current.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "analytics_store").Logger(),
	}
}

// EnsureMetadataTable creates the shared sync_metadata table. Called once at
// startup; the per-connection data tables are created per load.
func (s *Store) EnsureMetadataTable(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS sync_metadata (
			connection_id   TEXT        NOT NULL,
			source_table    TEXT        NOT NULL,
			analytics_table TEXT        NOT NULL,
			synced_at       TIMESTAMPTZ NOT NULL,
			row_count       BIGINT      NOT NULL,
			PRIMARY KEY (connection_id, source_table)
		)`
	_, err := s.db.ExecContext(ctx, ddl)
	return errors.Wrap(err, "ensure sync_metadata")
}

// Load replaces the destination table's contents with tbl and upserts the
// sync_metadata row. Write failures propagate so the orchestrator can record
// them against the table.
func (s *Store) Load(ctx context.Context, tbl *source.Table, connectionID, sourceTable string) (int64, error) {
	name := TableName(connectionID, sourceTable)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin load transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdent(name))); err != nil {
		return 0, errors.Wrapf(err, "drop %s", name)
	}
	if _, err := tx.ExecContext(ctx, createTableDDL(name, tbl.Columns)); err != nil {
		return 0, errors.Wrapf(err, "create %s", name)
	}

	for start := 0; start < len(tbl.Rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(tbl.Rows) {
			end = len(tbl.Rows)
		}
		if err := insertBatch(ctx, tx, name, tbl.Columns, tbl.Rows[start:end]); err != nil {
			return 0, errors.Wrapf(err, "insert into %s", name)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrapf(err, "commit load of %s", name)
	}

	rowCount := int64(len(tbl.Rows))
	if err := s.upsertSyncMetadata(ctx, connectionID, sourceTable, name, rowCount); err != nil {
		return 0, err
	}

	s.logger.Info().
		Str("analytics_table", name).
		Int64("rows", rowCount).
		Msg("Loaded table into analytics store")
	return rowCount, nil
}

func (s *Store) upsertSyncMetadata(ctx context.Context, connectionID, sourceTable, analyticsTable string, rowCount int64) error {
	const query = `
		INSERT INTO sync_metadata (connection_id, source_table, analytics_table, synced_at, row_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (connection_id, source_table)
		DO UPDATE SET analytics_table = EXCLUDED.analytics_table,
		              synced_at       = EXCLUDED.synced_at,
		              row_count       = EXCLUDED.row_count`
	_, err := s.db.ExecContext(ctx, query, connectionID, sourceTable, analyticsTable, time.Now().UTC(), rowCount)
	return errors.Wrap(err, "upsert sync_metadata")
}

// ListTables returns the derived analytics table names recorded for a
// connection. This is the surface the visualization collaborator reads.
func (s *Store) ListTables(ctx context.Context, connectionID string) ([]string, error) {
	const query = `
		SELECT analytics_table
		FROM sync_metadata
		WHERE connection_id = $1
		ORDER BY analytics_table`
	rows, err := s.db.QueryContext(ctx, query, connectionID)
	if err != nil {
		return nil, errors.Wrap(err, "list analytics tables")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

var identSanitizer = regexp.MustCompile(`[^a-z0-9_]+`)

// TableName derives the analytics-store table name for a (connection, source
// table) pair: conn_<connectionId>_<sourceTableName>, sanitized to a plain
// identifier.
func TableName(connectionID, sourceTable string) string {
	raw := fmt.Sprintf("conn_%s_%s", connectionID, sourceTable)
	return identSanitizer.ReplaceAllString(strings.ToLower(raw), "_")
}

func createTableDDL(name string, cols []source.Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = fmt.Sprintf("%s %s", quoteIdent(c.Name), sqlType(c.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
}

func sqlType(t source.ColumnType) string {
	switch t {
	case source.TypeInt32:
		return "INTEGER"
	case source.TypeInt64:
		return "BIGINT"
	case source.TypeFloat:
		return "DOUBLE PRECISION"
	case source.TypeBool:
		return "BOOLEAN"
	case source.TypeTimestamp:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

func insertBatch(ctx context.Context, tx *sql.Tx, name string, cols []source.Column, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	colNames := make([]string, len(cols))
	for i, c := range cols {
		colNames[i] = quoteIdent(c.Name)
	}

	var (
		placeholders = make([]string, 0, len(rows))
		args         = make([]any, 0, len(rows)*len(cols))
		n            = 1
	)
	for _, row := range rows {
		ph := make([]string, len(cols))
		for i := range cols {
			ph[i] = fmt.Sprintf("$%d", n)
			args = append(args, row[i])
			n++
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		quoteIdent(name), strings.Join(colNames, ", "), strings.Join(placeholders, ", "))
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
