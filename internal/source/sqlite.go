package source

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/glendisraptor/analytics-connector/internal/vault"
)

// sqliteAdapter covers the embedded-file store kind. The credentials bundle
// carries the database file path in the database field.
type sqliteAdapter struct {
	db *sql.DB
}

func openSQLite(creds vault.Credentials) (Adapter, error) {
	if creds.Database == "" {
		return nil, fmt.Errorf("sqlite source requires a database path")
	}
	db, err := sql.Open("sqlite3", creds.Database)
	if err != nil {
		return nil, fmt.Errorf("open sqlite source: %w", err)
	}
	return &sqliteAdapter{db: db}, nil
}

func (a *sqliteAdapter) Test(ctx context.Context) bool {
	var one int
	return a.db.QueryRowContext(ctx, "SELECT 1").Scan(&one) == nil
}

func (a *sqliteAdapter) ListTables(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
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

func (a *sqliteAdapter) ExtractTable(ctx context.Context, name string, limit int) (*Table, error) {
	return extractSQL(ctx, a.db, quoteDouble, name, limit)
}

func (a *sqliteAdapter) Close() error {
	return a.db.Close()
}
