package source

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glendisraptor/analytics-connector/internal/models"
	"github.com/glendisraptor/analytics-connector/internal/vault"
)

// seedSQLite builds a throwaway database file with a small known dataset.
func seedSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT, score REAL)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, total REAL)`,
		`INSERT INTO users (id, email, score) VALUES (1, 'a@example.com', 1.5)`,
		`INSERT INTO users (id, email, score) VALUES (2, 'b@example.com', NULL)`,
		`INSERT INTO users (id, email, score) VALUES (3, NULL, 3.25)`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return path
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := Open(models.SourceSQLite, vault.Credentials{})
	assert.Error(t, err)
}

func TestOpenRejectsUnknownKind(t *testing.T) {
	_, err := Open("oracle", vault.Credentials{})
	assert.Error(t, err)
}

func TestSQLiteAdapter(t *testing.T) {
	path := seedSQLite(t)
	adapter, err := Open(models.SourceSQLite, vault.Credentials{Database: path})
	require.NoError(t, err)
	defer adapter.Close()
	ctx := context.Background()

	assert.True(t, adapter.Test(ctx))

	tables, err := adapter.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, tables)

	tbl, err := adapter.ExtractTable(ctx, "users", 0)
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 3)
	require.Len(t, tbl.Columns, 3)

	assert.Equal(t, "id", tbl.Columns[0].Name)
	assert.Equal(t, TypeInt64, tbl.Columns[0].Type)
	assert.Equal(t, TypeText, tbl.Columns[1].Type)
	assert.Equal(t, TypeFloat, tbl.Columns[2].Type)

	assert.Equal(t, int64(1), tbl.Rows[0][0])
	assert.Equal(t, "a@example.com", tbl.Rows[0][1])
	assert.Equal(t, 1.5, tbl.Rows[0][2])
	assert.Nil(t, tbl.Rows[1][2])
	assert.Nil(t, tbl.Rows[2][1])
}

func TestSQLiteExtractHonorsLimit(t *testing.T) {
	path := seedSQLite(t)
	adapter, err := Open(models.SourceSQLite, vault.Credentials{Database: path})
	require.NoError(t, err)
	defer adapter.Close()

	tbl, err := adapter.ExtractTable(context.Background(), "users", 2)
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 2)
}

func TestSQLiteExtractUnknownTable(t *testing.T) {
	path := seedSQLite(t)
	adapter, err := Open(models.SourceSQLite, vault.Credentials{Database: path})
	require.NoError(t, err)
	defer adapter.Close()

	_, err = adapter.ExtractTable(context.Background(), "missing", 0)
	assert.Error(t, err)
}

func TestSQLiteEmptyTable(t *testing.T) {
	path := seedSQLite(t)
	adapter, err := Open(models.SourceSQLite, vault.Credentials{Database: path})
	require.NoError(t, err)
	defer adapter.Close()

	tbl, err := adapter.ExtractTable(context.Background(), "orders", 0)
	require.NoError(t, err)
	assert.True(t, tbl.Empty())
	// Column shapes survive even with no rows to infer from.
	require.Len(t, tbl.Columns, 2)
	assert.Equal(t, TypeText, tbl.Columns[0].Type)
}
