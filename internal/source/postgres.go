package source

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/lib/pq"

	"github.com/glendisraptor/analytics-connector/internal/vault"
)

type postgresAdapter struct {
	db *sql.DB
}

func openPostgres(creds vault.Credentials) (Adapter, error) {
	port := creds.Port
	if port == 0 {
		port = 5432
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(creds.Username, creds.Password),
		Host:   fmt.Sprintf("%s:%d", creds.Host, port),
		Path:   "/" + creds.Database,
	}
	q := dsn.Query()
	if creds.Extras["sslmode"] != "" {
		q.Set("sslmode", creds.Extras["sslmode"])
	} else {
		q.Set("sslmode", "disable")
	}
	dsn.RawQuery = q.Encode()

	db, err := sql.Open("postgres", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("open postgres source: %w", err)
	}
	return &postgresAdapter{db: db}, nil
}

func (a *postgresAdapter) Test(ctx context.Context) bool {
	var one int
	return a.db.QueryRowContext(ctx, "SELECT 1").Scan(&one) == nil
}

func (a *postgresAdapter) ListTables(ctx context.Context) ([]string, error) {
	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	rows, err := a.db.QueryContext(ctx, query)
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

func (a *postgresAdapter) ExtractTable(ctx context.Context, name string, limit int) (*Table, error) {
	return extractSQL(ctx, a.db, quoteDouble, name, limit)
}

func (a *postgresAdapter) Close() error {
	return a.db.Close()
}

func quoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
