package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/glendisraptor/analytics-connector/internal/vault"
)

type mysqlAdapter struct {
	db *sql.DB
}

func openMySQL(creds vault.Credentials) (Adapter, error) {
	port := creds.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = creds.Username
	cfg.Passwd = creds.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", creds.Host, port)
	cfg.DBName = creds.Database
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql source: %w", err)
	}
	return &mysqlAdapter{db: db}, nil
}

func (a *mysqlAdapter) Test(ctx context.Context) bool {
	var one int
	return a.db.QueryRowContext(ctx, "SELECT 1").Scan(&one) == nil
}

func (a *mysqlAdapter) ListTables(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, "SHOW TABLES")
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

func (a *mysqlAdapter) ExtractTable(ctx context.Context, name string, limit int) (*Table, error) {
	return extractSQL(ctx, a.db, quoteBacktick, name, limit)
}

func (a *mysqlAdapter) Close() error {
	return a.db.Close()
}

func quoteBacktick(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
