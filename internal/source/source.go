package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/glendisraptor/analytics-connector/internal/models"
	"github.com/glendisraptor/analytics-connector/internal/vault"
)

// ColumnType is the normalized type of an extracted column.
type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeInt32     ColumnType = "int32"
	TypeInt64     ColumnType = "int64"
	TypeFloat     ColumnType = "float"
	TypeBool      ColumnType = "bool"
	TypeTimestamp ColumnType = "timestamp"
)

type Column struct {
	Name string
	Type ColumnType
}

// Table is the tabular result of extracting one source table or collection.
// Row values are nil, string, int64, float64, bool or time.Time.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

func (t *Table) Empty() bool {
	return len(t.Rows) == 0
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Adapter is the per-source-kind connector. Test reports connectivity and
// never returns an error; transport and auth failures come back as false so
// one unreachable source cannot abort a sync sweep. ExtractTable with
// limit <= 0 returns the full table.
type Adapter interface {
	Test(ctx context.Context) bool
	ListTables(ctx context.Context) ([]string, error)
	ExtractTable(ctx context.Context, name string, limit int) (*Table, error)
	Close() error
}

// Open builds the adapter for a source kind from a decrypted credentials
// bundle. Unknown kinds are a compile-time-checked addition here, not a
// string match at call sites.
func Open(kind models.SourceKind, creds vault.Credentials) (Adapter, error) {
	switch kind {
	case models.SourcePostgres:
		return openPostgres(creds)
	case models.SourceMySQL:
		return openMySQL(creds)
	case models.SourceMongoDB:
		return openMongo(creds)
	case models.SourceSQLite:
		return openSQLite(creds)
	default:
		return nil, fmt.Errorf("unsupported source kind: %s", kind)
	}
}

// extractSQL runs SELECT * against one table and materializes the rows.
// Shared by the database/sql backed adapters; quote is the adapter's
// identifier quoting rule.
func extractSQL(ctx context.Context, db *sql.DB, quote func(string) string, table string, limit int) (*Table, error) {
	query := fmt.Sprintf("SELECT * FROM %s", quote(table))
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var data [][]any
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		data = append(data, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Table{Name: table, Columns: inferColumns(names, data), Rows: data}, nil
}

// inferColumns derives a column type from the observed values. The first
// non-nil value decides; a mix of integers and floats widens to float, any
// other mix falls back to text.
func inferColumns(names []string, rows [][]any) []Column {
	cols := make([]Column, len(names))
	for i, name := range names {
		cols[i] = Column{Name: name, Type: columnTypeOf(rows, i)}
	}
	return cols
}

func columnTypeOf(rows [][]any, idx int) ColumnType {
	inferred := ColumnType("")
	for _, row := range rows {
		v := row[idx]
		if v == nil {
			continue
		}
		var t ColumnType
		switch v.(type) {
		case int, int32, int64:
			t = TypeInt64
		case float32, float64:
			t = TypeFloat
		case bool:
			t = TypeBool
		case time.Time:
			t = TypeTimestamp
		default:
			t = TypeText
		}
		switch {
		case inferred == "":
			inferred = t
		case inferred == t:
		case (inferred == TypeInt64 && t == TypeFloat) || (inferred == TypeFloat && t == TypeInt64):
			inferred = TypeFloat
		default:
			return TypeText
		}
	}
	if inferred == "" {
		return TypeText
	}
	return inferred
}
