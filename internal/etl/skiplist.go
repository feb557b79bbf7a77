package etl

import "strings"

// Administrative and system tables are excluded from processing before the
// transform stage ever sees them.
var skipExact = map[string]struct{}{
	"alembic_version":       {},
	"goose_db_version":      {},
	"schema_migrations":     {},
	"django_migrations":     {},
	"flyway_schema_history": {},
}

var skipPrefixes = []string{
	"pg_",
	"sqlite_",
	"sys_",
	"information_schema",
	"_", // internal tables, including our own provenance helpers
}

// ShouldSkipTable reports whether a source table is administrative/system
// bookkeeping that must not be replicated into the analytics store.
func ShouldSkipTable(name string) bool {
	lower := strings.ToLower(name)
	if _, ok := skipExact[lower]; ok {
		return true
	}
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
