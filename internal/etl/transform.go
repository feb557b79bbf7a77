package etl

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/glendisraptor/analytics-connector/internal/source"
)

// Provenance columns stamped onto every loaded table.
const (
	ColSourceConnectionID = "_source_connection_id"
	ColSourceTable        = "_source_table"
	ColExtractedAt        = "_extracted_at"
)

// String tokens that are treated as null after trimming.
var nullTokens = map[string]struct{}{
	"":     {},
	"nan":  {},
	"None": {},
	"NULL": {},
}

// Date shapes worth attempting to coerce, with the layouts to try. Matching
// runs against a sample of non-null values; coercion is all-or-nothing per
// column and never fatal.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}`),
	regexp.MustCompile(`^\d{4}/\d{2}/\d{2}$`),
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
}

const dateSampleSize = 100

// Transform normalizes an extracted table in place and stamps the provenance
// columns. Provenance columns are appended last and are exempt from the
// column-wise normalizations.
func Transform(tbl *source.Table, connectionID, tableName string, extractedAt time.Time) *source.Table {
	for idx := range tbl.Columns {
		cleanColumn(tbl, idx)
	}
	dropEmptyRows(tbl)

	tbl.Columns = append(tbl.Columns,
		source.Column{Name: ColSourceConnectionID, Type: source.TypeText},
		source.Column{Name: ColSourceTable, Type: source.TypeText},
		source.Column{Name: ColExtractedAt, Type: source.TypeTimestamp},
	)
	for i, row := range tbl.Rows {
		tbl.Rows[i] = append(row, connectionID, tableName, extractedAt.UTC())
	}
	return tbl
}

func cleanColumn(tbl *source.Table, idx int) {
	switch tbl.Columns[idx].Type {
	case source.TypeText:
		cleanStrings(tbl, idx)
		coerceDates(tbl, idx)
	case source.TypeFloat:
		cleanFloats(tbl, idx)
	case source.TypeInt32, source.TypeInt64:
		normalizeIntWidth(tbl, idx)
	}
}

// cleanStrings trims surrounding whitespace and nulls out sentinel tokens.
// Non-string values in a text column (mixed-type sources) are stringified so
// the column loads uniformly.
func cleanStrings(tbl *source.Table, idx int) {
	for _, row := range tbl.Rows {
		if row[idx] == nil {
			continue
		}
		s, ok := row[idx].(string)
		if !ok {
			s = fmt.Sprint(row[idx])
		}
		s = strings.TrimSpace(s)
		if _, null := nullTokens[s]; null {
			row[idx] = nil
			continue
		}
		row[idx] = s
	}
}

// cleanFloats replaces non-finite values with the null sentinel.
func cleanFloats(tbl *source.Table, idx int) {
	for _, row := range tbl.Rows {
		f, ok := row[idx].(float64)
		if !ok {
			continue
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			row[idx] = nil
		}
	}
}

// normalizeIntWidth widens integer columns past the 32-bit signed range to
// 64-bit and narrows the rest.
func normalizeIntWidth(tbl *source.Table, idx int) {
	width := source.TypeInt32
	for _, row := range tbl.Rows {
		v, ok := row[idx].(int64)
		if !ok {
			continue
		}
		if v > math.MaxInt32 || v < math.MinInt32 {
			width = source.TypeInt64
			break
		}
	}
	tbl.Columns[idx].Type = width
}

// coerceDates converts a text column to timestamps when a sample of its
// non-null values looks date-shaped and every value parses. Any failure
// leaves the column untouched.
func coerceDates(tbl *source.Table, idx int) {
	sampled, matched := 0, false
	for _, row := range tbl.Rows {
		s, ok := row[idx].(string)
		if !ok {
			continue
		}
		if looksLikeDate(s) {
			matched = true
			break
		}
		sampled++
		if sampled >= dateSampleSize {
			break
		}
	}
	if !matched {
		return
	}

	parsed := make([]time.Time, len(tbl.Rows))
	for i, row := range tbl.Rows {
		if row[idx] == nil {
			continue
		}
		s, ok := row[idx].(string)
		if !ok {
			return
		}
		t, err := parseDate(s)
		if err != nil {
			return
		}
		parsed[i] = t
	}

	for i, row := range tbl.Rows {
		if row[idx] != nil {
			row[idx] = parsed[i]
		}
	}
	tbl.Columns[idx].Type = source.TypeTimestamp
}

func looksLikeDate(s string) bool {
	for _, pattern := range datePatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}

func parseDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// dropEmptyRows removes rows whose every value is null.
func dropEmptyRows(tbl *source.Table) {
	kept := tbl.Rows[:0]
	for _, row := range tbl.Rows {
		empty := true
		for _, v := range row {
			if v != nil {
				empty = false
				break
			}
		}
		if !empty {
			kept = append(kept, row)
		}
	}
	tbl.Rows = kept
}
