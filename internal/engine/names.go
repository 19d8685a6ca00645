package engine

import (
	"strings"
	"unicode"
)

// Archive rows carry camelCase field names while the database uses
// snake_case columns. The two conversions below are total inverses for the
// identifier shapes this schema uses (ASCII, no digit-led segments).

func camelToSnake(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func snakeToCamel(name string) string {
	parts := strings.Split(name, "_")
	var b strings.Builder
	b.Grow(len(name))
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// RowToColumns translates a row's field names to column names for
// insertion. Adapters call this at the port boundary.
func RowToColumns(r Row) map[string]any {
	out := make(map[string]any, len(r))
	for field, v := range r {
		out[camelToSnake(field)] = v
	}
	return out
}

// ColumnsToRow translates a scanned record's column names to field names.
func ColumnsToRow(cols map[string]any) Row {
	out := make(Row, len(cols))
	for col, v := range cols {
		out[snakeToCamel(col)] = v
	}
	return out
}
