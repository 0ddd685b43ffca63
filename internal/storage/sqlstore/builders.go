package sqlstore

import (
	"fmt"
	"strings"

	"github.com/donlluque/bbdd-txt-to-mysql/internal/storage"
)

// The builders in this file are pure (no DB, no clocks) so dialects and their
// tests can compose them freely.

// ColumnList renders "a, b, c" with each column quoted. prefix, when set, is
// written before every column (e.g. "v.").
func ColumnList(d Dialect, prefix string, columns []string) string {
	var b strings.Builder
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(prefix)
		b.WriteString(d.Quote(c))
	}
	return b.String()
}

// ValuesList renders "(p1, p2), (p3, p4)" for rows x columns placeholders,
// numbered row-major from 1.
func ValuesList(d Dialect, rows, columns int) string {
	var b strings.Builder
	p := 1
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := 0; j < columns; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(p))
			p++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// BuildInsertSQL renders a plain multi-row INSERT for req.
func BuildInsertSQL(d Dialect, req storage.WriteRequest) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.QuoteTable(req.Table))
	b.WriteString(" (")
	b.WriteString(ColumnList(d, "", req.Columns))
	b.WriteString(") VALUES ")
	b.WriteString(ValuesList(d, len(req.Rows), len(req.Columns)))
	return b.String()
}

// BuildCountSQL renders SELECT COUNT(*) ... WHERE key IN (...) for keys.
func BuildCountSQL(d Dialect, table, keyColumn string, keys []any) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT COUNT(*) FROM ")
	b.WriteString(d.QuoteTable(table))
	b.WriteString(" WHERE ")
	b.WriteString(d.Quote(keyColumn))
	b.WriteString(" IN (")
	for i := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.Placeholder(i + 1))
	}
	b.WriteString(")")
	return b.String(), append([]any(nil), keys...)
}

// ColumnDefs renders column definitions for spec. typeSQL maps a semantic
// type to the store's type; keyClause is appended to the primary key column
// (e.g. "NOT NULL PRIMARY KEY") and may be empty when the caller adds a
// table-level constraint instead.
func ColumnDefs(d Dialect, spec storage.TableSpec, typeSQL func(storage.ColumnType, int) string, keyClause string) string {
	var b strings.Builder
	for i, c := range spec.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.Quote(c.Name))
		b.WriteByte(' ')
		b.WriteString(typeSQL(c.Type, spec.Width()))
		if c.Name == spec.PrimaryKey && keyClause != "" {
			b.WriteByte(' ')
			b.WriteString(keyClause)
		}
	}
	return b.String()
}

// ClassifyByPrefix returns Integer when the lower-cased dbType starts with one
// of the integer type names, otherwise Text.
func ClassifyByPrefix(dbType string, integerTypes ...string) storage.ColumnType {
	t := strings.ToLower(strings.TrimSpace(dbType))
	for _, it := range integerTypes {
		if strings.HasPrefix(t, it) {
			return storage.Integer
		}
	}
	return storage.Text
}

// UnsupportedModeError reports a write mode a dialect cannot render.
func UnsupportedModeError(d Dialect, m storage.WriteMode) error {
	return fmt.Errorf("%s: unsupported write mode %s", d.Name(), m)
}
