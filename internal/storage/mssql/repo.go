package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/donlluque/bbdd-txt-to-mysql/internal/storage"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/storage/sqlstore"
)

// Dialect renders SQL Server T-SQL for sqlstore.
//
// Upsert semantics:
//   - MERGE is avoided. Each statement batch runs an UPDATE joined to a VALUES
//     derived table, then an INSERT ... SELECT ... WHERE NOT EXISTS over the
//     same VALUES list. Both statements reference the same @pN parameters, so
//     the rows are bound once.
//   - The source rows must not repeat a key; the loader collapses duplicates
//     before writing.
//
// Parameter limit:
//   - SQL Server accepts at most 2100 parameters per request. MaxParams stays
//     just under it so sqlstore chunks rows accordingly.
type Dialect struct{}

func init() {
	storage.Register("mssql", New)
}

// New opens a SQL Server pool with the "sqlserver" driver from go-mssqldb.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	return sqlstore.Open(ctx, "sqlserver", cfg.DSN, Dialect{}, func(db *sql.DB) {
		// Conservative defaults for ETL-style bursty loads.
		db.SetMaxOpenConns(64)
		db.SetMaxIdleConns(64)
	})
}

func (Dialect) Name() string { return "mssql" }

// Quote returns a bracket-quoted identifier, escaping ']' as ']]'.
func (Dialect) Quote(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// QuoteTable returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.imports" -> [dbo].[imports]
func (d Dialect) QuoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = d.Quote(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

func (Dialect) MaxParams() int { return 2000 }

// CreateTableSQL wraps CREATE TABLE in an OBJECT_ID guard.
func (d Dialect) CreateTableSQL(spec storage.TableSpec) (string, error) {
	defs := sqlstore.ColumnDefs(d, spec, columnTypeSQL, "NOT NULL PRIMARY KEY")
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		escapeLiteral(d.QuoteTable(spec.Name)),
		d.QuoteTable(spec.Name),
		defs,
	), nil
}

func (d Dialect) DropTableSQL(table string) string {
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s;",
		escapeLiteral(d.QuoteTable(table)), d.QuoteTable(table))
}

const columnsSQL = `SELECT c.name, t.name,
       CASE WHEN EXISTS (
           SELECT 1 FROM sys.index_columns ic
           JOIN sys.indexes i ON i.object_id = ic.object_id AND i.index_id = ic.index_id
           WHERE i.is_primary_key = 1 AND ic.object_id = c.object_id AND ic.column_id = c.column_id
       ) THEN 1 ELSE 0 END
FROM sys.columns c
JOIN sys.types t ON t.user_type_id = c.user_type_id
WHERE c.object_id = OBJECT_ID(@p1, N'U')
ORDER BY c.column_id`

func (d Dialect) ColumnsSQL(table string) (string, []any) {
	return columnsSQL, []any{d.QuoteTable(table)}
}

func (Dialect) ClassifyType(dbType string) storage.ColumnType {
	return sqlstore.ClassifyByPrefix(dbType, "tinyint", "smallint", "int", "bigint")
}

func (d Dialect) WriteSQL(req storage.WriteRequest) (string, error) {
	switch req.Mode {
	case storage.InsertOnly:
		return sqlstore.BuildInsertSQL(d, req) + ";", nil
	case storage.Upsert:
		return buildUpsertSQL(d, req), nil
	default:
		return "", sqlstore.UnsupportedModeError(d, req.Mode)
	}
}

// buildUpsertSQL constructs the UPDATE + INSERT NOT EXISTS pair for a chunk.
//
// The returned SQL is deterministic for a given input.
func buildUpsertSQL(d Dialect, req storage.WriteRequest) string {
	table := d.QuoteTable(req.Table)
	key := d.Quote(req.KeyColumn)
	values := "(VALUES " + sqlstore.ValuesList(d, len(req.Rows), len(req.Columns)) + ") AS v(" +
		sqlstore.ColumnList(d, "", req.Columns) + ")"

	var b strings.Builder
	if nonKey := req.NonKeyColumns(); len(nonKey) > 0 {
		b.WriteString("UPDATE t SET ")
		for i, c := range nonKey {
			if i > 0 {
				b.WriteString(", ")
			}
			q := d.Quote(c)
			b.WriteString("t." + q + " = v." + q)
		}
		b.WriteString(" FROM ")
		b.WriteString(table)
		b.WriteString(" AS t JOIN ")
		b.WriteString(values)
		b.WriteString(" ON t." + key + " = v." + key + "; ")
	}

	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(sqlstore.ColumnList(d, "", req.Columns))
	b.WriteString(") SELECT ")
	b.WriteString(sqlstore.ColumnList(d, "v.", req.Columns))
	b.WriteString(" FROM ")
	b.WriteString(values)
	b.WriteString(" WHERE NOT EXISTS (SELECT 1 FROM ")
	b.WriteString(table)
	b.WriteString(" AS t WHERE t." + key + " = v." + key + ");")
	return b.String()
}

func columnTypeSQL(t storage.ColumnType, width int) string {
	if t == storage.Integer {
		return "BIGINT"
	}
	return fmt.Sprintf("NVARCHAR(%d) NULL", width)
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

var _ sqlstore.Dialect = Dialect{}
