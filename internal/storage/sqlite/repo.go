package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/donlluque/bbdd-txt-to-mysql/internal/storage"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/storage/sqlstore"
)

// Dialect renders SQLite SQL for sqlstore.
//
// Key design points vs Postgres:
//   - Identifiers are double-quoted; there are no schemas, so a dotted name
//     is quoted as a single identifier.
//   - Types follow SQLite affinity rules: any declared type containing "INT"
//     has INTEGER affinity, everything else is treated as text.
//   - Upsert uses ON CONFLICT(key) DO UPDATE SET col = excluded.col.
type Dialect struct{}

func init() {
	storage.Register("sqlite", New)
}

// New opens dsn with modernc.org/sqlite.
//
// The pool is limited to one connection: SQLite allows a single writer, and
// ":memory:" databases are per-connection.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	return sqlstore.Open(ctx, "sqlite", cfg.DSN, Dialect{}, func(db *sql.DB) {
		db.SetMaxOpenConns(1)
	})
}

func (Dialect) Name() string { return "sqlite" }

// Quote double-quotes an identifier, doubling embedded quotes.
func (Dialect) Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d Dialect) QuoteTable(name string) string { return d.Quote(name) }

func (Dialect) Placeholder(int) string { return "?" }

// MaxParams matches SQLITE_MAX_VARIABLE_NUMBER of the bundled SQLite.
func (Dialect) MaxParams() int { return 32766 }

func (d Dialect) CreateTableSQL(spec storage.TableSpec) (string, error) {
	defs := sqlstore.ColumnDefs(d, spec, columnTypeSQL, "NOT NULL PRIMARY KEY")
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s)`, d.QuoteTable(spec.Name), defs), nil
}

func (d Dialect) DropTableSQL(table string) string {
	return `DROP TABLE IF EXISTS ` + d.QuoteTable(table)
}

// ColumnsSQL uses the pragma_table_info table-valued function; pk is the
// 1-based position within the primary key, 0 for non-key columns.
func (Dialect) ColumnsSQL(table string) (string, []any) {
	return `SELECT name, type, pk FROM pragma_table_info(?) ORDER BY cid`, []any{table}
}

func (Dialect) ClassifyType(dbType string) storage.ColumnType {
	if strings.Contains(strings.ToUpper(dbType), "INT") {
		return storage.Integer
	}
	return storage.Text
}

func (d Dialect) WriteSQL(req storage.WriteRequest) (string, error) {
	switch req.Mode {
	case storage.InsertOnly:
		return sqlstore.BuildInsertSQL(d, req), nil
	case storage.Upsert:
		var b strings.Builder
		b.WriteString(sqlstore.BuildInsertSQL(d, req))
		b.WriteString(" ON CONFLICT(")
		b.WriteString(d.Quote(req.KeyColumn))
		b.WriteString(")")
		nonKey := req.NonKeyColumns()
		if len(nonKey) == 0 {
			b.WriteString(" DO NOTHING")
			return b.String(), nil
		}
		b.WriteString(" DO UPDATE SET ")
		for i, c := range nonKey {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Quote(c))
			b.WriteString(" = excluded.")
			b.WriteString(d.Quote(c))
		}
		return b.String(), nil
	default:
		return "", sqlstore.UnsupportedModeError(d, req.Mode)
	}
}

func columnTypeSQL(t storage.ColumnType, width int) string {
	if t == storage.Integer {
		return "INTEGER"
	}
	return fmt.Sprintf("VARCHAR(%d)", width)
}

var _ sqlstore.Dialect = Dialect{}
