// Package mysql registers the MySQL/MariaDB backend.
//
// Tables are created with InnoDB and utf8mb4 so decoded extract text
// round-trips without loss. Upserts use INSERT ... ON DUPLICATE KEY UPDATE,
// overwriting every non-key column with the incoming value.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/donlluque/bbdd-txt-to-mysql/internal/storage"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/storage/sqlstore"
)

// Dialect renders MySQL SQL for sqlstore.
type Dialect struct{}

func init() {
	storage.Register("mysql", New)
}

// New opens a MySQL connection pool.
//
// The DSN uses the go-sql-driver format (user:pass@tcp(host:3306)/db).
// charset and parseTime defaults are filled in when the DSN omits them.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	return sqlstore.Open(ctx, "mysql", dsn, Dialect{}, func(db *sql.DB) {
		db.SetMaxOpenConns(16)
		db.SetMaxIdleConns(16)
		db.SetConnMaxLifetime(5 * time.Minute)
	})
}

// normalizeDSN parses dsn and applies loader defaults.
func normalizeDSN(dsn string) (string, error) {
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql: parse dsn: %w", err)
	}
	if c.Params == nil {
		c.Params = map[string]string{}
	}
	if _, ok := c.Params["charset"]; !ok {
		c.Params["charset"] = "utf8mb4"
	}
	c.ParseTime = true
	return c.FormatDSN(), nil
}

func (Dialect) Name() string { return "mysql" }

// Quote backtick-quotes an identifier, doubling embedded backticks.
func (Dialect) Quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteTable quotes "db.table" as `db`.`table`.
func (d Dialect) QuoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = d.Quote(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) MaxParams() int { return 65535 }

func (d Dialect) CreateTableSQL(spec storage.TableSpec) (string, error) {
	defs := sqlstore.ColumnDefs(d, spec, columnTypeSQL, "NOT NULL")
	if spec.PrimaryKey != "" {
		defs += ", PRIMARY KEY (" + d.Quote(spec.PrimaryKey) + ")"
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		d.QuoteTable(spec.Name), defs), nil
}

func (d Dialect) DropTableSQL(table string) string {
	return "DROP TABLE IF EXISTS " + d.QuoteTable(table)
}

// ColumnsSQL reads information_schema for the current database, or for the
// database named in a qualified table.
func (Dialect) ColumnsSQL(table string) (string, []any) {
	const q = "SELECT COLUMN_NAME, DATA_TYPE, CASE WHEN COLUMN_KEY = 'PRI' THEN 1 ELSE 0 END " +
		"FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = %s AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION"
	if db, name, ok := strings.Cut(table, "."); ok {
		return fmt.Sprintf(q, "?"), []any{db, name}
	}
	return fmt.Sprintf(q, "DATABASE()"), []any{table}
}

func (Dialect) ClassifyType(dbType string) storage.ColumnType {
	return sqlstore.ClassifyByPrefix(dbType, "tinyint", "smallint", "mediumint", "int", "bigint")
}

func (d Dialect) WriteSQL(req storage.WriteRequest) (string, error) {
	switch req.Mode {
	case storage.InsertOnly:
		return sqlstore.BuildInsertSQL(d, req), nil
	case storage.Upsert:
		var b strings.Builder
		b.WriteString(sqlstore.BuildInsertSQL(d, req))
		b.WriteString(" ON DUPLICATE KEY UPDATE ")
		nonKey := req.NonKeyColumns()
		if len(nonKey) == 0 {
			// Nothing to overwrite; a self-assignment keeps the statement a no-op on conflict.
			k := d.Quote(req.KeyColumn)
			b.WriteString(k + " = " + k)
			return b.String(), nil
		}
		for i, c := range nonKey {
			if i > 0 {
				b.WriteString(", ")
			}
			q := d.Quote(c)
			b.WriteString(q + " = VALUES(" + q + ")")
		}
		return b.String(), nil
	default:
		return "", sqlstore.UnsupportedModeError(d, req.Mode)
	}
}

func columnTypeSQL(t storage.ColumnType, width int) string {
	if t == storage.Integer {
		return "BIGINT"
	}
	return fmt.Sprintf("VARCHAR(%d)", width)
}

var _ sqlstore.Dialect = Dialect{}
