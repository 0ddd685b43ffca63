package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/donlluque/bbdd-txt-to-mysql/internal/storage"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/storage/sqlstore"
)

// maxParams is the Postgres wire-protocol limit on bind parameters per statement.
const maxParams = 65535

// keyChunk bounds the IN (...) list of a single count query.
const keyChunk = 2000

/*
Repo implements storage.Repository for Postgres.

It provides:
  - DDL with CREATE TABLE IF NOT EXISTS / DROP TABLE IF EXISTS
  - Introspection through pg_attribute + pg_index
  - Upserts via INSERT ... ON CONFLICT (key) DO UPDATE SET col = EXCLUDED.col
*/
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new Postgres-backed Repo.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

const introspectSQL = `SELECT a.attname, format_type(a.atttypid, a.atttypmod),
       CASE WHEN EXISTS (
           SELECT 1 FROM pg_index i
           WHERE i.indrelid = a.attrelid AND i.indisprimary AND a.attnum = ANY(i.indkey)
       ) THEN 1 ELSE 0 END
FROM pg_attribute a
WHERE a.attrelid = to_regclass($1) AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY a.attnum`

// Introspect reads the columns of table. to_regclass yields NULL for a
// missing table, so no rows means "does not exist".
func (r *Repo) Introspect(ctx context.Context, table string) (storage.TableInfo, error) {
	rows, err := r.pool.Query(ctx, introspectSQL, pgTableIdent(table))
	if err != nil {
		return storage.TableInfo{}, fmt.Errorf("introspect %s: %w", table, err)
	}
	defer rows.Close()

	var (
		info storage.TableInfo
		pks  []string
	)
	for rows.Next() {
		var (
			name, typ string
			pk        int32
		)
		if err := rows.Scan(&name, &typ, &pk); err != nil {
			return storage.TableInfo{}, fmt.Errorf("introspect %s: %w", table, err)
		}
		name = strings.ToLower(name)
		info.Columns = append(info.Columns, storage.ColumnSpec{Name: name, Type: classifyType(typ)})
		if pk > 0 {
			pks = append(pks, name)
		}
	}
	if err := rows.Err(); err != nil {
		return storage.TableInfo{}, fmt.Errorf("introspect %s: %w", table, err)
	}

	info.Exists = len(info.Columns) > 0
	if len(pks) == 1 {
		info.PrimaryKey = pks[0]
	}
	return info, nil
}

func (r *Repo) DropTable(ctx context.Context, table string) error {
	if _, err := r.pool.Exec(ctx, `DROP TABLE IF EXISTS `+pgTableIdent(table)); err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	return nil
}

// CreateTable creates the schema (when qualified) and the table if missing.
func (r *Repo) CreateTable(ctx context.Context, spec storage.TableSpec) error {
	schemaSQL, tableSQL, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if schemaSQL != "" {
		if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema for %s: %w", spec.Name, err)
		}
	}
	if _, err := r.pool.Exec(ctx, tableSQL); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx implements storage.Tx over a pgx transaction.
type Tx struct {
	tx   pgx.Tx
	done bool
}

// CountExisting counts distinct non-blank keys already in table, in chunks of
// keyChunk keys per query.
func (t *Tx) CountExisting(ctx context.Context, table, keyColumn string, keys []any) (int64, error) {
	keys = storage.DistinctKeys(keys)

	var total int64
	for start := 0; start < len(keys); start += keyChunk {
		end := min(start+keyChunk, len(keys))
		q, args := buildCountSQL(table, keyColumn, keys[start:end])

		var n int64
		if err := t.tx.QueryRow(ctx, q, args...).Scan(&n); err != nil {
			return 0, fmt.Errorf("count existing %s.%s: %w", table, keyColumn, err)
		}
		total += n
	}
	return total, nil
}

// WriteRows writes req in statements of at most maxParams parameters.
func (t *Tx) WriteRows(ctx context.Context, req storage.WriteRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}

	per := storage.RowsPerStatement(len(req.Columns), maxParams)
	var written int64
	for start := 0; start < len(req.Rows); start += per {
		end := min(start+per, len(req.Rows))
		part := req
		part.Rows = req.Rows[start:end]

		q, args := buildWriteSQL(part)
		if _, err := t.tx.Exec(ctx, q, args...); err != nil {
			return written, fmt.Errorf("%s %s rows %d-%d: %w", req.Mode, req.Table, start, end-1, err)
		}
		written += int64(len(part.Rows))
	}
	return written, nil
}

func (t *Tx) Commit(ctx context.Context) error {
	t.done = true
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: rollback: %w", err)
	}
	return nil
}

// buildWriteSQL constructs a single INSERT statement and its args.
//
// Why this exists:
//   - It is pure and deterministic, so we can unit test ON CONFLICT behavior
//     and placeholder numbering without a database.
//
// Upsert overwrites every non-key column with EXCLUDED; a key-only table
// degrades to DO NOTHING since there is nothing to overwrite.
func buildWriteSQL(req storage.WriteRequest) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgTableIdent(req.Table))
	b.WriteString(" (")
	for i, c := range req.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(req.Rows)*len(req.Columns))
	p := 1
	for i, row := range req.Rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range req.Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	if req.Mode == storage.Upsert {
		b.WriteString(" ON CONFLICT (")
		b.WriteString(pgIdent(req.KeyColumn))
		b.WriteString(")")
		nonKey := req.NonKeyColumns()
		if len(nonKey) == 0 {
			b.WriteString(" DO NOTHING")
		} else {
			b.WriteString(" DO UPDATE SET ")
			for i, c := range nonKey {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(pgIdent(c))
				b.WriteString(" = EXCLUDED.")
				b.WriteString(pgIdent(c))
			}
		}
	}
	return b.String(), args
}

func buildCountSQL(table, keyColumn string, keys []any) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT COUNT(*) FROM ")
	b.WriteString(pgTableIdent(table))
	b.WriteString(" WHERE ")
	b.WriteString(pgIdent(keyColumn))
	b.WriteString(" IN (")
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", i+1)
		args = append(args, k)
	}
	b.WriteString(")")
	return b.String(), args
}

// buildCreateSQL generates DDL for spec.
//
// Outputs:
//   - schemaSQL: optional CREATE SCHEMA statement when spec.Name is schema-qualified.
//   - tableSQL:  CREATE TABLE IF NOT EXISTS for the table.
func buildCreateSQL(spec storage.TableSpec) (schemaSQL, tableSQL string, err error) {
	if err := spec.Validate(); err != nil {
		return "", "", err
	}
	if schema, _ := splitQualifiedName(spec.Name); schema != "" {
		schemaSQL = fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pgIdent(schema))
	}

	defs := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		def := pgIdent(c.Name) + " " + columnTypeSQL(c.Type, spec.Width())
		if c.Name == spec.PrimaryKey {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}
	tableSQL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s)`, pgTableIdent(spec.Name), strings.Join(defs, ", "))
	return schemaSQL, tableSQL, nil
}

func columnTypeSQL(t storage.ColumnType, width int) string {
	if t == storage.Integer {
		return "BIGINT"
	}
	return fmt.Sprintf("VARCHAR(%d)", width)
}

// classifyType maps format_type output to a semantic type.
func classifyType(dbType string) storage.ColumnType {
	return sqlstore.ClassifyByPrefix(dbType, "bigint", "integer", "smallint")
}

// splitQualifiedName splits "schema.table".
//
// This helper is intentionally conservative: it only handles a single dot.
// If callers pass a more complex expression, we treat it as unqualified.
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func pgIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func pgTableIdent(name string) string {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schema, table}.Sanitize()
}

var (
	_ storage.Repository = (*Repo)(nil)
	_ storage.Tx         = (*Tx)(nil)
)
