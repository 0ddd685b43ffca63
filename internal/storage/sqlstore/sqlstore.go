// Package sqlstore implements storage.Repository on top of database/sql.
//
// Backends that talk through a database/sql driver (sqlite, mysql, mssql)
// only provide a Dialect: identifier quoting, placeholders, DDL, the
// introspection query, type classification and the write statement. Chunking,
// transactions, key counting and error wrapping live here once.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/donlluque/bbdd-txt-to-mysql/internal/storage"
)

// Dialect captures what differs between SQL backends.
type Dialect interface {
	// Name is the backend kind, used in error messages.
	Name() string

	// Quote quotes a column identifier.
	Quote(ident string) string

	// QuoteTable quotes a possibly schema-qualified table name.
	QuoteTable(name string) string

	// Placeholder returns the bind placeholder for the n-th (1-based) argument.
	Placeholder(n int) string

	// MaxParams is the bind-parameter limit of a single statement.
	MaxParams() int

	CreateTableSQL(spec storage.TableSpec) (string, error)
	DropTableSQL(table string) string

	// ColumnsSQL returns a query yielding (name, type, is_primary_key) per
	// column of table in ordinal order. No rows means the table is missing.
	ColumnsSQL(table string) (string, []any)

	// ClassifyType maps a store type name to a semantic type.
	ClassifyType(dbType string) storage.ColumnType

	// WriteSQL builds the statement writing len(req.Rows) rows, with
	// placeholders numbered row-major from 1.
	WriteSQL(req storage.WriteRequest) (string, error)
}

// Repo implements storage.Repository for any Dialect.
type Repo struct {
	db dbConn
	d  Dialect
}

// Open opens driverName with dsn, applies tune (may be nil) and pings.
func Open(ctx context.Context, driverName, dsn string, d Dialect, tune func(*sql.DB)) (*Repo, error) {
	raw, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if tune != nil {
		tune(raw)
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("%s: ping: %w", d.Name(), err)
	}
	return New(raw, d), nil
}

// New wraps an already opened *sql.DB.
func New(db *sql.DB, d Dialect) *Repo {
	return &Repo{db: &sqlDB{db: db}, d: d}
}

func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// Introspect reads column names (lower-cased), classified types and the
// single-column primary key of table.
func (r *Repo) Introspect(ctx context.Context, table string) (storage.TableInfo, error) {
	q, args := r.d.ColumnsSQL(table)
	rows, err := r.db.QueryContext(ctx, q, args...)
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
			pk        sql.NullInt64
		)
		if err := rows.Scan(&name, &typ, &pk); err != nil {
			return storage.TableInfo{}, fmt.Errorf("introspect %s: %w", table, err)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		info.Columns = append(info.Columns, storage.ColumnSpec{Name: name, Type: r.d.ClassifyType(typ)})
		if pk.Valid && pk.Int64 > 0 {
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
	if _, err := r.db.ExecContext(ctx, r.d.DropTableSQL(table)); err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	return nil
}

func (r *Repo) CreateTable(ctx context.Context, spec storage.TableSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	q, err := r.d.CreateTableSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", r.d.Name(), err)
	}
	return &Tx{tx: tx, d: r.d}, nil
}

// Tx implements storage.Tx over a database/sql transaction.
type Tx struct {
	tx   txConn
	d    Dialect
	done bool
}

// CountExisting counts distinct non-blank keys already in table, chunked by
// the dialect's parameter limit.
func (t *Tx) CountExisting(ctx context.Context, table, keyColumn string, keys []any) (int64, error) {
	keys = storage.DistinctKeys(keys)
	if len(keys) == 0 {
		return 0, nil
	}

	chunk := t.d.MaxParams()
	if chunk <= 0 {
		chunk = len(keys)
	}
	var total int64
	for start := 0; start < len(keys); start += chunk {
		end := min(start+chunk, len(keys))
		q, args := BuildCountSQL(t.d, table, keyColumn, keys[start:end])

		var n int64
		if err := t.tx.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
			return 0, fmt.Errorf("count existing %s.%s: %w", table, keyColumn, err)
		}
		total += n
	}
	return total, nil
}

// WriteRows writes req in statements of at most MaxParams bind parameters.
func (t *Tx) WriteRows(ctx context.Context, req storage.WriteRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	if len(req.Rows) == 0 {
		return 0, nil
	}

	per := storage.RowsPerStatement(len(req.Columns), t.d.MaxParams())
	var written int64
	for start := 0; start < len(req.Rows); start += per {
		end := min(start+per, len(req.Rows))
		part := req
		part.Rows = req.Rows[start:end]

		q, err := t.d.WriteSQL(part)
		if err != nil {
			return written, err
		}
		if _, err := t.tx.ExecContext(ctx, q, flatten(part.Rows)...); err != nil {
			return written, fmt.Errorf("%s %s rows %d-%d: %w", req.Mode, req.Table, start, end-1, err)
		}
		written += int64(len(part.Rows))
	}
	return written, nil
}

func (t *Tx) Commit(ctx context.Context) error {
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", t.d.Name(), err)
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%s: rollback: %w", t.d.Name(), err)
	}
	return nil
}

func flatten(rows [][]any) []any {
	if len(rows) == 0 {
		return nil
	}
	args := make([]any, 0, len(rows)*len(rows[0]))
	for _, row := range rows {
		args = append(args, row...)
	}
	return args
}

var (
	_ storage.Repository = (*Repo)(nil)
	_ storage.Tx         = (*Tx)(nil)
)

// ---- database/sql seam types ----

// dbConn is a small interface over *sql.DB used to make this package testable.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error)
	Close() error
}

// txConn is a small interface over *sql.Tx.
type txConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) rowScanner
	Commit() error
	Rollback() error
}

type rowScanner interface {
	Scan(dest ...any) error
}

type sqlDB struct {
	db *sql.DB
}

func (s *sqlDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *sqlDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func (s *sqlDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

func (s *sqlDB) Close() error { return s.db.Close() }

type sqlTx struct {
	tx *sql.Tx
}

func (s *sqlTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.tx.ExecContext(ctx, query, args...)
}

func (s *sqlTx) QueryRowContext(ctx context.Context, query string, args ...any) rowScanner {
	return s.tx.QueryRowContext(ctx, query, args...)
}

func (s *sqlTx) Commit() error { return s.tx.Commit() }

func (s *sqlTx) Rollback() error { return s.tx.Rollback() }
