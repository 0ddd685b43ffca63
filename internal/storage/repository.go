package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to create a repository.
//
// When to use:
//   - Use Config when constructing a Repository via New.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//
// Errors:
//   - New returns an error if Kind is empty or unsupported.
type Config struct {
	Kind string
	DSN  string
}

// Repository is a backend-agnostic interface for loading extract files into
// relational tables.
//
// IMPORTANT: This interface is intentionally minimal and focused on the
// operations the loader needs. Each backend implements these semantics in its
// own idiomatic way (Postgres ON CONFLICT, MySQL ON DUPLICATE KEY, SQL Server
// UPDATE + INSERT NOT EXISTS, etc).
type Repository interface {
	// Close releases any backend resources (connections, prepared statements, etc).
	//
	// When to use:
	//   - Always call Close when you are done with the repository to avoid leaks.
	//
	// Edge cases:
	//   - Callers should treat Close as "call once".
	Close()

	// Introspect reports whether table exists and, if it does, its columns
	// classified into semantic types plus its single-column primary key (empty
	// when the table has no primary key or a composite one).
	Introspect(ctx context.Context, table string) (TableInfo, error)

	// DropTable drops table if it exists.
	DropTable(ctx context.Context, table string) error

	// CreateTable creates the table described by spec when it does not exist.
	// An existing table is left untouched.
	CreateTable(ctx context.Context, spec TableSpec) error

	// Begin starts a write transaction.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one atomic unit of work. Every statement issued through a Tx commits
// or rolls back together.
type Tx interface {
	// CountExisting counts how many of keys are already present in
	// table.keyColumn. Nil and blank keys are ignored and duplicates count once.
	CountExisting(ctx context.Context, table, keyColumn string, keys []any) (int64, error)

	// WriteRows applies req and returns the number of rows sent to the store.
	// Backends may split the rows into several statements to stay under their
	// parameter limits; all of them run inside this transaction.
	WriteRows(ctx context.Context, req WriteRequest) (int64, error)

	Commit(ctx context.Context) error

	// Rollback is safe to call after Commit; it is then a no-op.
	Rollback(ctx context.Context) error
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "mysql").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The `kind` string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Concurrency:
//   - Safe for concurrent use with Register. New takes a read lock while
//     selecting the factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing storage.kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
