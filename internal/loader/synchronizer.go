package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/donlluque/bbdd-txt-to-mysql/internal/schema"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/storage"
)

// TablePolicy decides what happens to the destination table before loading.
type TablePolicy int

const (
	// Destructive drops the table if present and recreates it from the file.
	Destructive TablePolicy = iota
	// CreateIfAbsent creates a missing table and never alters an existing one.
	CreateIfAbsent
)

func (p TablePolicy) String() string {
	switch p {
	case Destructive:
		return "replace"
	case CreateIfAbsent:
		return "create_if_absent"
	default:
		return fmt.Sprintf("TablePolicy(%d)", int(p))
	}
}

// ParseTablePolicy accepts "replace" and "create_if_absent".
func ParseTablePolicy(s string) (TablePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "replace":
		return Destructive, nil
	case "create_if_absent":
		return CreateIfAbsent, nil
	default:
		return 0, fmt.Errorf("unknown table policy %q (want replace|create_if_absent)", s)
	}
}

// ParseWriteMode accepts "insert" and "upsert".
func ParseWriteMode(s string) (storage.WriteMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "insert":
		return storage.InsertOnly, nil
	case "upsert":
		return storage.Upsert, nil
	default:
		return 0, fmt.Errorf("unknown write mode %q (want insert|upsert)", s)
	}
}

// TableLocks hands out one mutex per table name so synchronize and load of
// the same table never interleave across workers.
type TableLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

// Lock blocks until table is free and returns its unlock func.
func (l *TableLocks) Lock(table string) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*sync.Mutex)
	}
	m := l.m[table]
	if m == nil {
		m = &sync.Mutex{}
		l.m[table] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Synchronizer brings the destination table into the shape a file needs and
// returns the resolved target.
type Synchronizer struct {
	Repo      storage.Repository
	Resolver  *schema.Resolver
	Policy    TablePolicy
	TextWidth int
}

// Synchronize applies the table policy for header. Errors are *FileError
// values without File set.
func (s *Synchronizer) Synchronize(ctx context.Context, table string, header []string) (schema.Target, error) {
	if s.Policy == Destructive {
		return s.replace(ctx, table, header)
	}
	return s.createIfAbsent(ctx, table, header)
}

func (s *Synchronizer) replace(ctx context.Context, table string, header []string) (schema.Target, error) {
	tgt, err := s.Resolver.ForNew(table, header)
	if err != nil {
		return schema.Target{}, stageErr(table, StageResolve, err)
	}
	if err := s.Repo.DropTable(ctx, table); err != nil {
		return schema.Target{}, stageErr(table, StageSync, schemaOrWrite(err))
	}
	if err := s.Repo.CreateTable(ctx, tgt.Spec(s.TextWidth)); err != nil {
		return schema.Target{}, stageErr(table, StageSync, schemaOrWrite(err))
	}
	return tgt, nil
}

func (s *Synchronizer) createIfAbsent(ctx context.Context, table string, header []string) (schema.Target, error) {
	info, err := s.Repo.Introspect(ctx, table)
	if err != nil {
		return schema.Target{}, stageErr(table, StageSync, schemaOrWrite(err))
	}

	tgt, err := s.Resolver.Resolve(table, header, info)
	if err != nil {
		if errors.Is(err, schema.ErrUnknownColumns) {
			err = schemaOrWrite(err)
		}
		return schema.Target{}, stageErr(table, StageResolve, err)
	}
	if info.Exists {
		return tgt, nil
	}
	if err := s.Repo.CreateTable(ctx, tgt.Spec(s.TextWidth)); err != nil {
		return schema.Target{}, stageErr(table, StageSync, schemaOrWrite(err))
	}
	return tgt, nil
}
