package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/donlluque/bbdd-txt-to-mysql/internal/storage"
)

// fakeRepo is an in-memory Repository keyed by the write request's key
// column. Writes become visible on Commit.
type fakeRepo struct {
	mu     sync.Mutex
	specs  map[string]storage.TableSpec
	rows   map[string]map[string][]any // table -> normalized key -> row
	order  map[string][]string         // insertion order of keys per table
	events []string

	failWriteAt int // 1-based WriteRows call that fails; 0 disables
	writes      int
	commits     int
	rollbacks   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		specs: map[string]storage.TableSpec{},
		rows:  map[string]map[string][]any{},
		order: map[string][]string{},
	}
}

func (f *fakeRepo) Close() {}

func (f *fakeRepo) Introspect(_ context.Context, table string) (storage.TableInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	spec, ok := f.specs[table]
	if !ok {
		return storage.TableInfo{}, nil
	}
	return storage.TableInfo{Exists: true, Columns: spec.Columns, PrimaryKey: spec.PrimaryKey}, nil
}

func (f *fakeRepo) DropTable(_ context.Context, table string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "drop "+table)
	delete(f.specs, table)
	delete(f.rows, table)
	delete(f.order, table)
	return nil
}

func (f *fakeRepo) CreateTable(_ context.Context, spec storage.TableSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.specs[spec.Name]; ok {
		return nil
	}
	f.events = append(f.events, "create "+spec.Name)
	f.specs[spec.Name] = spec
	f.rows[spec.Name] = map[string][]any{}
	return nil
}

func (f *fakeRepo) Begin(context.Context) (storage.Tx, error) {
	return &fakeTx{repo: f}, nil
}

func (f *fakeRepo) count(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order[table])
}

func (f *fakeRepo) row(table string, key any) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[table][storage.NormalizeKey(key)]
}

type fakeTx struct {
	repo    *fakeRepo
	pending []storage.WriteRequest
	done    bool
}

func (t *fakeTx) CountExisting(_ context.Context, table, _ string, keys []any) (int64, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	var n int64
	for _, k := range storage.DistinctKeys(keys) {
		if _, ok := t.repo.rows[table][storage.NormalizeKey(k)]; ok {
			n++
		}
	}
	return n, nil
}

func (t *fakeTx) WriteRows(_ context.Context, req storage.WriteRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	t.repo.mu.Lock()
	t.repo.writes++
	fail := t.repo.failWriteAt == t.repo.writes
	t.repo.mu.Unlock()
	if fail {
		return 0, errors.New("disk full")
	}

	if req.Mode == storage.InsertOnly && req.KeyIndex() >= 0 {
		seen := map[string]bool{}
		t.repo.mu.Lock()
		for _, row := range req.Rows {
			k := storage.NormalizeKey(row[req.KeyIndex()])
			_, stored := t.repo.rows[req.Table][k]
			if stored || seen[k] {
				t.repo.mu.Unlock()
				return 0, fmt.Errorf("duplicate key %s", k)
			}
			seen[k] = true
		}
		t.repo.mu.Unlock()
	}
	t.pending = append(t.pending, req)
	return int64(len(req.Rows)), nil
}

func (t *fakeTx) Commit(context.Context) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	t.done = true
	t.repo.commits++
	for _, req := range t.pending {
		idx := req.KeyIndex()
		for _, row := range req.Rows {
			k := fmt.Sprintf("#%d", len(t.repo.order[req.Table]))
			if idx >= 0 {
				k = storage.NormalizeKey(row[idx])
			}
			if _, ok := t.repo.rows[req.Table][k]; !ok {
				t.repo.order[req.Table] = append(t.repo.order[req.Table], k)
			}
			t.repo.rows[req.Table][k] = row
		}
	}
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.repo.mu.Lock()
	t.repo.rollbacks++
	t.repo.mu.Unlock()
	return nil
}
