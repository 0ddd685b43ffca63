package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donlluque/bbdd-txt-to-mysql/internal/storage"
)

func openTestRepo(t *testing.T) storage.Repository {
	t.Helper()
	repo, err := New(context.Background(), storage.Config{Kind: "sqlite", DSN: filepath.Join(t.TempDir(), "load.db")})
	require.NoError(t, err)
	t.Cleanup(repo.Close)
	return repo
}

func TestDialect_WriteSQL(t *testing.T) {
	t.Parallel()

	d := Dialect{}
	req := storage.WriteRequest{
		Table:     "aeronaves",
		Columns:   []string{"id_persona", "matricula"},
		KeyColumn: "id_persona",
		Rows:      [][]any{{int64(1), "LV-ABC"}, {int64(2), "LV-XYZ"}},
	}

	req.Mode = storage.InsertOnly
	ins, err := d.WriteSQL(req)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "aeronaves" ("id_persona", "matricula") VALUES (?, ?), (?, ?)`, ins)

	req.Mode = storage.Upsert
	up, err := d.WriteSQL(req)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(up, `ON CONFLICT("id_persona") DO UPDATE SET "matricula" = excluded."matricula"`), up)
}

func TestDialect_CreateTableSQL(t *testing.T) {
	t.Parallel()

	q, err := Dialect{}.CreateTableSQL(storage.TableSpec{
		Name:       "sexo",
		PrimaryKey: "codigo",
		Columns:    []storage.ColumnSpec{{Name: "codigo", Type: storage.Integer}, {Name: "desc\"x", Type: storage.Text}},
	})
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "sexo" ("codigo" INTEGER NOT NULL PRIMARY KEY, "desc""x" VARCHAR(255))`, q)
}

func TestRepo_CreateIntrospectDrop(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	info, err := repo.Introspect(ctx, "bases")
	require.NoError(t, err)
	assert.False(t, info.Exists)

	spec := storage.TableSpec{
		Name:       "bases",
		PrimaryKey: "codigo",
		Columns: []storage.ColumnSpec{
			{Name: "codigo", Type: storage.Integer},
			{Name: "descripcion", Type: storage.Text},
		},
	}
	require.NoError(t, repo.CreateTable(ctx, spec))
	// Create-if-not-exists is idempotent.
	require.NoError(t, repo.CreateTable(ctx, spec))

	info, err = repo.Introspect(ctx, "bases")
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, "codigo", info.PrimaryKey)
	assert.Equal(t, []storage.ColumnSpec{
		{Name: "codigo", Type: storage.Integer},
		{Name: "descripcion", Type: storage.Text},
	}, info.Columns)

	require.NoError(t, repo.DropTable(ctx, "bases"))
	require.NoError(t, repo.DropTable(ctx, "bases"))
	info, err = repo.Introspect(ctx, "bases")
	require.NoError(t, err)
	assert.False(t, info.Exists)
}

func TestRepo_UpsertAndCount(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	require.NoError(t, repo.CreateTable(ctx, storage.TableSpec{
		Name:       "desempleo",
		PrimaryKey: "id_persona",
		Columns: []storage.ColumnSpec{
			{Name: "id_persona", Type: storage.Integer},
			{Name: "monto", Type: storage.Text},
		},
	}))

	write := func(mode storage.WriteMode, rows [][]any) error {
		tx, err := repo.Begin(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback(ctx) }()
		if _, err := tx.WriteRows(ctx, storage.WriteRequest{
			Table: "desempleo", Columns: []string{"id_persona", "monto"}, KeyColumn: "id_persona", Mode: mode, Rows: rows,
		}); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	require.NoError(t, write(storage.InsertOnly, [][]any{{int64(1), "10"}, {int64(2), "20"}}))
	require.Error(t, write(storage.InsertOnly, [][]any{{int64(3), "30"}, {int64(1), "dup"}}))

	require.NoError(t, write(storage.Upsert, [][]any{{int64(1), ""}, {int64(4), "40"}}))

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	n, err := tx.CountExisting(ctx, "desempleo", "id_persona", []any{int64(1), int64(2), int64(3), int64(4), nil})
	require.NoError(t, err)
	// 3 was rolled back with the failed insert-only batch.
	assert.Equal(t, int64(3), n)
}
