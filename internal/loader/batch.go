package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/donlluque/bbdd-txt-to-mysql/internal/metrics"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/schema"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/storage"
)

// DefaultBatchSize is the number of rows per batch when none is configured.
const DefaultBatchSize = 1000

// LoadResult summarizes one file's load.
type LoadResult struct {
	Rows     int
	Batches  int
	New      int64
	Existing int64
	Written  int64
}

// BatchLoader writes a file's rows in ordered, non-overlapping batches.
//
// Each batch runs in its own transaction unless FileTransaction is set, in
// which case every batch of the file shares one transaction and the batch
// statistics reach Stats only after it commits.
type BatchLoader struct {
	Repo            storage.Repository
	Stats           *Stats
	Mode            storage.WriteMode
	BatchSize       int
	FileTransaction bool

	// Debug enables one log line per batch.
	Debug bool
	Logf  func(format string, v ...any)
}

// Load coerces and writes rows into tgt.Table. A keyless target is always
// written insert-only.
func (b *BatchLoader) Load(ctx context.Context, tgt schema.Target, rows [][]string) (LoadResult, error) {
	res := LoadResult{Rows: len(rows)}
	if len(rows) == 0 {
		return res, nil
	}

	mode := b.Mode
	if tgt.KeyIndex() < 0 {
		mode = storage.InsertOnly
	}
	size := b.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	if !b.FileTransaction {
		for start := 0; start < len(rows); start += size {
			end := min(start+size, len(rows))
			if err := b.inTx(ctx, func(tx storage.Tx) error {
				return b.loadBatch(ctx, tx, b.Stats, tgt, mode, rows[start:end], start, &res)
			}); err != nil {
				return res, err
			}
			metrics.RecordBatch()
		}
		return res, nil
	}

	pending := NewStats()
	err := b.inTx(ctx, func(tx storage.Tx) error {
		for start := 0; start < len(rows); start += size {
			end := min(start+size, len(rows))
			if err := b.loadBatch(ctx, tx, pending, tgt, mode, rows[start:end], start, &res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	b.Stats.Merge(pending)
	for i := 0; i < res.Batches; i++ {
		metrics.RecordBatch()
	}
	return res, nil
}

func (b *BatchLoader) inTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := b.Repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// loadBatch counts, records, then writes one batch. Counts are recorded
// before the write.
func (b *BatchLoader) loadBatch(
	ctx context.Context,
	tx storage.Tx,
	stats *Stats,
	tgt schema.Target,
	mode storage.WriteMode,
	batch [][]string,
	offset int,
	res *LoadResult,
) error {
	start := time.Now()
	keyIdx := tgt.KeyIndex()

	typed := make([][]any, len(batch))
	for i, row := range batch {
		typed[i] = tgt.Coerce(row)
	}

	var existing int64
	if mode == storage.Upsert {
		keys := make([]any, len(typed))
		for i, row := range typed {
			keys[i] = row[keyIdx]
		}
		n, err := tx.CountExisting(ctx, tgt.Table, tgt.PrimaryKey, keys)
		if err != nil {
			return fmt.Errorf("count existing rows %d-%d: %w", offset+1, offset+len(batch), err)
		}
		existing = n
		typed = storage.DedupeLastByKey(typed, keyIdx)
	}
	newRows := int64(len(batch)) - existing
	stats.RecordBatch(tgt.Table, newRows, existing)

	written, err := tx.WriteRows(ctx, storage.WriteRequest{
		Table:     tgt.Table,
		Columns:   tgt.ColumnNames(),
		KeyColumn: tgt.PrimaryKey,
		Rows:      typed,
		Mode:      mode,
	})
	if err != nil {
		return err
	}

	res.Batches++
	res.New += newRows
	res.Existing += existing
	res.Written += written
	metrics.RecordRecords("new", newRows)
	metrics.RecordRecords("existing", existing)
	metrics.RecordRecords("written", written)

	if b.Debug && b.Logf != nil {
		b.Logf("stage=batch table=%s rows=%d-%d mode=%s new=%d existing=%d written=%d duration=%s",
			tgt.Table, offset+1, offset+len(batch), mode, newRows, existing, written, durMS(start))
	}
	return nil
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }
