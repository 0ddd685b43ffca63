// Package loader runs the per-file pipeline: decode, normalize, synchronize
// the destination table, then load rows in batches while tallying new and
// existing keys per table.
package loader

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/donlluque/bbdd-txt-to-mysql/internal/cleancopy"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/decode"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/metrics"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/normalize"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/router"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/schema"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/storage"
)

// PersonIDColumn is the column the summary checks every file for.
const PersonIDColumn = "id_persona"

// Logger is the minimal logging interface used by the loader.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Options tunes how files are written.
type Options struct {
	TablePolicy TablePolicy
	WriteMode   storage.WriteMode

	BatchSize       int
	FileTransaction bool

	// AllowKeylessReplace lets Destructive loads create tables without a
	// primary key when no candidate is present.
	AllowKeylessReplace bool

	WriteCleaned bool
	TextWidth    int
	DebugTimings bool
}

// Engine loads single files. It is safe for concurrent use once built.
type Engine struct {
	Repo     storage.Repository
	Decoder  *decode.Resolver
	Policies *schema.Policies
	Stats    *Stats
	Locks    *TableLocks
	Logger   Logger
	Options  Options

	// ReadFile is a seam for tests; defaults to decode.ReadFile.
	ReadFile func(path string) ([]byte, error)

	once sync.Once
}

// FileResult describes one loaded file.
type FileResult struct {
	File        string
	Table       string
	Encoding    string
	Header      []string
	HasPersonID bool
	CleanedPath string
	Load        LoadResult
}

// LoadFile runs the whole pipeline for f. The returned error is always a
// *FileError; FileResult is filled as far as the pipeline got.
func (e *Engine) LoadFile(ctx context.Context, f router.File) (FileResult, error) {
	e.once.Do(e.setDefaults)
	res := FileResult{File: f.Name, Table: f.Table}
	logf := e.logger()

	fail := func(stage Stage, err error) (FileResult, error) {
		var fe *FileError
		if !errors.As(err, &fe) {
			fe = &FileError{Table: f.Table, Stage: stage, Err: err}
		}
		fe.File = f.Name
		metrics.RecordFile("error")
		logf("stage=%s status=error file=%s table=%s err=%v", fe.Stage, f.Name, f.Table, fe.Err)
		return res, fe
	}

	if err := ctx.Err(); err != nil {
		return fail(StageDecode, err)
	}

	// decode
	start := time.Now()
	raw, err := e.ReadFile(f.Path)
	if err != nil {
		metrics.RecordStep(string(StageDecode), "error", time.Since(start))
		return fail(StageDecode, err)
	}
	decoded, err := e.Decoder.Decode(raw)
	if err != nil {
		metrics.RecordStep(string(StageDecode), "error", time.Since(start))
		return fail(StageDecode, err)
	}
	res.Encoding = decoded.Encoding
	metrics.RecordStep(string(StageDecode), "ok", time.Since(start))
	logf("stage=decode ok file=%s encoding=%s lines=%d", f.Name, decoded.Encoding, len(decoded.Lines))

	// normalize
	start = time.Now()
	tbl, err := normalize.Normalize(decoded.Lines)
	if err != nil {
		metrics.RecordStep(string(StageNormalize), "error", time.Since(start))
		return fail(StageNormalize, err)
	}
	res.Header = tbl.Header
	res.HasPersonID = tbl.Has(PersonIDColumn)
	metrics.RecordStep(string(StageNormalize), "ok", time.Since(start))
	logf("stage=normalize ok file=%s columns=%d rows=%d", f.Name, tbl.Width(), len(tbl.Rows))
	if !res.HasPersonID {
		logf("stage=normalize warn file=%s missing_column=%s", f.Name, PersonIDColumn)
	}

	if e.Options.WriteCleaned {
		start = time.Now()
		p, err := cleancopy.Write(f.Path, tbl.RawHeader, tbl.Rows)
		if err != nil {
			metrics.RecordStep(string(StageCleaned), "error", time.Since(start))
			return fail(StageCleaned, err)
		}
		res.CleanedPath = p
		metrics.RecordStep(string(StageCleaned), "ok", time.Since(start))
		logf("stage=cleaned ok file=%s path=%s", f.Name, p)
	}

	unlock := e.Locks.Lock(f.Table)
	defer unlock()

	// synchronize
	start = time.Now()
	tgt, err := e.synchronizer().Synchronize(ctx, f.Table, tbl.Header)
	if err != nil {
		metrics.RecordStep(string(StageSync), "error", time.Since(start))
		return fail(StageSync, err)
	}
	metrics.RecordStep(string(StageSync), "ok", time.Since(start))
	logf("stage=sync ok file=%s table=%s policy=%s key=%s existing=%t duration=%s",
		f.Name, f.Table, e.Options.TablePolicy, keyName(tgt.PrimaryKey), tgt.Existing, durMS(start))

	// load
	start = time.Now()
	bl := &BatchLoader{
		Repo:            e.Repo,
		Stats:           e.Stats,
		Mode:            e.Options.WriteMode,
		BatchSize:       e.Options.BatchSize,
		FileTransaction: e.Options.FileTransaction,
		Debug:           e.Options.DebugTimings,
		Logf:            logf,
	}
	lr, err := bl.Load(ctx, tgt, tbl.Rows)
	res.Load = lr
	if err != nil {
		metrics.RecordStep(string(StageLoad), "error", time.Since(start))
		return fail(StageLoad, stageErr(f.Table, StageLoad, schemaOrWrite(err)))
	}
	metrics.RecordStep(string(StageLoad), "ok", time.Since(start))
	metrics.RecordFile("ok")
	logf("stage=load ok file=%s table=%s rows=%d batches=%d new=%d existing=%d written=%d duration=%s",
		f.Name, f.Table, lr.Rows, lr.Batches, lr.New, lr.Existing, lr.Written, durMS(start))
	return res, nil
}

func (e *Engine) synchronizer() *Synchronizer {
	return &Synchronizer{
		Repo: e.Repo,
		Resolver: &schema.Resolver{
			Policies:     e.Policies,
			AllowKeyless: e.Options.AllowKeylessReplace && e.Options.TablePolicy == Destructive,
		},
		Policy:    e.Options.TablePolicy,
		TextWidth: e.Options.TextWidth,
	}
}

func (e *Engine) logger() func(format string, v ...any) {
	if e.Logger == nil {
		return log.New(io.Discard, "", 0).Printf
	}
	return e.Logger.Printf
}

func (e *Engine) setDefaults() {
	if e.ReadFile == nil {
		e.ReadFile = decode.ReadFile
	}
	if e.Decoder == nil {
		// The default candidate list always resolves.
		e.Decoder, _ = decode.NewResolver(nil)
	}
	if e.Policies == nil {
		e.Policies = schema.DefaultPolicies()
	}
	if e.Stats == nil {
		e.Stats = NewStats()
	}
	if e.Locks == nil {
		e.Locks = &TableLocks{}
	}
}

func keyName(k string) string {
	if k == "" {
		return "none"
	}
	return k
}
