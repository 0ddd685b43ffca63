package loader

import (
	"errors"
	"fmt"

	"github.com/donlluque/bbdd-txt-to-mysql/internal/decode"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/normalize"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/schema"
)

// Sentinel errors. Every one of them is scoped to a single file; the run
// continues with the next file.
var (
	ErrUnsupportedEncoding   = decode.ErrUnsupportedEncoding
	ErrEmptyFile             = normalize.ErrEmptyFile
	ErrNoPrimaryKeyCandidate = schema.ErrNoPrimaryKeyCandidate

	// ErrSchemaOrWrite wraps DDL, introspection and write failures, and files
	// whose columns do not fit an existing table.
	ErrSchemaOrWrite = errors.New("schema or write failure")
)

// Stage names the pipeline step a file failed in.
type Stage string

const (
	StageDecode    Stage = "decode"
	StageNormalize Stage = "normalize"
	StageResolve   Stage = "resolve"
	StageSync      Stage = "sync"
	StageLoad      Stage = "load"
	StageCleaned   Stage = "cleaned"
)

// FileError is the failure of one file. It unwraps to the underlying
// sentinel so callers can classify with errors.Is.
type FileError struct {
	File  string
	Table string
	Stage Stage
	Err   error
}

func (e *FileError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("file=%s stage=%s: %v", e.File, e.Stage, e.Err)
	}
	return fmt.Sprintf("file=%s table=%s stage=%s: %v", e.File, e.Table, e.Stage, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// schemaOrWrite tags err with ErrSchemaOrWrite unless it already is one.
func schemaOrWrite(err error) error {
	if err == nil || errors.Is(err, ErrSchemaOrWrite) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSchemaOrWrite, err)
}

func stageErr(table string, stage Stage, err error) error {
	return &FileError{Table: table, Stage: stage, Err: err}
}
