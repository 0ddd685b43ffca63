package loader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/donlluque/bbdd-txt-to-mysql/internal/router"
)

// Runner loads every routable file of a directory. File failures are
// collected in the Summary and never stop the run.
type Runner struct {
	Engine *Engine
	Router *router.Router

	// Workers bounds how many files load at once. <= 1 means sequential.
	Workers int

	// RunID tags log lines.
	RunID string
}

type fileOutcome struct {
	res FileResult
	err error
	ran bool
}

// Run scans dir and loads its files. The Summary lists files in lexical
// order regardless of Workers. The error is non-nil only when dir cannot be
// scanned or ctx is canceled; files not started before cancellation are
// left out of the Summary.
func (r *Runner) Run(ctx context.Context, dir string) (*Summary, error) {
	start := time.Now()
	r.Engine.once.Do(r.Engine.setDefaults)
	logf := r.Engine.logger()

	rt := r.Router
	if rt == nil {
		rt = router.New(nil)
	}
	files, err := rt.Scan(dir)
	if err != nil {
		return nil, err
	}
	logf("stage=scan ok run_id=%s dir=%s files=%d", r.RunID, dir, len(files))

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(files) && len(files) > 0 {
		workers = len(files)
	}

	outcomes := make([]fileOutcome, len(files))
	idxCh := make(chan int)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range idxCh {
				f := files[i]
				logf("stage=file start run_id=%s file=%s table=%s", r.RunID, f.Name, f.Table)
				res, err := r.Engine.LoadFile(ctx, f)
				outcomes[i] = fileOutcome{res: res, err: err, ran: true}
			}
		}()
	}

feed:
	for i := range files {
		select {
		case idxCh <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(idxCh)
	wg.Wait()

	sum := &Summary{RunID: r.RunID}
	for i, o := range outcomes {
		if !o.ran {
			continue
		}
		if o.res.Header != nil && !o.res.HasPersonID {
			sum.MissingPersonID = append(sum.MissingPersonID, files[i].Name)
		}
		if o.err != nil {
			var fe *FileError
			if !errors.As(o.err, &fe) {
				fe = &FileError{File: files[i].Name, Table: files[i].Table, Err: o.err}
			}
			sum.Errors = append(sum.Errors, fe)
			continue
		}
		sum.Loaded = append(sum.Loaded, files[i].Name)
	}
	sum.Tables = r.Engine.Stats.Snapshot()
	sum.Elapsed = time.Since(start)

	logf("stage=run done run_id=%s loaded=%d errors=%d duration=%s",
		r.RunID, len(sum.Loaded), len(sum.Errors), durMS(start))

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	return sum, nil
}
