package loader

import (
	"bytes"
	"fmt"
	"io"
	"time"
)

// Summary is the outcome of one run.
type Summary struct {
	RunID string

	Loaded          []string
	MissingPersonID []string
	Errors          []*FileError
	Tables          []TableStats

	Elapsed time.Duration
}

// Failed reports whether any file errored.
func (s *Summary) Failed() bool { return len(s.Errors) > 0 }

// WriteTo renders the plain-text run report.
func (s *Summary) WriteTo(w io.Writer) (int64, error) {
	var b bytes.Buffer

	b.WriteString("Run summary")
	if s.RunID != "" {
		fmt.Fprintf(&b, " (run_id=%s)", s.RunID)
	}
	b.WriteString(":\n")

	fmt.Fprintf(&b, "Files loaded (%d):\n", len(s.Loaded))
	for _, f := range s.Loaded {
		fmt.Fprintf(&b, " - %s\n", f)
	}

	fmt.Fprintf(&b, "\nFiles without column '%s' (%d):\n", PersonIDColumn, len(s.MissingPersonID))
	for _, f := range s.MissingPersonID {
		fmt.Fprintf(&b, " - %s\n", f)
	}

	fmt.Fprintf(&b, "\nFiles with errors (%d):\n", len(s.Errors))
	for _, e := range s.Errors {
		fmt.Fprintf(&b, " - %s [%s]: %v\n", e.File, e.Stage, e.Err)
	}

	b.WriteString("\nRows per table:\n")
	var totalNew, totalExisting int64
	for _, t := range s.Tables {
		fmt.Fprintf(&b, " - %s: new=%d existing=%d\n", t.Table, t.New, t.Existing)
		totalNew += t.New
		totalExisting += t.Existing
	}
	fmt.Fprintf(&b, "Total: new=%d existing=%d\n", totalNew, totalExisting)
	if s.Elapsed > 0 {
		fmt.Fprintf(&b, "Elapsed: %s\n", s.Elapsed.Truncate(time.Millisecond))
	}

	n, err := w.Write(b.Bytes())
	return int64(n), err
}
