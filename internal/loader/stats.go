package loader

import (
	"sort"
	"sync"
)

// TableStats is the reconciliation tally of one table.
type TableStats struct {
	Table    string
	New      int64
	Existing int64
}

// Stats accumulates per-table new/existing row counts for one run. Updates
// are additive and commutative, so concurrent files may record in any order.
// The zero value is ready to use.
type Stats struct {
	mu sync.Mutex
	m  map[string]*TableStats
}

// NewStats returns an empty accumulator.
func NewStats() *Stats { return &Stats{} }

// RecordBatch adds one batch's counts to table.
func (s *Stats) RecordBatch(table string, newRows, existing int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]*TableStats)
	}
	ts := s.m[table]
	if ts == nil {
		ts = &TableStats{Table: table}
		s.m[table] = ts
	}
	ts.New += newRows
	ts.Existing += existing
}

// Merge adds every table of other into s.
func (s *Stats) Merge(other *Stats) {
	for _, ts := range other.Snapshot() {
		s.RecordBatch(ts.Table, ts.New, ts.Existing)
	}
}

// Snapshot returns a copy sorted by table name.
func (s *Stats) Snapshot() []TableStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TableStats, 0, len(s.m))
	for _, ts := range s.m {
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Table < out[j].Table })
	return out
}

// Get returns the tally for table; the zero TableStats when nothing was recorded.
func (s *Stats) Get(table string) TableStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ts := s.m[table]; ts != nil {
		return *ts
	}
	return TableStats{Table: table}
}
