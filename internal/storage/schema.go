// The table model lives here so the loader and every backend package can
// import it without circular deps.
package storage

import "fmt"

// ColumnType is the semantic type of a column, independent of any store's
// type names. Backends map it to DDL and classify introspected types into it.
type ColumnType int

const (
	// Text is bounded text (DefaultTextWidth characters unless a spec says otherwise).
	Text ColumnType = iota
	// Integer is a 64-bit integer.
	Integer
)

func (t ColumnType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Text:
		return "text"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// DefaultTextWidth is the width used for Text columns of new tables.
const DefaultTextWidth = 255

type ColumnSpec struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// TableSpec describes a table to create.
//
// PrimaryKey is empty only for keyless destructive replaces; when set it names
// one of Columns and that column is Integer.
type TableSpec struct {
	Name       string       `json:"name"`
	Columns    []ColumnSpec `json:"columns"`
	PrimaryKey string       `json:"primary_key,omitempty"`
	TextWidth  int          `json:"text_width,omitempty"`
}

// Width returns the Text column width, falling back to DefaultTextWidth.
func (t TableSpec) Width() int {
	if t.TextWidth > 0 {
		return t.TextWidth
	}
	return DefaultTextWidth
}

// Validate checks the invariants backends rely on when building DDL.
func (t TableSpec) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table spec: empty name")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table spec %s: no columns", t.Name)
	}
	seen := make(map[string]struct{}, len(t.Columns))
	keyFound := false
	for _, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("table spec %s: empty column name", t.Name)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("table spec %s: duplicate column %q", t.Name, c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.Name == t.PrimaryKey {
			if c.Type != Integer {
				return fmt.Errorf("table spec %s: primary key %q must be integer", t.Name, c.Name)
			}
			keyFound = true
		}
	}
	if t.PrimaryKey != "" && !keyFound {
		return fmt.Errorf("table spec %s: primary key %q is not a column", t.Name, t.PrimaryKey)
	}
	return nil
}

// TableInfo is the introspected shape of a table.
type TableInfo struct {
	Exists     bool
	Columns    []ColumnSpec
	PrimaryKey string
}

// Column looks up an introspected column by name.
func (t TableInfo) Column(name string) (ColumnSpec, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// WriteMode selects how rows are written.
type WriteMode int

const (
	// InsertOnly inserts every row; a key collision fails the statement.
	InsertOnly WriteMode = iota
	// Upsert inserts new keys and overwrites every non-key column of existing keys.
	Upsert
)

func (m WriteMode) String() string {
	switch m {
	case InsertOnly:
		return "insert"
	case Upsert:
		return "upsert"
	default:
		return fmt.Sprintf("WriteMode(%d)", int(m))
	}
}

// WriteRequest is one batch of rows for Tx.WriteRows.
//
// Rows are aligned with Columns. KeyColumn is required for Upsert and must be
// one of Columns; Upsert rows must not repeat a key (see DedupeLastByKey).
type WriteRequest struct {
	Table     string
	Columns   []string
	KeyColumn string
	Rows      [][]any
	Mode      WriteMode
}

// Validate checks the request shape before any SQL is built.
func (r WriteRequest) Validate() error {
	if r.Table == "" {
		return fmt.Errorf("write: empty table")
	}
	if len(r.Columns) == 0 {
		return fmt.Errorf("write %s: no columns", r.Table)
	}
	if r.Mode == Upsert && r.KeyIndex() < 0 {
		return fmt.Errorf("write %s: upsert key %q is not a column", r.Table, r.KeyColumn)
	}
	for i, row := range r.Rows {
		if len(row) != len(r.Columns) {
			return fmt.Errorf("write %s: row %d has %d values, want %d", r.Table, i, len(row), len(r.Columns))
		}
	}
	return nil
}

// KeyIndex returns the position of KeyColumn in Columns or -1.
func (r WriteRequest) KeyIndex() int {
	if r.KeyColumn == "" {
		return -1
	}
	for i, c := range r.Columns {
		if c == r.KeyColumn {
			return i
		}
	}
	return -1
}

// NonKeyColumns returns Columns without KeyColumn, in order.
func (r WriteRequest) NonKeyColumns() []string {
	out := make([]string, 0, len(r.Columns))
	for _, c := range r.Columns {
		if c != r.KeyColumn {
			out = append(out, c)
		}
	}
	return out
}
