// Package schema decides the primary key and column types of a destination
// table, and coerces string cells into values matching those types.
package schema

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/donlluque/bbdd-txt-to-mysql/internal/storage"
)

// ErrUnknownColumns is returned when a file carries columns an existing table
// does not have. Existing tables are never altered.
var ErrUnknownColumns = errors.New("columns missing from existing table")

// Target is the resolved schema of one file against its destination table.
// Columns follow the file's header order.
type Target struct {
	Table      string
	Columns    []storage.ColumnSpec
	PrimaryKey string
	// Existing reports whether the plan was derived from an introspected table.
	Existing bool
}

// ColumnNames returns the column names in header order.
func (t Target) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// KeyIndex returns the position of the primary key, or -1 when keyless.
func (t Target) KeyIndex() int {
	for i, c := range t.Columns {
		if c.Name == t.PrimaryKey && t.PrimaryKey != "" {
			return i
		}
	}
	return -1
}

// Spec returns the table to create for a new destination.
func (t Target) Spec(textWidth int) storage.TableSpec {
	return storage.TableSpec{
		Name:       t.Table,
		Columns:    append([]storage.ColumnSpec(nil), t.Columns...),
		PrimaryKey: t.PrimaryKey,
		TextWidth:  textWidth,
	}
}

// Coerce converts one normalized row into typed values aligned with Columns.
func (t Target) Coerce(row []string) []any {
	out := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		var cell string
		if i < len(row) {
			cell = row[i]
		}
		if c.Type == storage.Integer {
			out[i] = CoerceInt(cell)
		} else {
			out[i] = cell
		}
	}
	return out
}

// Resolver builds Targets.
type Resolver struct {
	Policies *Policies

	// AllowKeyless lets ForNew produce a keyless, all-text target when no key
	// candidate is present. Only meaningful for destructive replaces.
	AllowKeyless bool
}

// NewResolver returns a Resolver using the built-in key policies.
func NewResolver() *Resolver {
	return &Resolver{Policies: DefaultPolicies()}
}

// Resolve dispatches to ForExisting or ForNew depending on info.Exists.
func (r *Resolver) Resolve(table string, header []string, info storage.TableInfo) (Target, error) {
	if info.Exists {
		return r.ForExisting(table, header, info)
	}
	return r.ForNew(table, header)
}

// ForNew types the key column Integer and every other column Text.
func (r *Resolver) ForNew(table string, header []string) (Target, error) {
	key, err := r.policies().SelectKey(table, header)
	if err != nil {
		if !r.AllowKeyless {
			return Target{}, err
		}
		key = ""
	}

	t := Target{Table: table, PrimaryKey: key, Columns: make([]storage.ColumnSpec, len(header))}
	for i, h := range header {
		typ := storage.Text
		if h == key {
			typ = storage.Integer
		}
		t.Columns[i] = storage.ColumnSpec{Name: h, Type: typ}
	}
	return t, nil
}

// ForExisting types every header column as the existing table declares it.
// The table's own primary key wins when the header carries it; otherwise
// the key policy decides.
func (r *Resolver) ForExisting(table string, header []string, info storage.TableInfo) (Target, error) {
	t := Target{Table: table, Existing: true, Columns: make([]storage.ColumnSpec, len(header))}

	var missing []string
	for i, h := range header {
		c, ok := info.Column(h)
		if !ok {
			missing = append(missing, h)
			continue
		}
		t.Columns[i] = storage.ColumnSpec{Name: h, Type: c.Type}
	}
	if len(missing) > 0 {
		return Target{}, fmt.Errorf("%w: %s lacks [%s]", ErrUnknownColumns, table, strings.Join(missing, ", "))
	}

	if info.PrimaryKey != "" && contains(header, info.PrimaryKey) {
		t.PrimaryKey = info.PrimaryKey
		return t, nil
	}
	key, err := r.policies().SelectKey(table, header)
	if err != nil {
		return Target{}, err
	}
	t.PrimaryKey = key
	return t, nil
}

func (r *Resolver) policies() *Policies {
	if r.Policies == nil {
		r.Policies = DefaultPolicies()
	}
	return r.Policies
}

// CoerceInt converts a cell to an integer. Blank and non-numeric cells become
// 0; decimals are truncated toward zero. The result is never nil.
func CoerceInt(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Trunc(f)
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
