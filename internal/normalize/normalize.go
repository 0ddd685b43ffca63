// Package normalize shapes decoded extract lines into a rectangular table.
//
// The first line is the header. Its tab-separated fields fix the table width
// W, and every data line is forced to exactly W cells:
//   - longer lines are truncated (trailing cells are dropped silently)
//   - shorter lines are right-padded with empty cells
//   - whitespace-only lines become W empty cells, so row counts are preserved
package normalize

import (
	"errors"
	"strconv"
	"strings"
)

// ErrEmptyFile is returned when there is no header line.
var ErrEmptyFile = errors.New("empty file")

const bom = "\ufeff"

// Table is a normalized file. Every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string

	// RawHeader keeps the header fields as they appeared (trimmed only), for
	// the cleaned copy.
	RawHeader []string
}

// Width returns the number of columns.
func (t Table) Width() int { return len(t.Header) }

// Index returns the position of column name, or -1.
func (t Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Has reports whether the header contains name.
func (t Table) Has(name string) bool { return t.Index(name) >= 0 }

// Normalize builds a Table from decoded lines.
func Normalize(lines []string) (Table, error) {
	if len(lines) == 0 {
		return Table{}, ErrEmptyFile
	}

	headerLine := strings.TrimSpace(strings.TrimPrefix(lines[0], bom))
	raw := strings.Split(headerLine, "\t")
	for i := range raw {
		raw[i] = strings.TrimSpace(raw[i])
	}

	t := Table{
		Header:    ColumnNames(raw),
		RawHeader: raw,
		Rows:      make([][]string, 0, len(lines)-1),
	}
	for _, line := range lines[1:] {
		t.Rows = append(t.Rows, FitRow(line, len(raw)))
	}
	return t, nil
}

// FitRow splits line on tabs and forces it to width cells, trimming each
// cell. A whitespace-only line yields width empty cells.
func FitRow(line string, width int) []string {
	row := make([]string, width)
	if strings.TrimSpace(line) == "" {
		return row
	}
	cells := strings.Split(line, "\t")
	for i := 0; i < width && i < len(cells); i++ {
		row[i] = strings.TrimSpace(cells[i])
	}
	return row
}

// ColumnNames trims and lower-cases header fields. Empty names become
// column_<n> (1-based position) and repeated names get _2, _3, ... suffixes
// so every name is a valid, unique column.
func ColumnNames(fields []string) []string {
	out := make([]string, len(fields))
	used := make(map[string]bool, len(fields))
	for i, f := range fields {
		name := strings.ToLower(strings.TrimSpace(f))
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		if used[name] {
			for k := 2; ; k++ {
				cand := name + "_" + strconv.Itoa(k)
				if !used[cand] {
					name = cand
					break
				}
			}
		}
		used[name] = true
		out[i] = name
	}
	return out
}
