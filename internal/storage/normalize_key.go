package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeKey converts a key value to a canonical string form, suitable for
// in-memory dedupe (e.g. "8429529").
//
// Backends must not assume a particular underlying type for keys; this helper
// keeps key comparisons consistent across backends.
func NormalizeKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []byte:
		return strings.TrimSpace(string(t))
	case int:
		return strconv.Itoa(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// DistinctKeys drops nil and blank keys and repeats, preserving first-seen order.
func DistinctKeys(keys []any) []any {
	seen := make(map[string]struct{}, len(keys))
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		nk := NormalizeKey(k)
		if nk == "" {
			continue
		}
		if _, ok := seen[nk]; ok {
			continue
		}
		seen[nk] = struct{}{}
		out = append(out, k)
	}
	return out
}

// DedupeLastByKey collapses rows sharing the value at keyIdx to the last
// occurrence. The surviving rows keep the position of their first occurrence,
// so the result is what applying the rows in order would leave behind.
// Rows with a nil or blank key are kept as-is.
func DedupeLastByKey(rows [][]any, keyIdx int) [][]any {
	if keyIdx < 0 || len(rows) < 2 {
		return rows
	}
	pos := make(map[string]int, len(rows))
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		k := NormalizeKey(row[keyIdx])
		if k == "" {
			out = append(out, row)
			continue
		}
		if i, ok := pos[k]; ok {
			out[i] = row
			continue
		}
		pos[k] = len(out)
		out = append(out, row)
	}
	return out
}

// RowsPerStatement returns how many rows of width columns fit in one
// statement without exceeding maxParams bind parameters (at least 1).
func RowsPerStatement(columns, maxParams int) int {
	if columns <= 0 || maxParams <= 0 {
		return 1
	}
	n := maxParams / columns
	if n < 1 {
		return 1
	}
	return n
}
