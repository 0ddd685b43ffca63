package normalize

import (
	"errors"
	"reflect"
	"testing"
)

func TestNormalize_EveryRowHasHeaderWidth(t *testing.T) {
	t.Parallel()

	lines := []string{
		" ID_PERSONA\tApellido \tNOMBRE ",
		"1\tPerez\tAna",
		"2\tGomez",
		"3\tRuiz\tLuis\textra\tmore",
		"   ",
		"",
		"\t\t",
	}
	tbl, err := Normalize(lines)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if want := []string{"id_persona", "apellido", "nombre"}; !reflect.DeepEqual(tbl.Header, want) {
		t.Fatalf("header=%q, want %q", tbl.Header, want)
	}
	if want := []string{"ID_PERSONA", "Apellido", "NOMBRE"}; !reflect.DeepEqual(tbl.RawHeader, want) {
		t.Fatalf("raw header=%q, want %q", tbl.RawHeader, want)
	}
	if len(tbl.Rows) != len(lines)-1 {
		t.Fatalf("rows=%d, want %d (blank lines must be kept)", len(tbl.Rows), len(lines)-1)
	}
	for i, row := range tbl.Rows {
		if len(row) != tbl.Width() {
			t.Fatalf("row %d has %d cells, want %d", i, len(row), tbl.Width())
		}
	}

	want := [][]string{
		{"1", "Perez", "Ana"},
		{"2", "Gomez", ""},
		{"3", "Ruiz", "Luis"},
		{"", "", ""},
		{"", "", ""},
		{"", "", ""},
	}
	if !reflect.DeepEqual(tbl.Rows, want) {
		t.Fatalf("rows=%q, want %q", tbl.Rows, want)
	}
}

func TestNormalize_Empty(t *testing.T) {
	t.Parallel()

	if _, err := Normalize(nil); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("err=%v, want ErrEmptyFile", err)
	}
}

func TestNormalize_HeaderOnly(t *testing.T) {
	t.Parallel()

	tbl, err := Normalize([]string{"CODIGO\tDESCRIPCION"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if tbl.Width() != 2 || len(tbl.Rows) != 0 {
		t.Fatalf("width=%d rows=%d", tbl.Width(), len(tbl.Rows))
	}
}

func TestNormalize_StripsBOM(t *testing.T) {
	t.Parallel()

	tbl, err := Normalize([]string{"\ufeffCODIGO\tX", "1\t2"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if tbl.Header[0] != "codigo" || !tbl.Has("codigo") || tbl.Index("x") != 1 {
		t.Fatalf("header=%q", tbl.Header)
	}
}

func TestFitRow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		line  string
		width int
		want  []string
	}{
		{name: "exact", line: "a\tb", width: 2, want: []string{"a", "b"}},
		{name: "pad", line: "a", width: 3, want: []string{"a", "", ""}},
		{name: "truncate", line: "a\tb\tc\td", width: 2, want: []string{"a", "b"}},
		{name: "blank", line: " \t ", width: 2, want: []string{"", ""}},
		{name: "trim_cells", line: " a \t b", width: 2, want: []string{"a", "b"}},
		{name: "empty_middle", line: "a\t\tc", width: 3, want: []string{"a", "", "c"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FitRow(tc.line, tc.width); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("FitRow(%q,%d)=%q, want %q", tc.line, tc.width, got, tc.want)
			}
		})
	}
}

func TestColumnNames_EmptyAndDuplicates(t *testing.T) {
	t.Parallel()

	got := ColumnNames([]string{"Codigo", "", "DESC", "desc", " Desc ", "desc_2"})
	want := []string{"codigo", "column_2", "desc", "desc_2", "desc_3", "desc_2_2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ColumnNames=%q, want %q", got, want)
	}
}
