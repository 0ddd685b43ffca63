// Package cleancopy writes the normalized form of an extract next to its
// source as <name>_limpio.TXT: UTF-8, TAB-delimited, header first.
package cleancopy

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/donlluque/bbdd-txt-to-mysql/internal/decode"
)

// Suffix marks cleaned copies. The router never picks these files up.
const Suffix = "_limpio"

// IsCleaned reports whether name is a cleaned copy (compression ignored).
func IsCleaned(name string) bool {
	base := strings.ToUpper(filepath.Base(decode.StripCompressionExt(name)))
	return strings.HasSuffix(base, strings.ToUpper(Suffix)+".TXT")
}

// PathFor returns the cleaned-copy path for src. A compressed source yields
// an uncompressed copy.
func PathFor(src string) string {
	dir, base := filepath.Split(decode.StripCompressionExt(src))
	ext := filepath.Ext(base)
	if strings.EqualFold(ext, ".txt") {
		return filepath.Join(dir, strings.TrimSuffix(base, ext)+Suffix+ext)
	}
	return filepath.Join(dir, base+Suffix+".TXT")
}

// Write renders header and rows to PathFor(src) and returns that path. The
// file is written to a temporary name first and renamed into place.
func Write(src string, header []string, rows [][]string) (string, error) {
	dst := PathFor(src)

	f, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("cleaned copy %s: %w", dst, err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	w := bufio.NewWriterSize(f, 64<<10)
	writeLine(w, header)
	for _, row := range rows {
		writeLine(w, row)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("cleaned copy %s: %w", dst, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("cleaned copy %s: %w", dst, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return "", fmt.Errorf("cleaned copy %s: %w", dst, err)
	}
	return dst, nil
}

// writeLine errors are sticky in bufio.Writer and surface from Flush.
func writeLine(w *bufio.Writer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			_ = w.WriteByte('\t')
		}
		_, _ = w.WriteString(c)
	}
	_ = w.WriteByte('\n')
}
