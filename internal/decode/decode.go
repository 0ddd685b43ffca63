// Package decode turns raw extract bytes into text lines by trying an ordered
// list of candidate encodings.
//
// Every candidate is strict: it either decodes the whole input or fails. The
// first candidate that succeeds wins, so the order of the list matters. A
// permissive encoding such as ISO-8859-1 accepts any byte sequence and should
// therefore come after the stricter ones.
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// ErrUnsupportedEncoding is returned when no candidate decodes the input.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

// DefaultEncodings is the candidate order used when none is configured.
var DefaultEncodings = []string{"windows-1252", "utf-8", "ISO-8859-1", "ascii"}

// utf8BOM is stripped before any candidate runs; single-byte candidates would
// otherwise turn it into "ï»¿".
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Result is a decoded file: its lines and the encoding that produced them.
type Result struct {
	Encoding string
	Lines    []string
}

type candidate struct {
	name   string
	decode func([]byte) (string, error)
}

// Resolver tries candidates in order.
type Resolver struct {
	candidates []candidate
}

// NewResolver builds a Resolver for names, in order. An empty list selects
// DefaultEncodings. Names are matched case-insensitively against the built-in
// strict decoders first, then against the IANA registry.
func NewResolver(names []string) (*Resolver, error) {
	if len(names) == 0 {
		names = DefaultEncodings
	}
	r := &Resolver{candidates: make([]candidate, 0, len(names))}
	for _, n := range names {
		c, err := lookup(n)
		if err != nil {
			return nil, err
		}
		r.candidates = append(r.candidates, c)
	}
	return r, nil
}

// Names returns the candidate names in trial order.
func (r *Resolver) Names() []string {
	out := make([]string, len(r.candidates))
	for i, c := range r.candidates {
		out[i] = c.name
	}
	return out
}

// Decode returns the lines of data under the first candidate that accepts it.
// A leading UTF-8 BOM is dropped first. Zero-length input decodes to zero
// lines under the first candidate.
func (r *Resolver) Decode(data []byte) (Result, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	var errs []error
	for _, c := range r.candidates {
		s, err := c.decode(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		return Result{Encoding: c.name, Lines: SplitLines(s)}, nil
	}
	return Result{}, fmt.Errorf("%w: tried %s: %w", ErrUnsupportedEncoding, strings.Join(r.Names(), ", "), errors.Join(errs...))
}

// DecodeFile reads path (decompressing by extension) and decodes it.
func (r *Resolver) DecodeFile(path string) (Result, error) {
	data, err := ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	return r.Decode(data)
}

// SplitLines splits on "\r\n", "\n" and "\r". A trailing terminator does not
// produce an extra empty line.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n':
			lines = append(lines, s[start:i])
			start = i + 1
		case '\r':
			lines = append(lines, s[start:i])
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func lookup(name string) (candidate, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "windows-1252", "cp1252", "windows1252":
		return candidate{name: name, decode: decodeWindows1252}, nil
	case "utf-8", "utf8":
		return candidate{name: name, decode: decodeUTF8}, nil
	case "iso-8859-1", "latin1", "latin-1", "iso8859-1":
		return candidate{name: name, decode: decodeLatin1}, nil
	case "ascii", "us-ascii":
		return candidate{name: name, decode: decodeASCII}, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return candidate{}, fmt.Errorf("decode: unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return candidate{}, fmt.Errorf("decode: encoding %q is not supported", name)
	}
	return candidate{name: name, decode: strictDecoder(enc)}, nil
}

// windows1252Undefined are the code points Windows-1252 leaves unassigned.
// x/text maps them to C1 controls; a strict decode rejects them instead.
var windows1252Undefined = [256]bool{0x81: true, 0x8D: true, 0x8F: true, 0x90: true, 0x9D: true}

func decodeWindows1252(b []byte) (string, error) {
	for i, c := range b {
		if windows1252Undefined[c] {
			return "", fmt.Errorf("undefined byte 0x%02X at offset %d", c, i)
		}
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func decodeUTF8(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", errors.New("invalid utf-8 sequence")
	}
	return string(b), nil
}

func decodeLatin1(b []byte) (string, error) {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func decodeASCII(b []byte) (string, error) {
	for i, c := range b {
		if c >= 0x80 {
			return "", fmt.Errorf("non-ascii byte 0x%02X at offset %d", c, i)
		}
	}
	return string(b), nil
}

// strictDecoder rejects output containing U+FFFD when the input did not
// already carry an encoded replacement character.
func strictDecoder(enc encoding.Encoding) func([]byte) (string, error) {
	return func(b []byte) (string, error) {
		out, err := enc.NewDecoder().Bytes(b)
		if err != nil {
			return "", err
		}
		s := string(out)
		if strings.ContainsRune(s, utf8.RuneError) && !strings.Contains(string(b), string(utf8.RuneError)) {
			return "", errors.New("input contains undecodable bytes")
		}
		return s, nil
	}
}
