package decode

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression is the container format of an extract file, detected from its
// name.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGZ
	CompressionBZ2
	CompressionXZ
	CompressionZSTD
)

var compressionExts = []struct {
	ext string
	c   Compression
}{
	{".gz", CompressionGZ},
	{".bz2", CompressionBZ2},
	{".xz", CompressionXZ},
	{".zst", CompressionZSTD},
}

func (c Compression) String() string {
	for _, e := range compressionExts {
		if e.c == c {
			return strings.TrimPrefix(e.ext, ".")
		}
	}
	return "none"
}

// DetectCompression detects the compression type from a file path.
func DetectCompression(path string) Compression {
	lower := strings.ToLower(path)
	for _, e := range compressionExts {
		if strings.HasSuffix(lower, e.ext) {
			return e.c
		}
	}
	return CompressionNone
}

// StripCompressionExt removes a recognized compression suffix from name.
func StripCompressionExt(name string) string {
	lower := strings.ToLower(name)
	for _, e := range compressionExts {
		if strings.HasSuffix(lower, e.ext) {
			return name[:len(name)-len(e.ext)]
		}
	}
	return name
}

// NewReader wraps r with a decompression reader for c. The returned cleanup
// releases decoder resources; it does not close r.
func NewReader(r io.Reader, c Compression) (io.Reader, func() error, error) {
	switch c {
	case CompressionNone:
		return r, func() error { return nil }, nil

	case CompressionGZ:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, gz.Close, nil

	case CompressionBZ2:
		return bzip2.NewReader(r), func() error { return nil }, nil

	case CompressionXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xr, func() error { return nil }, nil

	case CompressionZSTD:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return zr, func() error {
			zr.Close()
			return nil
		}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported compression type: %d", int(c))
	}
}

// ReadFile reads path whole, decompressing it when its name carries a
// compression suffix.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // paths come from the configured source directory
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r, cleanup, err := NewReader(f, DetectCompression(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer func() { _ = cleanup() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
