// Package compression handles the compression formats a binary cache may
// store NAR files and chunks in.
package compression

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/datadog/zstd"
	"github.com/pierrec/lz4"
	"github.com/ulikunitz/xz"
)

// TypeNone and TypeZstd are the compression types this tool most commonly
// encounters: flat NAR files default to uncompressed, chunks are always
// stored zstd-compressed.
const (
	TypeNone = "none"
	TypeZstd = "zstd"
)

// ErrCorruptStream is returned when compressed data is not a valid stream
// for its compression type.
var ErrCorruptStream = errors.New("corrupt compressed stream")

// SuffixToType maps from the filename suffix Nix uses to the compression type.
var SuffixToType = map[string]string{
	"":      "none",
	".br":   "br",
	".bz2":  "bzip2",
	".gz":   "gzip", // keep in mind nix defaults to gzip if Compression: field is unset or empty string
	".lz4":  "lz4",
	".lzip": "lzip",
	".xz":   "xz",
	".zst":  "zstd",
}

// TypeToSuffix returns the filename suffix (leading dot included) for a
// compression type. The empty compression type is treated as "none" and
// yields no suffix.
func TypeToSuffix(compressionType string) (string, error) {
	if compressionType == "" {
		compressionType = TypeNone
	}

	for suffix, aCompressionType := range SuffixToType {
		if aCompressionType == compressionType {
			return suffix, nil
		}
	}

	return "", fmt.Errorf("unknown compression type: %v", compressionType)
}

// NewDecompressor decompresses contents from an io.Reader.
// The compression type needs to be specified upfront.
// It's the caller's responsibility to close the reader when done.
func NewDecompressor(r io.Reader, compressionType string) (io.ReadCloser, error) {
	switch compressionType {
	case "", "none":
		return io.NopCloser(r), nil
	case "br":
		return io.NopCloser(brotli.NewReader(r)), nil
	case "bzip2":
		return io.NopCloser(bzip2.NewReader(r)), nil
	case "gzip":
		gzipReader, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}

		return gzipReader, nil
	case "lz4":
		return io.NopCloser(lz4.NewReader(r)), nil
	case "xz":
		xzReader, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}

		return io.NopCloser(xzReader), nil
	case "zstd":
		return zstd.NewReader(r), nil
	}

	// compress, grzip, lrzip, lzip, lzop, lzma
	return nil, fmt.Errorf("unsupported compression type: %v", compressionType)
}

// Decompress fully decompresses data of the given compression type.
// Malformed streams yield an error wrapping ErrCorruptStream; an unknown
// compression type is reported as such, not as corruption.
func Decompress(data []byte, compressionType string) ([]byte, error) {
	if _, err := TypeToSuffix(compressionType); err != nil {
		return nil, err
	}

	r, err := NewDecompressor(bytes.NewReader(data), compressionType)
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %v", ErrCorruptStream, compressionType, err)
	}
	defer r.Close()

	decompressed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %v", ErrCorruptStream, compressionType, err)
	}

	return decompressed, nil
}

// NewCompressor returns an io.WriteCloser that compresses its input.
// The compression type needs to be specified upfront.
// Only cheap compression is supported, this is mostly used to assemble
// fixtures and test data on the fly.
// It's the caller's responsibility to close the writer when done.
func NewCompressor(w io.Writer, compressionType string) (io.WriteCloser, error) {
	switch compressionType {
	case "br":
		return brotli.NewWriterLevel(w, brotli.BestSpeed), nil
	case "gzip":
		return gzip.NewWriterLevel(w, gzip.BestSpeed)
	case "zstd":
		return zstd.NewWriterLevel(w, zstd.BestSpeed), nil
	}

	return nil, fmt.Errorf("unsupported compression type: %v", compressionType)
}
