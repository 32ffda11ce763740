// Package compression sniffs and unwraps compressed archive streams.
//
// Tar itself needs a seekable stream, so callers typically spool the
// decompressed output to a temporary file before opening it as an
// archive; the cmd/tarstream CLI does exactly that.
package compression

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// Format identifies a detected compression format.
type Format int

// Supported formats.
const (
	FormatNone Format = iota
	FormatGzip
	FormatBzip2
	FormatXZ
	FormatLZMA
	FormatZstd
	FormatLZ4
)

// String returns the conventional short name of the format.
func (f Format) String() string {
	switch f {
	case FormatGzip:
		return "gzip"
	case FormatBzip2:
		return "bzip2"
	case FormatXZ:
		return "xz"
	case FormatLZMA:
		return "lzma"
	case FormatZstd:
		return "zstd"
	case FormatLZ4:
		return "lz4"
	default:
		return "none"
	}
}

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte{0x42, 0x5a, 0x68}
	xzMagic    = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
	lzmaMagic  = []byte{0x5d, 0x00, 0x00}
	zstdMagic  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic   = []byte{0x04, 0x22, 0x4d, 0x18}
)

// maxMagicBytes is the longest magic prefix checked (xz).
const maxMagicBytes = 6

// Detect identifies the compression format from a stream prefix.
// Fewer than maxMagicBytes bytes may misreport longer magics as None.
func Detect(prefix []byte) Format {
	switch {
	case bytes.HasPrefix(prefix, gzipMagic):
		return FormatGzip
	case bytes.HasPrefix(prefix, bzip2Magic):
		return FormatBzip2
	case bytes.HasPrefix(prefix, xzMagic):
		return FormatXZ
	case bytes.HasPrefix(prefix, zstdMagic):
		return FormatZstd
	case bytes.HasPrefix(prefix, lz4Magic):
		return FormatLZ4
	case bytes.HasPrefix(prefix, lzmaMagic):
		return FormatLZMA
	default:
		return FormatNone
	}
}

// NewReader sniffs r and wraps it in the matching decompressor.
// Unrecognized input passes through unchanged with FormatNone.
func NewReader(r io.Reader) (io.ReadCloser, Format, error) {
	br := bufio.NewReaderSize(r, 32*1024)
	prefix, err := br.Peek(maxMagicBytes)
	if err != nil && err != io.EOF {
		return nil, FormatNone, err
	}

	format := Detect(prefix)
	switch format {
	case FormatGzip:
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, format, err
		}
		return gr, format, nil
	case FormatBzip2:
		return io.NopCloser(bzip2.NewReader(br)), format, nil
	case FormatXZ:
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, format, err
		}
		return io.NopCloser(xr), format, nil
	case FormatLZMA:
		lr, err := lzma.NewReader(br)
		if err != nil {
			return nil, format, err
		}
		return io.NopCloser(lr), format, nil
	case FormatZstd:
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, format, err
		}
		return &zstdReadCloser{zr}, format, nil
	case FormatLZ4:
		return io.NopCloser(lz4.NewReader(br)), format, nil
	default:
		return io.NopCloser(br), FormatNone, nil
	}
}

// zstdReadCloser adapts the zstd decoder's errorless Close.
type zstdReadCloser struct {
	*zstd.Decoder
}

func (z *zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}
