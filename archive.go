package tarstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/meigma/tarstream/header"
	"github.com/meigma/tarstream/internal/source"
)

// Archive reads members from a seekable tar stream.
//
// The underlying stream is held behind a serialized handle, so the
// traversal and any number of live entries may read concurrently; each
// access re-seeks to its own absolute offset before reading.
// Configuration is immutable after New.
type Archive struct {
	src    *source.Handle
	cfg    config
	logger *slog.Logger
}

type config struct {
	preservePerms     bool
	preserveMtime     bool
	preserveOwnership bool
	unpackXattrs      bool
	overwrite         bool
	ignoreZeros       bool
	mask              fs.FileMode
	workers           int
}

// New creates an Archive over r positioned at the start of the stream.
//
// By default permissions, modification times and ownership are
// preserved on unpack; overwriting, xattrs and trailing-garbage
// tolerance are off.
func New(r io.ReadSeeker, opts ...Option) *Archive {
	a := &Archive{
		src: source.NewHandle(r),
		cfg: config{
			preservePerms:     true,
			preserveMtime:     true,
			preserveOwnership: true,
			workers:           1,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a.logger
}

// Entries validates the start of the stream and returns a traversal
// positioned at offset 0.
//
// An empty stream, a stream shorter than one block, or a stream whose
// first block is entirely zero is an invalid archive, not a valid empty
// one; Entries fails with ErrInvalidHeader at this boundary.
func (a *Archive) Entries(ctx context.Context) (*Entries, error) {
	return a.entries(ctx, false)
}

// RawEntries returns a traversal that yields every raw header in the
// archive verbatim, including GNU long-name, long-link and PAX
// metadata pseudo entries that Entries resolves and hides.
func (a *Archive) RawEntries(ctx context.Context) (*Entries, error) {
	return a.entries(ctx, true)
}

func (a *Archive) entries(ctx context.Context, raw bool) (*Entries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var block [header.BlockSize]byte
	if _, err := a.src.ReadFull(block[:], 0); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: stream shorter than one block", ErrInvalidHeader)
		}
		return nil, err
	}
	if isZeroBlock(block[:]) {
		return nil, fmt.Errorf("%w: first block is all zero", ErrInvalidHeader)
	}
	return &Entries{arc: a, raw: raw}, nil
}

func isZeroBlock(b []byte) bool {
	return bytes.Count(b, []byte{0}) == len(b)
}

// ArchiveFile wraps an Archive with its underlying file handle.
// Close must be called to release the file.
type ArchiveFile struct {
	*Archive
	file *os.File
}

// Close closes the underlying archive file.
func (af *ArchiveFile) Close() error {
	if af.file == nil {
		return nil
	}
	err := af.file.Close()
	af.file = nil
	return err
}

// OpenFile opens a tar archive from the filesystem.
// The returned ArchiveFile must be closed to release the file handle.
func OpenFile(path string, opts ...Option) (*ArchiveFile, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return &ArchiveFile{Archive: New(f, opts...), file: f}, nil
}
