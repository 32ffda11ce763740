// Package source serializes access to a single seekable byte stream.
//
// A tar archive has exactly one physical cursor, but a traversal and any
// number of live entries each hold an independent logical position.
// Handle reconciles the two: every read states its absolute offset, and
// the handle seeks before reading whenever the physical position
// disagrees. Seek and read happen under one mutex hold, so concurrent
// callers can interleave reads without corrupting each other's bytes.
package source

import (
	"fmt"
	"io"
	"sync"
)

// posUnknown marks the physical position as stale after a failed
// operation, forcing the next read to re-seek.
const posUnknown = -1

// Handle wraps an io.ReadSeeker behind a mutex and tracks the stream's
// physical position. The raw stream is never exposed; all access goes
// through offset-addressed reads.
type Handle struct {
	mu  sync.Mutex
	rs  io.ReadSeeker
	pos int64
}

// NewHandle wraps rs. The stream's current position is treated as
// unknown, so the first read always seeks.
func NewHandle(rs io.ReadSeeker) *Handle {
	return &Handle{rs: rs, pos: posUnknown}
}

// ReadAt positions the stream at off and issues a single read into p.
// The seek and read are atomic with respect to other callers. Partial
// reads are returned as-is; io.EOF is surfaced to the caller.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readLocked(p, off)
}

// ReadFull positions the stream at off and reads until p is full, EOF,
// or an error, all under a single lock hold so no other caller's seek
// can interleave. It follows io.ReadFull semantics: io.EOF when zero
// bytes were read, io.ErrUnexpectedEOF on a partial fill.
func (h *Handle) ReadFull(p []byte, off int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	total := 0
	for total < len(p) {
		n, err := h.readLocked(p[total:], off+int64(total))
		total += n
		if err == io.EOF {
			if total == 0 {
				return 0, io.EOF
			}
			return total, io.ErrUnexpectedEOF
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (h *Handle) readLocked(p []byte, off int64) (int, error) {
	if h.pos != off {
		if _, err := h.rs.Seek(off, io.SeekStart); err != nil {
			h.pos = posUnknown
			return 0, fmt.Errorf("seek to %d: %w", off, err)
		}
		h.pos = off
	}
	n, err := h.rs.Read(p)
	if n > 0 {
		h.pos = off + int64(n)
	} else if err != nil && err != io.EOF {
		h.pos = posUnknown
	}
	return n, err
}
