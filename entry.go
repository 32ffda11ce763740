package tarstream

import (
	"bytes"
	"fmt"
	"io"

	"github.com/meigma/tarstream/header"
	"github.com/meigma/tarstream/internal/sizing"
)

// Entry is one archived member: an independently readable view over the
// member's payload bytes, backed by the archive's shared stream handle.
//
// Multiple entries from the same archive may be read concurrently or
// interleaved; each keeps its own cursor and every read re-seeks to an
// absolute offset, so one entry's reads never corrupt another's.
type Entry struct {
	arc *Archive
	hdr *header.Header

	size      uint64 // declared payload length
	pos       uint64 // bytes already consumed by the caller
	headerOff uint64
	dataOff   uint64 // absolute offset of payload byte 0

	pax      map[string]string
	longPath []byte
	longLink []byte
}

// Header returns the raw decoded header for this entry.
func (e *Entry) Header() *header.Header {
	return e.hdr
}

// Size returns the declared payload size in bytes.
func (e *Entry) Size() int64 {
	return int64(e.size) //nolint:gosec // bounded by traversal overflow checks
}

// Path returns the effective member path: a GNU long-name payload wins
// over a PAX path record, which wins over the header's name field.
func (e *Entry) Path() string {
	if e.longPath != nil {
		return trimNul(e.longPath)
	}
	if p, ok := e.pax[paxPath]; ok {
		return p
	}
	return e.hdr.Path()
}

// LinkName returns the effective link target with the same precedence
// as Path, or "" for entries without one.
func (e *Entry) LinkName() string {
	if e.longLink != nil {
		return trimNul(e.longLink)
	}
	if l, ok := e.pax[paxLinkpath]; ok {
		return l
	}
	return e.hdr.LinkName()
}

// PaxRecords returns the PAX records attached to this entry, or nil.
// The map is shared; callers must not mutate it.
func (e *Entry) PaxRecords() map[string]string {
	return e.pax
}

// Read implements io.Reader over the member payload.
//
// The request is clamped to the remaining declared bytes and served at
// an absolute stream offset, so reads of different entries may be
// freely interleaved. Exhaustion is reported as io.EOF. A stream that
// ends before the declared size fails with ErrTruncated rather than
// returning a quietly short payload.
func (e *Entry) Read(p []byte) (int, error) {
	if e.pos >= e.size {
		return 0, io.EOF
	}
	if remaining := e.size - e.pos; uint64(len(p)) > remaining {
		p = p[:remaining]
	}
	off, ok := sizing.AddUint64(e.dataOff, e.pos)
	if !ok || !sizing.FitsInt64(off) {
		return 0, fmt.Errorf("%w: payload offset", ErrSizeOverflow)
	}
	n, err := e.arc.src.ReadAt(p, int64(off))
	e.pos += uint64(n) //nolint:gosec // n is non-negative per io contract
	if err == io.EOF {
		if e.pos < e.size {
			return n, fmt.Errorf("%w: payload ends after %d of %d bytes", ErrTruncated, e.pos, e.size)
		}
		err = nil
	}
	return n, err
}

// ReadAll reads the entire remaining payload.
// A stream shorter than the declared size fails with ErrTruncated.
func (e *Entry) ReadAll() ([]byte, error) {
	remaining := e.size - e.pos
	if remaining == 0 {
		return nil, nil
	}
	if !sizing.FitsInt64(remaining) {
		return nil, fmt.Errorf("%w: payload of %d bytes", ErrSizeOverflow, remaining)
	}
	buf := make([]byte, remaining)
	if _, err := io.ReadFull(e, buf); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, fmt.Errorf("%w: payload ends after %d of %d bytes", ErrTruncated, e.pos, e.size)
		}
		return nil, err
	}
	return buf, nil
}

// WriteTo implements io.WriterTo with a fixed-size chunked copy.
func (e *Entry) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, rerr := e.Read(buf)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
			if wn < n {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

func trimNul(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
