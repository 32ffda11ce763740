package tarstream

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/meigma/tarstream/header"
	"github.com/meigma/tarstream/internal/sizing"
)

// maxMetadataSize caps the payload of long-name, long-link and PAX
// pseudo entries so a hostile size field cannot force a huge
// allocation before validation has a chance to reject the archive.
const maxMetadataSize = 1 << 20

// Entries is a sequential traversal over the members of an archive.
//
// Next yields members in strict archive byte order. The traversal is
// sticky: once it reports io.EOF or an error, every later call returns
// the same outcome without touching the stream. Entries obtained from
// one traversal stay readable after the traversal advances; each holds
// its own cursor against the shared stream handle.
type Entries struct {
	arc     *Archive
	next    uint64
	started bool
	done    bool
	err     error
	raw     bool

	pendingPath []byte
	pendingLink []byte
	pendingPax  map[string]string
	globalPax   map[string]string
}

// Next advances the traversal and returns the next resolved member.
// Clean end of archive is reported as io.EOF.
//
// GNU long-name/long-link and PAX pseudo entries are consumed
// internally and folded into the next real member; a raw traversal
// (RawEntries) yields them verbatim instead.
func (it *Entries) Next(ctx context.Context) (*Entry, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.done {
		return nil, io.EOF
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := it.nextRaw()
		if err != nil {
			return nil, it.fail(err)
		}
		if e == nil {
			if it.pendingPath != nil || it.pendingLink != nil || it.pendingPax != nil {
				return nil, it.fail(fmt.Errorf("%w: archive ended before the described member", ErrOrphanedMetadata))
			}
			it.done = true
			return nil, io.EOF
		}
		if it.raw {
			return e, nil
		}

		switch t := e.hdr.Type(); t {
		case header.TypeGNULongName:
			if it.pendingPath != nil {
				return nil, it.fail(fmt.Errorf("%w: second long-name before a member", ErrDuplicateMetadata))
			}
			buf, err := it.readMetadata(e)
			if err != nil {
				return nil, it.fail(err)
			}
			it.pendingPath = buf
		case header.TypeGNULongLink:
			if it.pendingLink != nil {
				return nil, it.fail(fmt.Errorf("%w: second long-link before a member", ErrDuplicateMetadata))
			}
			buf, err := it.readMetadata(e)
			if err != nil {
				return nil, it.fail(err)
			}
			it.pendingLink = buf
		case header.TypeXHeader:
			if it.pendingPax != nil {
				return nil, it.fail(fmt.Errorf("%w: second PAX header before a member", ErrDuplicateMetadata))
			}
			recs, err := it.readPax(e)
			if err != nil {
				return nil, it.fail(err)
			}
			it.pendingPax = recs
		case header.TypeXGlobalHeader:
			recs, err := it.readPax(e)
			if err != nil {
				return nil, it.fail(err)
			}
			if it.globalPax == nil {
				it.globalPax = make(map[string]string, len(recs))
			}
			for k, v := range recs {
				it.globalPax[k] = v
			}
		default:
			if err := it.resolve(e); err != nil {
				return nil, it.fail(err)
			}
			it.arc.log().Debug("entry", "path", e.Path(), "type", string(rune(t)), "size", e.size)
			return e, nil
		}
	}
}

func (it *Entries) fail(err error) error {
	it.err = err
	return err
}

// nextRaw reads and validates one header block at the current offset.
// A nil entry with nil error means clean end of archive.
func (it *Entries) nextRaw() (*Entry, error) {
	if !sizing.FitsInt64(it.next) {
		return nil, fmt.Errorf("%w: header offset %d", ErrSizeOverflow, it.next)
	}

	var block [header.BlockSize]byte
	if _, err := it.arc.src.ReadFull(block[:], int64(it.next)); err != nil {
		switch err {
		case io.EOF:
			// Truncation at a block boundary is tolerated as end of
			// archive; a partial block below is not.
			return nil, nil
		case io.ErrUnexpectedEOF:
			return nil, fmt.Errorf("%w: partial header block at offset %d", ErrTruncated, it.next)
		default:
			return nil, err
		}
	}

	if isZeroBlock(block[:]) {
		if !it.started {
			return nil, fmt.Errorf("%w: first block is all zero", ErrInvalidHeader)
		}
		if it.arc.cfg.ignoreZeros {
			// The flag expects trailing non-zero garbage, not zero
			// blocks posing as headers; the two are mutually exclusive.
			return nil, fmt.Errorf("%w: zero block at offset %d with ignore-zeros enabled", ErrInvalidHeader, it.next)
		}
		return nil, nil
	}
	it.started = true

	hdr, err := header.FromBlock(block[:])
	if err != nil {
		return nil, err
	}
	if err := hdr.Validate(); err != nil {
		return nil, fmt.Errorf("offset %d: %w", it.next, err)
	}
	size, err := hdr.Size()
	if err != nil {
		return nil, fmt.Errorf("offset %d: %w", it.next, err)
	}

	headerOff := it.next
	dataOff, ok := sizing.AddUint64(headerOff, header.BlockSize)
	if !ok {
		return nil, fmt.Errorf("%w: payload offset", ErrSizeOverflow)
	}
	if err := it.advance(dataOff, uint64(size)); err != nil {
		return nil, err
	}

	return &Entry{
		arc:       it.arc,
		hdr:       hdr,
		size:      uint64(size),
		headerOff: headerOff,
		dataOff:   dataOff,
	}, nil
}

// advance moves the next-header offset past a payload of the given
// size, rounded up to the block boundary, with overflow checks.
func (it *Entries) advance(dataOff, size uint64) error {
	padded, ok := sizing.RoundBlock(size, header.BlockSize)
	if !ok {
		return fmt.Errorf("%w: payload of %d bytes", ErrSizeOverflow, size)
	}
	next, ok := sizing.AddUint64(dataOff, padded)
	if !ok {
		return fmt.Errorf("%w: next header offset", ErrSizeOverflow)
	}
	it.next = next
	return nil
}

// resolve folds pending metadata into a real member before yielding it.
func (it *Entries) resolve(e *Entry) error {
	if len(it.globalPax) > 0 || it.pendingPax != nil {
		merged := make(map[string]string, len(it.globalPax)+len(it.pendingPax))
		for k, v := range it.globalPax {
			merged[k] = v
		}
		for k, v := range it.pendingPax {
			merged[k] = v
		}
		e.pax = merged
	}
	e.longPath = it.pendingPath
	e.longLink = it.pendingLink
	it.pendingPath = nil
	it.pendingLink = nil
	it.pendingPax = nil

	// A PAX size record overrides the header size field (used when the
	// payload exceeds the octal field's range). The traversal offset
	// was advanced from the header field, so recompute it.
	if v, ok := e.pax[paxSize]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: PAX size record %q", ErrInvalidHeader, v)
		}
		e.size = uint64(n)
		if err := it.advance(e.dataOff, e.size); err != nil {
			return err
		}
	}
	return nil
}

// readMetadata drains a metadata pseudo entry's payload into memory.
func (it *Entries) readMetadata(e *Entry) ([]byte, error) {
	if e.size > maxMetadataSize {
		return nil, fmt.Errorf("%w: metadata payload of %d bytes", ErrInvalidHeader, e.size)
	}
	return e.ReadAll()
}

func (it *Entries) readPax(e *Entry) (map[string]string, error) {
	buf, err := it.readMetadata(e)
	if err != nil {
		return nil, err
	}
	recs, err := parsePaxRecords(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	return recs, nil
}
