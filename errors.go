package tarstream

import (
	"errors"

	"github.com/meigma/tarstream/header"
)

// Sentinel errors for archive traversal and extraction.
var (
	// ErrInvalidHeader is returned when the stream does not begin with a
	// plausible header, or a zero block appears where a header must be.
	ErrInvalidHeader = errors.New("tarstream: invalid header")

	// ErrTruncated is returned when the stream ends inside a header
	// block or before a member's declared payload size.
	ErrTruncated = errors.New("tarstream: truncated archive")

	// ErrDuplicateMetadata is returned when a second long-name, long-link
	// or PAX header arrives before a real member consumes the first.
	ErrDuplicateMetadata = errors.New("tarstream: duplicate metadata header")

	// ErrOrphanedMetadata is returned when the archive ends while
	// long-name or PAX metadata is still pending.
	ErrOrphanedMetadata = errors.New("tarstream: metadata header without member")

	// ErrSizeOverflow is returned when offset arithmetic exceeds the
	// representable range.
	ErrSizeOverflow = errors.New("tarstream: size overflow")

	// ErrInvalidInput is returned for unusable entry fields, such as a
	// symlink without a target or a path escaping the destination.
	ErrInvalidInput = errors.New("tarstream: invalid input")

	// ErrExists is returned when the destination already exists and
	// overwriting is disabled.
	ErrExists = errors.New("tarstream: destination exists")
)

// Codec errors re-exported from the header package.
var (
	// ErrChecksum is returned when a header checksum does not verify.
	ErrChecksum = header.ErrChecksum

	// ErrFormat is returned when a header has an unrecognized magic or
	// holds bytes outside the permitted character sets.
	ErrFormat = header.ErrFormat
)
