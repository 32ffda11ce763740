package tarstream

import (
	"io/fs"
	"log/slog"
)

// Option configures an Archive.
type Option func(*Archive)

// WithPreservePermissions controls whether unpack applies the
// permission bits recorded in each header (default: true).
func WithPreservePermissions(preserve bool) Option {
	return func(a *Archive) {
		a.cfg.preservePerms = preserve
	}
}

// WithPreserveMtime controls whether unpack restores recorded
// modification times (default: true).
func WithPreserveMtime(preserve bool) Option {
	return func(a *Archive) {
		a.cfg.preserveMtime = preserve
	}
}

// WithPreserveOwnership controls whether unpack restores recorded
// uid/gid ownership (default: true). Ownership changes that the
// process lacks privileges for are skipped, matching the behavior of
// unprivileged tar implementations.
func WithPreserveOwnership(preserve bool) Option {
	return func(a *Archive) {
		a.cfg.preserveOwnership = preserve
	}
}

// WithUnpackXattrs controls whether PAX SCHILY.xattr records are
// applied as extended attributes on unpacked files (default: false).
// Only effective on platforms with xattr support.
func WithUnpackXattrs(enabled bool) Option {
	return func(a *Archive) {
		a.cfg.unpackXattrs = enabled
	}
}

// WithOverwrite allows unpack to replace existing files and symlinks.
// By default an existing destination fails with ErrExists.
func WithOverwrite(overwrite bool) Option {
	return func(a *Archive) {
		a.cfg.overwrite = overwrite
	}
}

// WithIgnoreZeros tolerates trailing non-zero garbage after the last
// member instead of requiring a clean zero-block terminator.
//
// With the flag enabled a zero block presented as a header is an error:
// the flag means "the terminator may be missing", not "zero headers are
// data". The traversal then ends only at end-of-stream on a block
// boundary. With the flag disabled (default) a zero block is the normal
// end-of-archive sentinel.
func WithIgnoreZeros(ignore bool) Option {
	return func(a *Archive) {
		a.cfg.ignoreZeros = ignore
	}
}

// WithMask clears the given permission bits from every mode applied
// during unpack, like a umask. Only meaningful while permission
// preservation is enabled.
func WithMask(mask fs.FileMode) Option {
	return func(a *Archive) {
		a.cfg.mask = mask & fs.ModePerm
	}
}

// WithUnpackWorkers sets the number of goroutines used to write regular
// file payloads during Unpack. Values <= 1 force serial extraction
// (the default). Directories and link entries are always applied in
// archive order regardless of the worker count.
func WithUnpackWorkers(n int) Option {
	return func(a *Archive) {
		if n < 1 {
			n = 1
		}
		a.cfg.workers = n
	}
}

// WithLogger attaches a logger for per-entry debug events.
// A nil logger (the default) discards all output.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}
