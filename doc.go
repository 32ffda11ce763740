// Package tarstream reads and extracts tar archives from seekable
// byte streams.
//
// An Archive wraps any io.ReadSeeker — a file, an in-memory buffer, or
// a spooled decompression output — behind a serialized stream handle.
// Entries walks the archive's 512-byte header blocks in order,
// resolving GNU long-name and PAX metadata, and yields one Entry per
// member. Every Entry is an independently readable view over its
// payload: reads address the stream by absolute offset, so entries can
// be consumed out of order, interleaved, or from concurrent
// goroutines without corrupting each other.
//
//	arc := tarstream.New(f)
//	it, err := arc.Entries(ctx)
//	for {
//		e, err := it.Next(ctx)
//		if err == io.EOF {
//			break
//		}
//		// e.Path(), e.Read(...), e.Unpack(ctx, dst)
//	}
//
// Unpack reconstructs the archive's tree on the filesystem, deferring
// directory modes until their contents exist. Archive writing is out
// of scope; the header subpackage can synthesize individual header
// blocks for fixtures and round-trip checks.
package tarstream
