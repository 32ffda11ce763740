package tarstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/tarstream/header"
)

// Unpack extracts the whole archive into dst, creating it if absent.
//
// Regular files, symlinks and special entries are applied in archive
// order (regular file payloads may be written by WithUnpackWorkers
// goroutines). Directory entries are deferred and materialized after
// the traversal completes, in reverse lexicographic path order, so a
// parent's final mode — possibly read-only — is applied only after its
// children already exist.
//
// Unpack does not roll back on failure; partially written files remain
// visible and a retry with WithOverwrite can resume.
func (a *Archive) Unpack(ctx context.Context, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	dst, err := filepath.EvalSymlinks(dst)
	if err != nil {
		return fmt.Errorf("canonicalize destination: %w", err)
	}

	it, err := a.Entries(ctx)
	if err != nil {
		return err
	}

	var g *errgroup.Group
	gctx := ctx
	if a.cfg.workers > 1 {
		g, gctx = errgroup.WithContext(ctx)
		g.SetLimit(a.cfg.workers)
	}
	wait := func() error {
		if g == nil {
			return nil
		}
		return g.Wait()
	}

	var dirs []*Entry
	for {
		e, err := it.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = wait() //nolint:errcheck // traversal error takes precedence
			return err
		}
		switch {
		case e.hdr.Type() == header.TypeDir:
			dirs = append(dirs, e)
		case g != nil && e.hdr.Type().IsRegular():
			g.Go(func() error {
				return e.Unpack(gctx, dst)
			})
		default:
			if uerr := e.Unpack(ctx, dst); uerr != nil {
				_ = wait() //nolint:errcheck // first error takes precedence
				return uerr
			}
		}
	}
	if err := wait(); err != nil {
		return err
	}

	sort.Slice(dirs, func(i, j int) bool {
		return dirs[i].Path() > dirs[j].Path()
	})
	for _, e := range dirs {
		if err := e.Unpack(ctx, dst); err != nil {
			return err
		}
	}

	a.log().Debug("unpack complete", "dst", dst, "deferred_dirs", len(dirs))
	return nil
}

// Unpack materializes this entry under dst.
//
// Paths that escape the destination are rejected with ErrInvalidInput.
// Special types (devices, fifos) are created best-effort and never fail
// the unpack; unknown types are skipped. Permission bits, ownership,
// modification time and xattrs are applied after creation according to
// the archive's configuration.
func (e *Entry) Unpack(ctx context.Context, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := e.Path()
	if name == "" {
		return fmt.Errorf("%w: entry has empty path", ErrInvalidInput)
	}
	rel := filepath.FromSlash(strings.TrimSuffix(name, "/"))
	if rel == "" || !filepath.IsLocal(rel) {
		return fmt.Errorf("%w: path %q escapes the destination", ErrInvalidInput, name)
	}
	target := filepath.Join(dst, rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}

	t := e.hdr.Type()
	switch {
	case t == header.TypeDir:
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	case t == header.TypeSymlink:
		if err := e.makeSymlink(target); err != nil {
			return err
		}
	case t == header.TypeLink:
		// Best effort: hard links may cross devices or reference
		// members filtered out earlier; failure must not abort the
		// whole unpack.
		if err := e.makeHardLink(dst, target); err != nil {
			e.arc.log().Debug("hard link skipped", "path", name, "error", err)
			return nil
		}
	case t.IsRegular():
		if err := e.writeFile(ctx, target); err != nil {
			return err
		}
	case t == header.TypeChar || t == header.TypeBlock || t == header.TypeFifo:
		if err := e.makeSpecial(target, t); err != nil {
			e.arc.log().Debug("special entry skipped", "path", name, "error", err)
			return nil
		}
	default:
		e.arc.log().Debug("unsupported entry type skipped", "path", name, "type", string(rune(t)))
		return nil
	}

	return e.applyAttrs(target, t)
}

func (e *Entry) makeSymlink(target string) error {
	link := e.LinkName()
	if link == "" {
		return fmt.Errorf("%w: symlink %q missing target", ErrInvalidInput, e.Path())
	}
	err := os.Symlink(link, target)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("create symlink: %w", err)
	}
	if !e.arc.cfg.overwrite {
		return fmt.Errorf("%w: %s", ErrExists, target)
	}
	if err := os.Remove(target); err != nil {
		return fmt.Errorf("replace symlink: %w", err)
	}
	if err := os.Symlink(link, target); err != nil {
		return fmt.Errorf("create symlink: %w", err)
	}
	return nil
}

func (e *Entry) makeHardLink(dst, target string) error {
	link := e.LinkName()
	if link == "" {
		return fmt.Errorf("%w: hard link %q missing target", ErrInvalidInput, e.Path())
	}
	rel := filepath.FromSlash(link)
	if !filepath.IsLocal(rel) {
		return fmt.Errorf("%w: link target %q escapes the destination", ErrInvalidInput, link)
	}
	if e.arc.cfg.overwrite {
		_ = os.Remove(target) //nolint:errcheck // absent target is fine
	}
	return os.Link(filepath.Join(dst, rel), target)
}

func (e *Entry) writeFile(ctx context.Context, target string) error {
	flags := os.O_WRONLY | os.O_CREATE
	if e.arc.cfg.overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(target, flags, 0o644) //nolint:gosec // path is traversal-checked above
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, target)
		}
		return fmt.Errorf("create file: %w", err)
	}
	_, cerr := copyWithContext(ctx, f, e)
	if closeErr := f.Close(); cerr == nil {
		cerr = closeErr
	}
	if cerr != nil {
		return fmt.Errorf("write %s: %w", target, cerr)
	}
	return nil
}

// applyAttrs applies permissions, ownership, times and xattrs per the
// archive configuration. Symlinks only take ownership; their mode and
// times are not portably settable.
func (e *Entry) applyAttrs(target string, t header.Type) error {
	cfg := e.arc.cfg
	symlink := t == header.TypeSymlink

	if cfg.preserveOwnership {
		if err := lchown(target, e.hdr.UID(), e.hdr.GID()); err != nil {
			return fmt.Errorf("chown %s: %w", target, err)
		}
	}
	if cfg.preservePerms && !symlink {
		mode := e.hdr.Mode() &^ cfg.mask
		if err := os.Chmod(target, mode); err != nil {
			return fmt.Errorf("chmod %s: %w", target, err)
		}
	}
	if cfg.preserveMtime && !symlink {
		mtime := e.hdr.ModTime()
		if err := os.Chtimes(target, mtime, mtime); err != nil {
			return fmt.Errorf("chtimes %s: %w", target, err)
		}
	}
	if cfg.unpackXattrs && !symlink && len(e.pax) > 0 {
		if err := applyXattrs(target, e.pax); err != nil {
			return fmt.Errorf("xattrs %s: %w", target, err)
		}
	}
	return nil
}

// copyWithContext copies in fixed-size chunks, checking for
// cancellation between chunks.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
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
