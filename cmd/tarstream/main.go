// Command tarstream lists and extracts tar archives, transparently
// unwrapping gzip/bzip2/xz/zstd/lz4 compression.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/meigma/tarstream"
	"github.com/meigma/tarstream/compression"
	"github.com/meigma/tarstream/header"
)

func main() {
	app := &cli.App{
		Name:  "tarstream",
		Usage: "List and extract tar archives",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "list",
				Aliases:   []string{"t"},
				Usage:     "List archive members",
				ArgsUsage: "ARCHIVE",
				Action:    listAction,
			},
			{
				Name:      "extract",
				Aliases:   []string{"x"},
				Usage:     "Extract an archive",
				ArgsUsage: "ARCHIVE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"C"},
						Value:   ".",
						Usage:   "Destination directory",
					},
					&cli.BoolFlag{
						Name:  "overwrite",
						Usage: "Replace existing files",
					},
					&cli.BoolFlag{
						Name:  "no-perms",
						Usage: "Do not restore permission bits",
					},
					&cli.BoolFlag{
						Name:  "no-mtime",
						Usage: "Do not restore modification times",
					},
					&cli.BoolFlag{
						Name:  "xattrs",
						Usage: "Restore PAX extended attributes",
					},
					&cli.BoolFlag{
						Name:  "ignore-zeros",
						Usage: "Tolerate trailing garbage after the last member",
					},
					&cli.IntFlag{
						Name:  "workers",
						Value: 1,
						Usage: "Concurrent file writers",
					},
				},
				Action: extractAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func logger(c *cli.Context) *slog.Logger {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openArchive opens path as a seekable tar stream. Compressed archives
// are spooled to a temporary file first, since tar needs seeking and
// decompressors only stream. The cleanup function releases both.
func openArchive(path string, opts ...tarstream.Option) (*tarstream.Archive, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	cr, format, err := compression.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if format == compression.FormatNone {
		// Plain tar: read the file directly. The sniffing reader is
		// discarded; reopen at offset 0.
		cr.Close()
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, nil, err
		}
		return tarstream.New(f, opts...), f.Close, nil
	}

	spool, err := os.CreateTemp("", "tarstream-*.tar")
	if err != nil {
		cr.Close()
		f.Close()
		return nil, nil, err
	}
	cleanup := func() error {
		err := spool.Close()
		if rmErr := os.Remove(spool.Name()); err == nil {
			err = rmErr
		}
		return err
	}
	if _, err := io.Copy(spool, cr); err != nil {
		cr.Close()
		f.Close()
		_ = cleanup() //nolint:errcheck // copy error takes precedence
		return nil, nil, fmt.Errorf("decompress %s: %w", format, err)
	}
	cr.Close()
	f.Close()
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		_ = cleanup() //nolint:errcheck // seek error takes precedence
		return nil, nil, err
	}
	return tarstream.New(spool, opts...), cleanup, nil
}

func listAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: tarstream list ARCHIVE", 2)
	}
	arc, cleanup, err := openArchive(c.Args().First(), tarstream.WithLogger(logger(c)))
	if err != nil {
		return err
	}
	defer cleanup() //nolint:errcheck // read-only cleanup

	it, err := arc.Entries(c.Context)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for {
		e, err := it.Next(c.Context)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			typeLabel(e.Header().Type()), e.Size(),
			e.Header().ModTime().Format("2006-01-02 15:04"), e.Path())
	}
	return w.Flush()
}

func extractAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: tarstream extract ARCHIVE", 2)
	}
	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
	defer cancel()

	opts := []tarstream.Option{
		tarstream.WithLogger(logger(c)),
		tarstream.WithOverwrite(c.Bool("overwrite")),
		tarstream.WithPreservePermissions(!c.Bool("no-perms")),
		tarstream.WithPreserveMtime(!c.Bool("no-mtime")),
		tarstream.WithUnpackXattrs(c.Bool("xattrs")),
		tarstream.WithIgnoreZeros(c.Bool("ignore-zeros")),
		tarstream.WithUnpackWorkers(c.Int("workers")),
	}
	arc, cleanup, err := openArchive(c.Args().First(), opts...)
	if err != nil {
		return err
	}
	defer cleanup() //nolint:errcheck // read-only cleanup

	return arc.Unpack(ctx, c.String("dir"))
}

func typeLabel(t header.Type) string {
	switch {
	case t.IsRegular():
		return "-"
	case t == header.TypeDir:
		return "d"
	case t == header.TypeSymlink:
		return "l"
	case t == header.TypeLink:
		return "h"
	case t == header.TypeChar:
		return "c"
	case t == header.TypeBlock:
		return "b"
	case t == header.TypeFifo:
		return "p"
	default:
		return "?"
	}
}
