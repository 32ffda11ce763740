package tarstream

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var f fixture
	f.addFile(t, "on-disk.txt", "from a file")
	f.terminator()

	path := filepath.Join(t.TempDir(), "fixture.tar")
	require.NoError(t, os.WriteFile(path, f.buf.Bytes(), 0o644))

	arc, err := OpenFile(path)
	require.NoError(t, err)
	defer arc.Close() //nolint:errcheck // read-only archive

	it, err := arc.Entries(ctx)
	require.NoError(t, err)

	e, err := it.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "on-disk.txt", e.Path())

	data, err := e.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "from a file", string(data))

	_, err = it.Next(ctx)
	assert.Equal(t, io.EOF, err)
	require.NoError(t, arc.Close())
}

func TestOpenFileMissing(t *testing.T) {
	t.Parallel()

	_, err := OpenFile(filepath.Join(t.TempDir(), "nope.tar"))
	require.Error(t, err)
}
