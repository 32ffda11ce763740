package tarstream

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/tarstream/header"
)

func TestUnpackTree(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// The read-only directory is declared before its contents; only the
	// deferred directory pass makes this layout extractable.
	var f fixture
	f.addDir(t, "sub/", 0o500)
	f.add(t, header.TypeReg, "sub/inner.txt", []byte("inner"), func(h *header.Header) {
		h.SetMode(0o640)
	})
	f.addFile(t, "top.txt", "top")
	f.terminator()

	dst := t.TempDir()
	// Let TempDir cleanup delete the read-only directory's contents.
	t.Cleanup(func() { _ = os.Chmod(filepath.Join(dst, "sub"), 0o755) })
	require.NoError(t, New(f.reader()).Unpack(ctx, dst))

	data, err := os.ReadFile(filepath.Join(dst, "sub", "inner.txt"))
	require.NoError(t, err)
	assert.Equal(t, "inner", string(data))

	data, err = os.ReadFile(filepath.Join(dst, "top.txt"))
	require.NoError(t, err)
	assert.Equal(t, "top", string(data))

	info, err := os.Stat(filepath.Join(dst, "sub"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o500), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(dst, "sub", "inner.txt"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o640), info.Mode().Perm())
}

func TestUnpackSymlink(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var f fixture
	f.addFile(t, "data.txt", "payload")
	f.addSymlink(t, "ln", "data.txt")
	f.terminator()

	dst := t.TempDir()
	require.NoError(t, New(f.reader()).Unpack(ctx, dst))

	target, err := os.Readlink(filepath.Join(dst, "ln"))
	require.NoError(t, err)
	assert.Equal(t, "data.txt", target)

	data, err := os.ReadFile(filepath.Join(dst, "ln"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestUnpackHardLink(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var f fixture
	f.addFile(t, "orig.txt", "shared")
	f.add(t, header.TypeLink, "copy.txt", nil, func(h *header.Header) {
		require.NoError(t, h.SetLinkName("orig.txt"))
	})
	f.terminator()

	dst := t.TempDir()
	require.NoError(t, New(f.reader()).Unpack(ctx, dst))

	data, err := os.ReadFile(filepath.Join(dst, "copy.txt"))
	require.NoError(t, err)
	assert.Equal(t, "shared", string(data))
}

func TestUnpackOverwrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var f fixture
	f.addFile(t, "exists.txt", "new")
	f.terminator()

	dst := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dst, "exists.txt"), []byte("old"), 0o644))

	err := New(f.reader()).Unpack(ctx, dst)
	require.ErrorIs(t, err, ErrExists)

	require.NoError(t, New(f.reader(), WithOverwrite(true)).Unpack(ctx, dst))
	data, err := os.ReadFile(filepath.Join(dst, "exists.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestUnpackRejectsTraversal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var f fixture
	f.addFile(t, "../evil.txt", "nope")
	f.terminator()

	dst := t.TempDir()
	err := New(f.reader()).Unpack(ctx, dst)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, statErr := os.Stat(filepath.Join(filepath.Dir(dst), "evil.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUnpackMask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var f fixture
	f.add(t, header.TypeReg, "wide.txt", []byte("x"), func(h *header.Header) {
		h.SetMode(0o666)
	})
	f.terminator()

	dst := t.TempDir()
	require.NoError(t, New(f.reader(), WithMask(0o022)).Unpack(ctx, dst))

	info, err := os.Stat(filepath.Join(dst, "wide.txt"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o644), info.Mode().Perm())
}

func TestUnpackPreservesMtime(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var f fixture
	f.addFile(t, "old.txt", "x")
	f.terminator()

	dst := t.TempDir()
	require.NoError(t, New(f.reader()).Unpack(ctx, dst))

	info, err := os.Stat(filepath.Join(dst, "old.txt"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(fixtureMtime))
}

func TestUnpackWorkers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var f fixture
	for i := 0; i < 8; i++ {
		f.addFile(t, fmt.Sprintf("file-%d.txt", i), fmt.Sprintf("content-%d", i))
	}
	f.terminator()

	dst := t.TempDir()
	require.NoError(t, New(f.reader(), WithUnpackWorkers(4)).Unpack(ctx, dst))

	for i := 0; i < 8; i++ {
		data, err := os.ReadFile(filepath.Join(dst, fmt.Sprintf("file-%d.txt", i)))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("content-%d", i), string(data))
	}
}

func TestUnpackContextCancelled(t *testing.T) {
	t.Parallel()

	var f fixture
	f.addFile(t, "a.txt", "a")
	f.terminator()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(f.reader()).Unpack(ctx, t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
}
