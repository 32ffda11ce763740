package source

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestReadAtRepositions(t *testing.T) {
	t.Parallel()

	data := []byte("0123456789abcdef")
	h := NewHandle(bytes.NewReader(data))

	buf := make([]byte, 4)
	n, err := h.ReadAt(buf, 8)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "89ab", string(buf))

	// Jump backwards; the handle must re-seek, not read forward.
	n, err = h.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "0123", string(buf))

	// Sequential continuation needs no seek but stays correct.
	n, err = h.ReadAt(buf, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "4567", string(buf))
}

func TestReadFullSemantics(t *testing.T) {
	t.Parallel()

	data := []byte("short")
	h := NewHandle(bytes.NewReader(data))

	// Full read within bounds.
	buf := make([]byte, 5)
	n, err := h.ReadFull(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "short", string(buf))

	// Zero bytes available: plain EOF.
	_, err = h.ReadFull(buf, 5)
	assert.Equal(t, io.EOF, err)

	// Partial fill: unexpected EOF.
	n, err = h.ReadFull(buf, 2)
	assert.Equal(t, io.ErrUnexpectedEOF, err)
	assert.Equal(t, 3, n)
}

func TestConcurrentReadersSeeOwnBytes(t *testing.T) {
	t.Parallel()

	// Two distinct regions; concurrent readers hammer both and must
	// never observe the other region's bytes.
	data := append(bytes.Repeat([]byte{'A'}, 4096), bytes.Repeat([]byte{'B'}, 4096)...)
	h := NewHandle(bytes.NewReader(data))

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		region := byte('A')
		off := int64(0)
		if i%2 == 1 {
			region = 'B'
			off = 4096
		}
		g.Go(func() error {
			buf := make([]byte, 128)
			for iter := 0; iter < 200; iter++ {
				pos := off + int64(iter%30)*128
				n, err := h.ReadFull(buf, pos)
				if err != nil {
					return err
				}
				for _, c := range buf[:n] {
					if c != region {
						t.Errorf("read %q from region %q at offset %d", c, region, pos)
						return nil
					}
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
