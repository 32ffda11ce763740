package tarstream

import (
	"bytes"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meigma/tarstream/header"
)

// fixtureMtime keeps synthesized archives deterministic.
var fixtureMtime = time.Unix(1700000000, 0)

// fixture assembles a tar stream in memory block by block.
type fixture struct {
	buf bytes.Buffer
}

// add appends one member: a header block followed by the payload padded
// to the block boundary. mods run right before the checksum is stored,
// so they can override any field the defaults set.
func (f *fixture) add(t *testing.T, typ header.Type, path string, payload []byte, mods ...func(h *header.Header)) {
	t.Helper()

	h := header.New(header.FormatUSTAR)
	require.NoError(t, h.SetPath(path))
	h.SetType(typ)
	h.SetSize(int64(len(payload)))
	h.SetMode(0o644)
	h.SetModTime(fixtureMtime)
	for _, mod := range mods {
		mod(h)
	}
	h.SetChecksum()
	f.buf.Write(h.Bytes())
	f.writePayload(payload)
}

func (f *fixture) addFile(t *testing.T, path, content string, mods ...func(h *header.Header)) {
	t.Helper()
	f.add(t, header.TypeReg, path, []byte(content), mods...)
}

func (f *fixture) addDir(t *testing.T, path string, mode fs.FileMode) {
	t.Helper()
	f.add(t, header.TypeDir, path, nil, func(h *header.Header) {
		h.SetMode(mode)
	})
}

func (f *fixture) addSymlink(t *testing.T, path, target string) {
	t.Helper()
	f.add(t, header.TypeSymlink, path, nil, func(h *header.Header) {
		require.NoError(t, h.SetLinkName(target))
	})
}

// addLongName appends a GNU long-name pseudo entry carrying path. The
// caller follows up with the real member, typically under a truncated
// name.
func (f *fixture) addLongName(t *testing.T, path string) {
	t.Helper()
	f.add(t, header.TypeGNULongName, "././@LongLink", append([]byte(path), 0))
}

func (f *fixture) addLongLink(t *testing.T, target string) {
	t.Helper()
	f.add(t, header.TypeGNULongLink, "././@LongLink", append([]byte(target), 0))
}

// addPax appends a PAX extended header with the given records, in the
// order given.
func (f *fixture) addPax(t *testing.T, typ header.Type, records ...[2]string) {
	t.Helper()
	var payload bytes.Buffer
	for _, r := range records {
		payload.WriteString(paxRecordLine(r[0], r[1]))
	}
	f.add(t, typ, "pax-header", payload.Bytes())
}

// terminator appends the two zero blocks ending a well-formed archive.
func (f *fixture) terminator() {
	f.buf.Write(make([]byte, 2*header.BlockSize))
}

// raw appends arbitrary bytes verbatim.
func (f *fixture) raw(b []byte) {
	f.buf.Write(b)
}

func (f *fixture) reader() *bytes.Reader {
	return bytes.NewReader(f.buf.Bytes())
}

// bytesTruncated drops n trailing bytes from the assembled stream.
func (f *fixture) bytesTruncated(n int) *bytes.Reader {
	b := f.buf.Bytes()
	return bytes.NewReader(b[:len(b)-n])
}

func (f *fixture) writePayload(payload []byte) {
	f.buf.Write(payload)
	if pad := len(payload) % header.BlockSize; pad != 0 {
		f.buf.Write(make([]byte, header.BlockSize-pad))
	}
}

// paxRecordLine renders one "%d %s=%s\n" record; the leading decimal
// counts its own digits, so the length is found by iterating.
func paxRecordLine(key, value string) string {
	content := len(key) + len(value) + 3 // space, '=', newline
	total := content + 1
	for {
		d := len(fmt.Sprint(total))
		if content+d == total {
			return fmt.Sprintf("%d %s=%s\n", total, key, value)
		}
		total = content + d
	}
}
