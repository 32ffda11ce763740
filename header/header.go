// Package header encodes and decodes 512-byte tar header blocks.
//
// A Header is a typed view over one raw block. It recognizes the classic
// (V7), USTAR/PAX, and GNU variants by their magic field, decodes octal
// and GNU base-256 numeric fields, and computes/validates the header
// checksum. Setters are provided so callers can synthesize headers for
// round-trip checks and test fixtures; full archive writing is out of
// scope for this module.
package header

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"
)

// BlockSize is the fixed size of every tar header and payload block.
const BlockSize = 512

// Field offsets within a header block. The layout is shared by all
// variants up to the magic field; USTAR and GNU diverge after it.
const (
	offName     = 0
	lenName     = 100
	offMode     = 100
	lenMode     = 8
	offUID      = 108
	lenUID      = 8
	offGID      = 116
	lenGID      = 8
	offSize     = 124
	lenSize     = 12
	offModTime  = 136
	lenModTime  = 12
	offChecksum = 148
	lenChecksum = 8
	offType     = 156
	offLinkName = 157
	lenLinkName = 100
	offMagic    = 257
	lenMagic    = 6
	offVersion  = 263
	lenVersion  = 2
	offUname    = 265
	lenUname    = 32
	offGname    = 297
	lenGname    = 32
	offDevMajor = 329
	lenDevMajor = 8
	offDevMinor = 337
	lenDevMinor = 8
	offPrefix   = 345
	lenPrefix   = 155
)

// Format identifies the header variant a block was written in.
type Format int

// Recognized header formats.
const (
	FormatUnknown Format = iota
	FormatV7
	FormatUSTAR
	FormatGNU
)

// String returns a human-readable format name.
func (f Format) String() string {
	switch f {
	case FormatV7:
		return "v7"
	case FormatUSTAR:
		return "ustar"
	case FormatGNU:
		return "gnu"
	default:
		return "unknown"
	}
}

// Type is the single-byte entry type tag.
type Type byte

// Entry type tags.
const (
	TypeReg     Type = '0'
	TypeRegA    Type = 0 // legacy alias for TypeReg
	TypeLink    Type = '1'
	TypeSymlink Type = '2'
	TypeChar    Type = '3'
	TypeBlock   Type = '4'
	TypeDir     Type = '5'
	TypeFifo    Type = '6'
	TypeCont    Type = '7'

	// Metadata-only pseudo entries. Their payloads describe the next
	// real member and are never yielded by a resolving traversal.
	TypeXHeader       Type = 'x'
	TypeXGlobalHeader Type = 'g'
	TypeGNULongName   Type = 'L'
	TypeGNULongLink   Type = 'K'
)

// IsMetadata reports whether the type tags a metadata-only pseudo entry.
func (t Type) IsMetadata() bool {
	switch t {
	case TypeXHeader, TypeXGlobalHeader, TypeGNULongName, TypeGNULongLink:
		return true
	}
	return false
}

// IsRegular reports whether the type tags a regular file.
func (t Type) IsRegular() bool {
	return t == TypeReg || t == TypeRegA || t == TypeCont
}

// Sentinel errors for header decoding and validation.
var (
	// ErrChecksum is returned when the stored checksum does not match
	// the computed one, or the checksum field holds invalid characters.
	ErrChecksum = errors.New("header: checksum mismatch")

	// ErrFormat is returned when the magic field is unrecognized or a
	// field holds bytes outside its permitted character set.
	ErrFormat = errors.New("header: unrecognized format")

	// ErrNumeric is returned when a numeric field cannot be decoded.
	ErrNumeric = errors.New("header: invalid numeric field")
)

var (
	magicUSTAR = []byte("ustar\x00")
	magicGNU   = []byte("ustar  \x00") // covers the version field too
	zeroBlock  [BlockSize]byte
)

// Header is a typed view over one 512-byte header block.
// It is immutable once read; the setters exist for synthesis only.
type Header struct {
	block [BlockSize]byte
}

// New returns a zeroed header stamped with the magic of the given format.
// Callers fill fields with the setters and finish with SetChecksum.
func New(f Format) *Header {
	h := &Header{}
	switch f {
	case FormatUSTAR:
		copy(h.block[offMagic:], magicUSTAR)
		copy(h.block[offVersion:], "00")
	case FormatGNU:
		copy(h.block[offMagic:], magicGNU)
	}
	return h
}

// FromBlock copies a raw 512-byte block into a Header.
// The input length must be exactly BlockSize.
func FromBlock(b []byte) (*Header, error) {
	if len(b) != BlockSize {
		return nil, fmt.Errorf("%w: block is %d bytes, want %d", ErrFormat, len(b), BlockSize)
	}
	h := &Header{}
	copy(h.block[:], b)
	return h, nil
}

// Bytes returns the raw block. The returned slice aliases the header.
func (h *Header) Bytes() []byte {
	return h.block[:]
}

// Format detects the header variant from the magic field.
func (h *Header) Format() Format {
	magic := h.block[offMagic : offVersion+lenVersion]
	switch {
	case bytes.Equal(magic[:lenMagic], magicUSTAR):
		return FormatUSTAR
	case bytes.Equal(magic, magicGNU):
		return FormatGNU
	case bytes.Equal(magic, zeroBlock[:len(magic)]):
		return FormatV7
	default:
		return FormatUnknown
	}
}

// Path returns the member path. For USTAR headers with a non-empty
// prefix field, the prefix is joined in front of the name.
func (h *Header) Path() string {
	name := cString(h.block[offName : offName+lenName])
	if h.Format() == FormatUSTAR {
		if prefix := cString(h.block[offPrefix : offPrefix+lenPrefix]); prefix != "" {
			return prefix + "/" + name
		}
	}
	return name
}

// LinkName returns the link target, or "" when the field is empty.
func (h *Header) LinkName() string {
	return cString(h.block[offLinkName : offLinkName+lenLinkName])
}

// Type returns the entry type tag.
func (h *Header) Type() Type {
	return Type(h.block[offType])
}

// Size returns the declared payload size in bytes.
func (h *Header) Size() (int64, error) {
	n, err := parseNumeric(h.block[offSize : offSize+lenSize])
	if err != nil {
		return 0, fmt.Errorf("size field: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative size %d", ErrNumeric, n)
	}
	return n, nil
}

// Mode returns the permission bits from the mode field.
// Malformed mode fields decode as zero; Validate catches them first.
func (h *Header) Mode() fs.FileMode {
	n, err := parseNumeric(h.block[offMode : offMode+lenMode])
	if err != nil {
		return 0
	}
	return fs.FileMode(n) & fs.ModePerm
}

// UID returns the numeric owner id.
func (h *Header) UID() int {
	n, _ := parseNumeric(h.block[offUID : offUID+lenUID])
	return int(n)
}

// GID returns the numeric group id.
func (h *Header) GID() int {
	n, _ := parseNumeric(h.block[offGID : offGID+lenGID])
	return int(n)
}

// ModTime returns the modification time from the mtime field.
func (h *Header) ModTime() time.Time {
	n, _ := parseNumeric(h.block[offModTime : offModTime+lenModTime])
	return time.Unix(n, 0)
}

// DevMajor returns the device major number for character/block entries.
func (h *Header) DevMajor() int64 {
	n, _ := parseNumeric(h.block[offDevMajor : offDevMajor+lenDevMajor])
	return n
}

// DevMinor returns the device minor number for character/block entries.
func (h *Header) DevMinor() int64 {
	n, _ := parseNumeric(h.block[offDevMinor : offDevMinor+lenDevMinor])
	return n
}

// Uname returns the symbolic owner name.
func (h *Header) Uname() string {
	return cString(h.block[offUname : offUname+lenUname])
}

// Gname returns the symbolic group name.
func (h *Header) Gname() string {
	return cString(h.block[offGname : offGname+lenGname])
}

// Checksum returns the stored checksum field value.
func (h *Header) Checksum() (int64, error) {
	n, err := parseNumeric(h.block[offChecksum : offChecksum+lenChecksum])
	if err != nil {
		return 0, fmt.Errorf("checksum field: %w", err)
	}
	return n, nil
}

// SetPath stores the member path in the name field.
// Paths longer than the field are rejected; long names travel in GNU
// long-name metadata entries, not in this field.
func (h *Header) SetPath(path string) error {
	if len(path) > lenName {
		return fmt.Errorf("%w: path %q exceeds %d bytes", ErrFormat, path, lenName)
	}
	setString(h.block[offName:offName+lenName], path)
	return nil
}

// SetLinkName stores the link target field.
func (h *Header) SetLinkName(name string) error {
	if len(name) > lenLinkName {
		return fmt.Errorf("%w: link name %q exceeds %d bytes", ErrFormat, name, lenLinkName)
	}
	setString(h.block[offLinkName:offLinkName+lenLinkName], name)
	return nil
}

// SetType stores the entry type tag.
func (h *Header) SetType(t Type) {
	h.block[offType] = byte(t)
}

// SetSize stores the payload size as octal.
func (h *Header) SetSize(n int64) {
	setOctal(h.block[offSize:offSize+lenSize], n)
}

// SetMode stores the permission bits.
func (h *Header) SetMode(mode fs.FileMode) {
	setOctal(h.block[offMode:offMode+lenMode], int64(mode&fs.ModePerm))
}

// SetModTime stores the modification time.
func (h *Header) SetModTime(t time.Time) {
	setOctal(h.block[offModTime:offModTime+lenModTime], t.Unix())
}

// SetUID stores the numeric owner id.
func (h *Header) SetUID(uid int) {
	setOctal(h.block[offUID:offUID+lenUID], int64(uid))
}

// SetGID stores the numeric group id.
func (h *Header) SetGID(gid int) {
	setOctal(h.block[offGID:offGID+lenGID], int64(gid))
}

// SetChecksum computes and stores the checksum over the current block.
// Call it last; any later mutation invalidates the stored value.
func (h *Header) SetChecksum() {
	sum, _ := h.computeChecksum()
	// The checksum field uses a six-digit octal number followed by a
	// NUL and a space, unlike every other numeric field.
	copy(h.block[offChecksum:], fmt.Sprintf("%06o\x00 ", sum))
}

// computeChecksum sums the block with the checksum field read as eight
// spaces. Returns the unsigned sum and the signed-byte variant some
// historical writers produced.
func (h *Header) computeChecksum() (unsigned, signed int64) {
	for i, c := range h.block {
		if offChecksum <= i && i < offChecksum+lenChecksum {
			c = ' '
		}
		unsigned += int64(c)
		signed += int64(int8(c))
	}
	return unsigned, signed
}

// Validate checks the block against the wire-format rules:
// every field holds only its permitted characters, the magic is a
// recognized value, the checksum field is octal digits/spaces, and the
// stored checksum matches the computed one (signed or unsigned).
func (h *Header) Validate() error {
	if h.Format() == FormatUnknown {
		return fmt.Errorf("%w: bad magic %q", ErrFormat, h.block[offMagic:offVersion+lenVersion])
	}
	if err := h.validateCharsets(); err != nil {
		return err
	}
	want, err := h.Checksum()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChecksum, err)
	}
	unsigned, signed := h.computeChecksum()
	if want != unsigned && want != signed {
		return fmt.Errorf("%w: field %#o, computed %#o", ErrChecksum, want, unsigned)
	}
	return nil
}

// validateCharsets enforces the per-field byte rules: text fields are
// printable ASCII or NUL, numeric fields are octal digits, spaces or
// NUL unless base-256 encoded, and the checksum field never uses
// base-256.
func (h *Header) validateCharsets() error {
	textRegions := [][2]int{
		{offName, lenName},
		{offLinkName, lenLinkName},
		{offUname, lenUname},
		{offGname, lenGname},
		{offPrefix, lenPrefix},
		{offPrefix + lenPrefix, BlockSize - offPrefix - lenPrefix}, // trailing pad
	}
	for _, r := range textRegions {
		for _, c := range h.block[r[0] : r[0]+r[1]] {
			if c != 0 && (c < 0x20 || c > 0x7e) {
				return fmt.Errorf("%w: non-printable byte %#x in text field", ErrFormat, c)
			}
		}
	}
	numericRegions := [][2]int{
		{offMode, lenMode},
		{offUID, lenUID},
		{offGID, lenGID},
		{offSize, lenSize},
		{offModTime, lenModTime},
		{offDevMajor, lenDevMajor},
		{offDevMinor, lenDevMinor},
	}
	for _, r := range numericRegions {
		field := h.block[r[0] : r[0]+r[1]]
		if field[0]&0x80 != 0 {
			continue // base-256; arbitrary bytes follow
		}
		if err := validateOctalField(field); err != nil {
			return err
		}
	}
	if err := validateOctalField(h.block[offChecksum : offChecksum+lenChecksum]); err != nil {
		return fmt.Errorf("%w: %v", ErrChecksum, err)
	}
	return nil
}

func validateOctalField(field []byte) error {
	for _, c := range field {
		if c == 0 || c == ' ' || ('0' <= c && c <= '7') {
			continue
		}
		return fmt.Errorf("%w: byte %#x in numeric field", ErrFormat, c)
	}
	return nil
}

// cString interprets a NUL-terminated byte field as a string.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// setString writes s into a field, zero-filling the remainder.
func setString(field []byte, s string) {
	n := copy(field, s)
	for i := n; i < len(field); i++ {
		field[i] = 0
	}
}

// setOctal writes n as a zero-padded octal string with a NUL terminator.
func setOctal(field []byte, n int64) {
	s := strconv.FormatInt(n, 8)
	if len(s) > len(field)-1 {
		s = s[len(s)-(len(field)-1):]
	}
	// Leading zeros, value, NUL terminator.
	for i := range field {
		field[i] = '0'
	}
	copy(field[len(field)-1-len(s):], s)
	field[len(field)-1] = 0
}

// parseNumeric decodes an octal ASCII field, or a GNU base-256 field
// when the leading byte has the high bit set.
func parseNumeric(field []byte) (int64, error) {
	if len(field) > 0 && field[0]&0x80 != 0 {
		return parseBase256(field)
	}
	return parseOctal(field)
}

// parseOctal decodes a NUL/space padded octal field. Empty fields
// decode to zero.
func parseOctal(field []byte) (int64, error) {
	s := string(bytes.Trim(field, " \x00"))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 8, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNumeric, field)
	}
	return n, nil
}

// parseBase256 decodes a GNU binary numeric field: the leading byte
// carries the flag bit (0x80) and sign, the rest is big-endian.
func parseBase256(field []byte) (int64, error) {
	var n int64
	inv := byte(0)
	if field[0]&0x40 != 0 {
		inv = 0xff // negative, two's complement
		n = -1
	}
	for i, c := range field {
		c ^= inv
		if i == 0 {
			c &= 0x7f // strip the flag bit
		}
		if n>>56 != 0 && n>>56 != -1 {
			return 0, fmt.Errorf("%w: base-256 value overflows int64", ErrNumeric)
		}
		n = n<<8 | int64(c)
	}
	if inv == 0 && n < 0 {
		return 0, fmt.Errorf("%w: base-256 value overflows int64", ErrNumeric)
	}
	return n, nil
}
