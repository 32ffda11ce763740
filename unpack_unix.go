//go:build unix

package tarstream

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/meigma/tarstream/header"
)

// lchown restores ownership without following symlinks. Permission
// errors are ignored so unprivileged extraction behaves like
// unprivileged tar: everything lands owned by the invoking user.
func lchown(path string, uid, gid int) error {
	err := os.Lchown(path, uid, gid)
	if err == nil || errors.Is(err, fs.ErrPermission) || errors.Is(err, unix.EINVAL) {
		return nil
	}
	return err
}

// makeSpecial creates a fifo or device node. Device creation requires
// privileges; the caller treats failure as a skip, not a fatal error.
func (e *Entry) makeSpecial(target string, t header.Type) error {
	mode := uint32(e.hdr.Mode().Perm())
	switch t {
	case header.TypeFifo:
		return unix.Mkfifo(target, mode)
	case header.TypeChar:
		dev := unix.Mkdev(uint32(e.hdr.DevMajor()), uint32(e.hdr.DevMinor())) //nolint:gosec // header fields are device-number sized
		return unix.Mknod(target, mode|unix.S_IFCHR, int(dev))
	case header.TypeBlock:
		dev := unix.Mkdev(uint32(e.hdr.DevMajor()), uint32(e.hdr.DevMinor())) //nolint:gosec // header fields are device-number sized
		return unix.Mknod(target, mode|unix.S_IFBLK, int(dev))
	}
	return nil
}

// applyXattrs applies PAX SCHILY.xattr records as extended attributes.
// Filesystems without xattr support are tolerated.
func applyXattrs(path string, pax map[string]string) error {
	for key, value := range pax {
		attr, ok := strings.CutPrefix(key, paxSchilyXattr)
		if !ok {
			continue
		}
		if err := unix.Lsetxattr(path, attr, []byte(value), 0); err != nil {
			if errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EPERM) {
				continue
			}
			return err
		}
	}
	return nil
}
