package btrfs

import (
	"github.com/juju/errors"
	"golang.org/x/sys/unix"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
)

// IsBtrfs reports whether path lives on a btrfs filesystem.
func IsBtrfs(path string) (bool, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return false, echoerrors.Mark(errors.Annotatef(err, "statfs %s", path), echoerrors.IOFailure)
	}
	return uint32(st.Type) == uint32(unix.BTRFS_SUPER_MAGIC), nil
}
