// Package btrfs drives the host tools that create, send, receive and delete
// btrfs subvolumes and mount the root filesystem.
package btrfs

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
	"github.com/raoulx24/wandering-echo/internal/fs"
	"github.com/raoulx24/wandering-echo/internal/logging"
)

// Tool implements the snapshot, transfer and mount primitives on top of
// the btrfs-progs and util-linux commands.
type Tool struct {
	cmd Commander
	fs  fs.FS
	log logging.Logger
}

func NewTool(cmd Commander, filesystem fs.FS, log logging.Logger) *Tool {
	return &Tool{cmd: cmd, fs: filesystem, log: log}
}

// CreateReadOnlySnapshot snapshots source at dest.
func (t *Tool) CreateReadOnlySnapshot(ctx context.Context, source, dest string) error {
	_, err := t.cmd.Run(ctx, "btrfs", "subvolume", "snapshot", "-r", source, dest)
	return errors.Trace(err)
}

func sendArgs(snapshot, parent string) []string {
	args := []string{"btrfs", "send"}
	if parent != "" {
		args = append(args, "-p", parent)
	}
	return append(args, snapshot)
}

// Transfer sends snapshot into the destination directory, incrementally
// against parent when it is not empty. A partially received subvolume is
// deleted before the error is returned.
func (t *Tool) Transfer(ctx context.Context, snapshot, parent, dest string) error {
	err := t.cmd.Pipe(ctx, sendArgs(snapshot, parent), []string{"btrfs", "receive", dest})
	if err == nil {
		return nil
	}

	partial := filepath.Join(dest, filepath.Base(snapshot))
	if exists, statErr := t.fs.Exists(partial); statErr == nil && exists {
		cleanup := context.WithoutCancel(ctx)
		if _, delErr := t.cmd.Run(cleanup, "btrfs", "subvolume", "delete", partial); delErr != nil {
			t.log.Warn("could not discard partial transfer", "path", partial, "error", delErr)
		} else {
			t.log.Info("discarded partial transfer", "path", partial)
		}
	}
	return errors.Trace(err)
}

// Send writes the send stream of snapshot to w.
func (t *Tool) Send(ctx context.Context, snapshot, parent string, w io.Writer) error {
	args := sendArgs(snapshot, parent)
	return errors.Trace(t.cmd.Stream(ctx, w, args[0], args[1:]...))
}

// DeleteSubvolumes removes paths with a single command.
func (t *Tool) DeleteSubvolumes(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"subvolume", "delete"}, paths...)
	_, err := t.cmd.Run(ctx, "btrfs", args...)
	return errors.Trace(err)
}

// RootUUID returns the filesystem UUID of /.
func (t *Tool) RootUUID(ctx context.Context) (string, error) {
	out, err := t.cmd.Run(ctx, "findmnt", "-n", "-o", "UUID", "/")
	if err != nil {
		return "", errors.Trace(err)
	}
	uuid := strings.TrimSpace(out)
	if uuid == "" {
		return "", echoerrors.Newf(echoerrors.IOFailure, "findmnt reported no UUID for /")
	}
	return uuid, nil
}

func (t *Tool) MountByUUID(ctx context.Context, uuid, mountPoint string) error {
	_, err := t.cmd.Run(ctx, "mount", "-U", uuid, mountPoint)
	return errors.Trace(err)
}

func (t *Tool) Unmount(ctx context.Context, mountPoint string) error {
	_, err := t.cmd.Run(ctx, "umount", mountPoint)
	return errors.Trace(err)
}

// FilesystemRoot returns the mount target of the filesystem holding path,
// as reported by df.
func (t *Tool) FilesystemRoot(ctx context.Context, path string) (string, error) {
	out, err := t.cmd.Run(ctx, "df", "--output=target", path)
	if err != nil {
		return "", errors.Trace(err)
	}
	// the first line is the "Mounted on" header
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return "", echoerrors.Newf(echoerrors.IOFailure, "unexpected df output %q", out)
	}
	return strings.TrimSpace(lines[len(lines)-1]), nil
}

// RequireRoot fails unless the process runs with an effective uid of 0.
func RequireRoot() error {
	if unix.Geteuid() != 0 {
		return echoerrors.Newf(echoerrors.NotConfigured, "must be run as root")
	}
	return nil
}
