// Package retention deletes snapshots, and optionally backups, from disk.
package retention

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/juju/errors"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
	"github.com/raoulx24/wandering-echo/internal/fs"
	"github.com/raoulx24/wandering-echo/internal/logging"
	"github.com/raoulx24/wandering-echo/internal/snapshot"
)

// Deleter removes btrfs subvolumes, all paths in one call.
type Deleter interface {
	DeleteSubvolumes(ctx context.Context, paths []string) error
}

// Sidecars drops the record kept next to a snapshot.
type Sidecars interface {
	Delete(filename string) error
}

// Guard picks which entries of a folder may be deleted.
type Guard interface {
	Select(entries []fs.FileInfo) []fs.FileInfo
}

type allGuard struct{}

func (allGuard) Select(entries []fs.FileInfo) []fs.FileInfo { return entries }

// All lets every entry go.
var All Guard = allGuard{}

type keepNewest int

// KeepNewest keeps the n newest entries of each subvolume. Entries whose
// name does not carry a timestamp are never selected.
func KeepNewest(n int) Guard {
	if n < 0 {
		n = 0
	}
	return keepNewest(n)
}

type event struct {
	info fs.FileInfo
	at   int64
}

func (k keepNewest) Select(entries []fs.FileInfo) []fs.FileInfo {
	bySubvolume := map[string][]event{}
	for _, e := range entries {
		sub, at, err := snapshot.ParseName(e.Name)
		if err != nil {
			continue
		}
		bySubvolume[sub] = append(bySubvolume[sub], event{info: e, at: at.UnixNano()})
	}

	var out []fs.FileInfo
	for _, events := range bySubvolume {
		if len(events) <= int(k) {
			continue
		}
		// newest first
		sort.Slice(events, func(i, j int) bool { return events[i].at > events[j].at })
		for _, ev := range events[k:] {
			out = append(out, ev.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Result lists what a purge removed.
type Result struct {
	Snapshots []string
	Backups   []string
}

type Purger struct {
	deleter  Deleter
	sidecars Sidecars
	fs       fs.FS
	log      logging.Logger
}

func New(deleter Deleter, sidecars Sidecars, filesystem fs.FS, log logging.Logger) *Purger {
	return &Purger{deleter: deleter, sidecars: sidecars, fs: filesystem, log: log}
}

// Purge deletes what guard selects in every snapshot folder, and in
// backupDir when alsoDeleteBackups is set. A failing folder does not stop
// the others; all errors are returned joined.
func (p *Purger) Purge(ctx context.Context, folders []string, backupDir string, alsoDeleteBackups bool, guard Guard) (Result, error) {
	if guard == nil {
		guard = All
	}
	var res Result
	var errs []error

	for _, folder := range folders {
		deleted, err := p.purgeFolder(ctx, folder, guard)
		if err != nil {
			errs = append(errs, err)
		}
		for _, path := range deleted {
			if err := p.sidecars.Delete(filepath.Base(path)); err != nil {
				errs = append(errs, errors.Annotatef(err, "dropping record of %s", filepath.Base(path)))
			}
		}
		res.Snapshots = append(res.Snapshots, deleted...)
	}

	if alsoDeleteBackups {
		if backupDir == "" {
			errs = append(errs, echoerrors.Newf(echoerrors.NotConfigured, "no default backup destination"))
		} else {
			deleted, err := p.purgeFolder(ctx, backupDir, guard)
			if err != nil {
				errs = append(errs, err)
			}
			res.Backups = deleted
		}
	}

	p.log.Info("purge finished", "snapshots", len(res.Snapshots), "backups", len(res.Backups), "errors", len(errs))
	return res, stderrors.Join(errs...)
}

// purgeFolder deletes the selected subvolumes of folder with one command.
// Plain files are left alone.
func (p *Purger) purgeFolder(ctx context.Context, folder string, guard Guard) ([]string, error) {
	entries, err := p.fs.ReadDir(folder)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, echoerrors.Mark(errors.Annotatef(err, "listing %s", folder), echoerrors.IOFailure)
	}

	var dirs []fs.FileInfo
	for _, e := range entries {
		if e.IsDir {
			dirs = append(dirs, e)
		}
	}
	selected := guard.Select(dirs)
	if len(selected) == 0 {
		return nil, nil
	}

	paths := make([]string, len(selected))
	for i, e := range selected {
		paths[i] = e.Path
	}
	p.log.Debug("deleting subvolumes", "folder", folder, "count", len(paths), "kept", len(dirs)-len(paths))
	if err := p.deleter.DeleteSubvolumes(ctx, paths); err != nil {
		return nil, errors.Annotatef(err, "purging %s", folder)
	}
	return paths, nil
}
