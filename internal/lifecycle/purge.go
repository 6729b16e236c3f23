package lifecycle

import (
	"context"
	stderrors "errors"

	"github.com/juju/errors"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
	"github.com/raoulx24/wandering-echo/internal/retention"
	"github.com/raoulx24/wandering-echo/internal/snapshot"
)

// Purge deletes snapshots of every known subvolume, and the backups in the
// default destination when alsoDeleteBackups is set.
func (m *Manager) Purge(ctx context.Context, alsoDeleteBackups bool, guard retention.Guard) (res retention.Result, err error) {
	log := m.env.Logger.With("run_id", m.env.NewRunID())

	reg, err := m.env.Store.Load()
	if errors.Is(err, echoerrors.NotFound) {
		return res, echoerrors.Mark(errors.Annotate(err, "nothing to purge"), echoerrors.NotConfigured)
	}
	if err != nil {
		return res, errors.Annotate(err, "loading configuration")
	}
	defer func() {
		if terr := m.teardown(ctx, reg, log); terr != nil {
			err = stderrors.Join(err, terr)
		}
	}()

	if err := m.env.Mount.Mount(ctx); err != nil {
		return res, errors.Annotate(err, "mounting root filesystem")
	}
	if err := m.addSystemRoots(reg); err != nil {
		return res, err
	}
	svs, err := reg.Subvolumes()
	if err != nil {
		return res, errors.Trace(err)
	}

	seen := map[string]bool{}
	var folders []string
	for _, sv := range svs {
		folder, err := m.env.Snapshots.Folder(ctx, sv)
		if err != nil {
			return res, errors.Trace(err)
		}
		if !seen[folder] {
			seen[folder] = true
			folders = append(folders, folder)
		}
	}

	dest := ""
	if alsoDeleteBackups {
		if dest, err = reg.DefaultDestination(); err != nil {
			return res, errors.Trace(err)
		}
	}

	log.Info("purge started", "folders", len(folders), "backups", alsoDeleteBackups)
	res, err = m.env.Purger.Purge(ctx, folders, dest, alsoDeleteBackups, guard)

	gone := make(map[string]bool, len(res.Backups))
	for _, p := range res.Backups {
		gone[p] = true
	}
	if n := reg.ForgetBackups(func(b snapshot.Backup) bool { return gone[b.Location()] }); n > 0 {
		log.Info("forgot deleted backups", "count", n)
	}
	return res, err
}
