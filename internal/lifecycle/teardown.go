package lifecycle

import (
	"context"
	stderrors "errors"

	"github.com/juju/errors"

	"github.com/raoulx24/wandering-echo/internal/logging"
	"github.com/raoulx24/wandering-echo/internal/registry"
	"github.com/raoulx24/wandering-echo/internal/snapshot"
)

// addSystemRoots registers the mounted root subvolumes for this run only.
func (m *Manager) addSystemRoots(reg *registry.Registry) error {
	for _, root := range m.env.SystemRoots {
		sv, err := snapshot.NewTransient(joinRoot(m.env.Mount.MountPoint(), root))
		if err != nil {
			return errors.Annotatef(err, "system root %s", root)
		}
		reg.AddSubvolume(sv)
	}
	return nil
}

// teardown persists reg and then unmounts. Both are attempted whatever
// happens to the other, and neither can be cancelled by ctx.
func (m *Manager) teardown(ctx context.Context, reg *registry.Registry, log logging.Logger) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	if err := m.env.Store.Save(ctx, reg); err != nil {
		errs = append(errs, errors.Annotate(err, "persisting configuration"))
	}
	if err := m.env.Mount.Unmount(ctx); err != nil {
		errs = append(errs, errors.Annotate(err, "unmounting"))
	}
	err := stderrors.Join(errs...)
	if err != nil {
		log.Error("teardown failed", "error", err)
	}
	return err
}
