package lifecycle

import (
	"context"

	"github.com/juju/errors"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
	"github.com/raoulx24/wandering-echo/internal/logging"
	"github.com/raoulx24/wandering-echo/internal/registry"
	"github.com/raoulx24/wandering-echo/internal/snapshot"
)

const (
	promptSubvolume   = "Choose a subvolume to back up"
	titleMore         = "Confirmation: More Snapshots?"
	promptMore        = "Add another subvolume?"
	promptDestination = "Choose the default backup destination"
)

// load returns the persisted registry, bootstrapping one interactively
// when none exists yet.
func (m *Manager) load(ctx context.Context, log logging.Logger) (*registry.Registry, error) {
	reg, err := m.env.Store.Load()
	if errors.Is(err, echoerrors.NotFound) {
		log.Info("no configuration yet, starting setup")
		return m.bootstrap(ctx, registry.New())
	}
	if err != nil {
		return nil, errors.Annotate(err, "loading configuration")
	}
	return reg, nil
}

// Configure asks for subvolumes and a destination and saves the result.
// Known subvolumes and backup history are kept.
func (m *Manager) Configure(ctx context.Context) error {
	reg, err := m.env.Store.Load()
	switch {
	case errors.Is(err, echoerrors.NotFound):
		reg = registry.New()
	case err != nil:
		return errors.Annotate(err, "loading configuration")
	}
	_, err = m.bootstrap(ctx, reg)
	return err
}

func (m *Manager) bootstrap(ctx context.Context, reg *registry.Registry) (*registry.Registry, error) {
	p := m.env.Picker
	for {
		path, ok, err := p.ChooseDirectory(promptSubvolume)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if !ok {
			break
		}
		if m.env.IsBtrfs != nil {
			ok, err := m.env.IsBtrfs(path)
			if err != nil {
				return nil, errors.Annotatef(err, "checking %s", path)
			}
			if !ok {
				m.env.Logger.Warn("not on a btrfs filesystem, skipped", "path", path)
				continue
			}
		}
		sv, err := snapshot.NewSubvolume(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if reg.AddSubvolume(sv) {
			m.env.Logger.Info("subvolume added", "subvolume", sv.Location())
		}

		more, err := p.Confirm(titleMore, promptMore)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if !more {
			break
		}
	}

	dest, ok, err := p.ChooseDirectory(promptDestination)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !ok {
		return nil, echoerrors.Newf(echoerrors.NotConfigured, "no default backup destination chosen")
	}
	reg.SetDefaultDestination(dest)
	reg.MarkLoaded()

	if err := m.env.Store.Save(ctx, reg); err != nil {
		return nil, errors.Trace(err)
	}
	return reg, nil
}

// Reset discards the persisted configuration.
func (m *Manager) Reset(ctx context.Context) error {
	if err := m.env.Store.Remove(); err != nil {
		return errors.Annotate(err, "removing configuration")
	}
	m.env.Logger.Info("configuration removed")
	return nil
}
