package cli

import (
	"io"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/raoulx24/wandering-echo/internal/association"
	"github.com/raoulx24/wandering-echo/internal/backup"
	"github.com/raoulx24/wandering-echo/internal/btrfs"
	"github.com/raoulx24/wandering-echo/internal/config"
	"github.com/raoulx24/wandering-echo/internal/fs"
	"github.com/raoulx24/wandering-echo/internal/lifecycle"
	"github.com/raoulx24/wandering-echo/internal/logging"
	"github.com/raoulx24/wandering-echo/internal/metrics"
	"github.com/raoulx24/wandering-echo/internal/mount"
	"github.com/raoulx24/wandering-echo/internal/picker"
	"github.com/raoulx24/wandering-echo/internal/registry"
	"github.com/raoulx24/wandering-echo/internal/remote"
	"github.com/raoulx24/wandering-echo/internal/retention"
	"github.com/raoulx24/wandering-echo/internal/snapshot"
	"github.com/raoulx24/wandering-echo/internal/worker"
)

// app is the wired object graph for one process.
type app struct {
	cfg       *config.Config
	log       logging.Logger
	clock     clock.Clock
	prompt    picker.Picker
	remote    remote.Destination
	lifecycle *lifecycle.Manager

	closers []io.Closer
}

func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// newApp loads the settings at path and builds every component from them.
func newApp(path string, p picker.Picker) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, errors.Annotate(err, "loading settings")
	}

	log, logCloser := logging.New(cfg.Logging)
	a := &app{cfg: cfg, log: log, clock: clock.WallClock, prompt: p, closers: []io.Closer{logCloser}}

	filesystem := fs.NewWithRetry(fs.DefaultRetryPolicy(a.clock))
	runner := &btrfs.Runner{
		CommandTimeout:  cfg.CommandTimeout,
		TransferTimeout: cfg.TransferTimeout,
		Logger:          log,
	}
	tool := btrfs.NewTool(runner, filesystem, log)
	pool := worker.New(cfg.Workers, log)
	sidecars := association.NewStore(cfg.Paths.Associations, filesystem)

	snapshots := snapshot.NewService(snapshot.ServiceConfig{
		Primitive: tool,
		Recorder:  sidecars,
		FS:        filesystem,
		Clock:     a.clock,
		Pool:      pool,
		Logger:    log,
		DirName:   cfg.Paths.SnapshotDirName,
	})

	execCfg := backup.ExecutorConfig{
		Transfer: tool,
		Resolver: snapshot.NewResolver(sidecars, filesystem),
		Pool:     pool,
		Clock:    a.clock,
		Logger:   log,
	}
	dest, err := remote.New(cfg.Remote, filesystem, log)
	if err != nil {
		a.Close()
		return nil, errors.Annotate(err, "connecting remote destination")
	}
	if dest != nil {
		a.remote = dest
		a.closers = append(a.closers, dest)
		execCfg.Delivery = remote.NewDeliverer(tool, dest, log)
		log.Info("remote delivery enabled", "type", dest.Type())
	}

	env := lifecycle.Env{
		Logger:      log,
		Clock:       a.clock,
		Store:       registry.NewStore(cfg.Paths.Registry, filesystem),
		Mount:       mount.NewManager(cfg.Paths.MountPoint, tool, log),
		Snapshots:   snapshots,
		Executor:    backup.NewExecutor(execCfg),
		Purger:      retention.New(tool, sidecars, filesystem, log),
		Picker:      p,
		SystemRoots: cfg.SystemRoots,
		IsBtrfs:     btrfs.IsBtrfs,
	}
	if cfg.Metrics.Textfile != "" {
		env.Metrics = metrics.NewTextfile(cfg.Metrics.Textfile)
	}
	a.lifecycle = lifecycle.New(env)
	return a, nil
}
