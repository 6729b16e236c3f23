// Package lifecycle runs whole operations: configure, mount, snapshot,
// back up, purge and tear down.
package lifecycle

import (
	"context"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/raoulx24/wandering-echo/internal/backup"
	"github.com/raoulx24/wandering-echo/internal/logging"
	"github.com/raoulx24/wandering-echo/internal/picker"
	"github.com/raoulx24/wandering-echo/internal/registry"
	"github.com/raoulx24/wandering-echo/internal/retention"
	"github.com/raoulx24/wandering-echo/internal/snapshot"
)

type RegistryStore interface {
	Load() (*registry.Registry, error)
	Save(ctx context.Context, r *registry.Registry) error
	Remove() error
}

type Mounter interface {
	Mount(ctx context.Context) error
	Unmount(ctx context.Context) error
	MountPoint() string
}

type Snapshotter interface {
	Folder(ctx context.Context, sv snapshot.Subvolume) (string, error)
	SnapshotAll(ctx context.Context, svs []snapshot.Subvolume) []snapshot.Result
}

type Executor interface {
	RunAll(ctx context.Context, snaps []snapshot.Snapshot, dest string) []backup.Unit
}

type Purger interface {
	Purge(ctx context.Context, folders []string, backupDir string, alsoDeleteBackups bool, guard retention.Guard) (retention.Result, error)
}

// ReportSink receives every finished backup report.
type ReportSink interface {
	Record(r *backup.Report) error
}

// Env is everything an operation needs. It is built once at startup and
// passed down explicitly.
type Env struct {
	Logger      logging.Logger
	Clock       clock.Clock
	Store       RegistryStore
	Mount       Mounter
	Snapshots   Snapshotter
	Executor    Executor
	Purger      Purger
	Picker      picker.Picker
	SystemRoots []string

	// Optional.
	Metrics  ReportSink
	NewRunID func() string
	// IsBtrfs vets directories chosen during setup.
	IsBtrfs func(path string) (bool, error)
}

type Manager struct {
	env Env
}

func New(env Env) *Manager {
	if env.NewRunID == nil {
		env.NewRunID = uuid.NewString
	}
	if env.Clock == nil {
		env.Clock = clock.WallClock
	}
	if env.Logger == nil {
		env.Logger = logging.Nop()
	}
	return &Manager{env: env}
}
