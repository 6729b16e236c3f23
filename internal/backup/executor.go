// Package backup transfers snapshots to their destination, one unit per
// snapshot, concurrently and with failures kept to their unit.
package backup

//go:generate mockgen -destination=mocks/backup_mock.go -package=mocks . Transfer,Delivery

import (
	"context"
	"path/filepath"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/raoulx24/wandering-echo/internal/logging"
	"github.com/raoulx24/wandering-echo/internal/snapshot"
	"github.com/raoulx24/wandering-echo/internal/worker"
)

// Transfer is the send/receive primitive. An empty parent means a full
// transfer.
type Transfer interface {
	Transfer(ctx context.Context, snapshot, parent, dest string) error
}

type ParentFinder interface {
	FindParent(snapshot.Snapshot) (snapshot.Snapshot, bool, error)
}

// Delivery streams a snapshot off the host.
type Delivery interface {
	Deliver(ctx context.Context, snapshot, parent string) (string, int64, error)
}

type ExecutorConfig struct {
	Transfer Transfer
	Resolver ParentFinder
	// Delivery is optional.
	Delivery Delivery
	Pool     *worker.Pool
	Clock    clock.Clock
	Logger   logging.Logger
}

type Executor struct {
	cfg ExecutorConfig
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	return &Executor{cfg: cfg}
}

// Backup transfers snap into dest, incrementally against parent when it is
// not nil, and returns the resulting backup.
func (e *Executor) Backup(ctx context.Context, snap snapshot.Snapshot, parent *snapshot.Snapshot, dest string) (snapshot.Backup, error) {
	parentPath := ""
	if parent != nil {
		parentPath = parent.Location()
	}
	if err := e.cfg.Transfer.Transfer(ctx, snap.Location(), parentPath, dest); err != nil {
		return snapshot.Backup{}, errors.Annotatef(err, "transferring %s", snap.Name())
	}
	return snapshot.NewBackup(snap, filepath.Join(dest, snap.Name()), e.cfg.Clock.Now())
}

// RunAll runs one unit per snapshot and returns once every unit is
// terminal. Results come back in input order.
func (e *Executor) RunAll(ctx context.Context, snaps []snapshot.Snapshot, dest string) []Unit {
	units := make([]Unit, len(snaps))
	b := e.cfg.Pool.Batch(ctx, "backup", len(snaps))
	for i, snap := range snaps {
		i := i
		units[i] = Unit{Subvolume: snap.Source(), Snapshot: snap, State: SnapshotCreated}
		b.Submit(worker.Job{
			Name: "backup " + snap.Name(),
			Run:  func(ctx context.Context) { e.run(ctx, &units[i], dest) },
		})
	}
	b.Wait()
	return units
}

// run drives one unit to a terminal state. It only ever writes its own unit.
func (e *Executor) run(ctx context.Context, u *Unit, dest string) {
	start := e.cfg.Clock.Now()
	log := e.cfg.Logger.With("subvolume", u.Subvolume.Name(), "snapshot", u.Snapshot.Name())
	defer func() {
		u.Elapsed = e.cfg.Clock.Now().Sub(start)
		if u.State == Failed {
			log.Error("backup failed", "phase", u.FailedIn, "error", u.Err)
		}
	}()

	if err := ctx.Err(); err != nil {
		u.fail(PhaseResolve, err)
		return
	}

	parent, ok, err := e.cfg.Resolver.FindParent(u.Snapshot)
	if err != nil {
		u.fail(PhaseResolve, errors.Annotatef(err, "resolving parent of %s", u.Snapshot.Name()))
		return
	}
	if ok {
		u.Parent = &parent
		log.Debug("incremental base found", "parent", parent.Name())
	} else {
		log.Debug("no incremental base, sending in full")
	}
	u.advance(ParentResolved)

	if err := ctx.Err(); err != nil {
		u.fail(PhaseTransfer, err)
		return
	}
	u.advance(TransferInFlight)
	backup, err := e.Backup(ctx, u.Snapshot, u.Parent, dest)
	if err != nil {
		u.fail(PhaseTransfer, err)
		return
	}
	u.Backup = backup
	u.advance(BackedUp)
	log.Info("backup complete", "destination", backup.Location())

	if e.cfg.Delivery != nil {
		e.deliver(ctx, u, log)
	}
}

func (e *Executor) deliver(ctx context.Context, u *Unit, log logging.Logger) {
	parentPath := ""
	if u.Parent != nil {
		parentPath = u.Parent.Location()
	}
	name, n, err := e.cfg.Delivery.Deliver(ctx, u.Snapshot.Location(), parentPath)
	u.Delivered, u.DeliveredBytes, u.DeliveryErr = name, n, err
	if err != nil {
		log.Warn("remote delivery failed", "object", name, "error", err)
	}
}
