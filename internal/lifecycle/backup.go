package lifecycle

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"strings"

	"github.com/juju/errors"

	"github.com/raoulx24/wandering-echo/internal/backup"
	"github.com/raoulx24/wandering-echo/internal/snapshot"
)

func joinRoot(mountPoint, root string) string {
	return filepath.Join(mountPoint, strings.TrimPrefix(root, "/"))
}

// Backup runs one full pass: snapshot every subvolume, then transfer every
// snapshot that was taken. Unit failures are in the report; the error is
// only for the run as a whole.
func (m *Manager) Backup(ctx context.Context) (report *backup.Report, err error) {
	runID := m.env.NewRunID()
	log := m.env.Logger.With("run_id", runID)

	reg, err := m.load(ctx, log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if terr := m.teardown(ctx, reg, log); terr != nil {
			err = stderrors.Join(err, terr)
		}
	}()

	report = &backup.Report{RunID: runID, Started: m.env.Clock.Now()}

	if err := m.env.Mount.Mount(ctx); err != nil {
		return report, errors.Annotate(err, "mounting root filesystem")
	}
	dest, err := reg.DefaultDestination()
	if err != nil {
		return report, errors.Trace(err)
	}
	if err := m.addSystemRoots(reg); err != nil {
		return report, err
	}
	svs, err := reg.Subvolumes()
	if err != nil {
		return report, errors.Trace(err)
	}
	log.Info("backup started", "subvolumes", len(svs), "destination", dest)

	results := m.env.Snapshots.SnapshotAll(ctx, svs)

	var snaps []snapshot.Snapshot
	slots := make([]int, 0, len(results))
	report.Units = make([]backup.Unit, len(results))
	for i, r := range results {
		if r.Err != nil {
			report.Units[i] = backup.SnapshotFailed(r.Subvolume, r.Err)
			log.Error("snapshot failed", "subvolume", r.Subvolume.Name(), "error", r.Err)
			continue
		}
		snaps = append(snaps, r.Snapshot)
		slots = append(slots, i)
	}

	units := m.env.Executor.RunAll(ctx, snaps, dest)
	for j, u := range units {
		report.Units[slots[j]] = u
	}
	report.Finished = m.env.Clock.Now()

	recorded := report.Apply(reg)
	log.Info("backup finished",
		"backed_up", recorded,
		"failed", len(report.Failed()),
		"warnings", len(report.Warnings()),
		"elapsed", report.Duration())

	if m.env.Metrics != nil {
		if err := m.env.Metrics.Record(report); err != nil {
			log.Warn("writing metrics failed", "error", err)
		}
	}
	return report, nil
}
