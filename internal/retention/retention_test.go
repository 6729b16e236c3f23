package retention_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/juju/errors"
	gc "gopkg.in/check.v1"

	"github.com/raoulx24/wandering-echo/internal/association"
	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
	"github.com/raoulx24/wandering-echo/internal/fs"
	"github.com/raoulx24/wandering-echo/internal/logging"
	"github.com/raoulx24/wandering-echo/internal/retention"
	"github.com/raoulx24/wandering-echo/internal/snapshot"
)

// rmDeleter stands in for btrfs subvolume delete.
type rmDeleter struct {
	batches [][]string
	fail    map[string]error
}

func (d *rmDeleter) DeleteSubvolumes(_ context.Context, paths []string) error {
	if err := d.fail[filepath.Dir(paths[0])]; err != nil {
		return err
	}
	d.batches = append(d.batches, paths)
	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			return err
		}
	}
	return nil
}

type purgeSuite struct {
	root      string
	snapshots string
	backups   string
	deleter   *rmDeleter
	sidecars  *association.Store
	purger    *retention.Purger
}

var _ = gc.Suite(&purgeSuite{})

var base = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

func (s *purgeSuite) SetUpTest(c *gc.C) {
	s.root = c.MkDir()
	s.snapshots = filepath.Join(s.root, "Snapshots")
	s.backups = filepath.Join(s.root, "backups")
	c.Assert(os.MkdirAll(s.snapshots, 0o755), gc.IsNil)
	c.Assert(os.MkdirAll(s.backups, 0o755), gc.IsNil)

	s.deleter = &rmDeleter{fail: map[string]error{}}
	s.sidecars = association.NewStore(filepath.Join(s.root, "associations"), fs.New())
	s.purger = retention.New(s.deleter, s.sidecars, fs.New(), logging.Nop())
}

// makeSnapshot creates the snapshot directory and its record.
func (s *purgeSuite) makeSnapshot(c *gc.C, sub string, at time.Time) snapshot.Snapshot {
	sv, err := snapshot.NewSubvolume(filepath.Join(s.root, sub))
	c.Assert(err, gc.IsNil)
	snap := snapshot.Planned(sv, s.snapshots, at).Stamped(at)
	c.Assert(os.Mkdir(snap.Location(), 0o755), gc.IsNil)
	c.Assert(s.sidecars.Put(snap), gc.IsNil)
	return snap
}

func (s *purgeSuite) makeBackup(c *gc.C, name string) string {
	p := filepath.Join(s.backups, name)
	c.Assert(os.Mkdir(p, 0o755), gc.IsNil)
	return p
}

func names(c *gc.C, dir string) []string {
	entries, err := os.ReadDir(dir)
	c.Assert(err, gc.IsNil)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func (s *purgeSuite) TestPurgeSnapshotsOnlyLeavesBackups(c *gc.C) {
	s.makeSnapshot(c, "home", base)
	s.makeSnapshot(c, "root", base)
	backup := s.makeBackup(c, snapshot.FormatName("home", base))

	res, err := s.purger.Purge(context.Background(), []string{s.snapshots}, s.backups, false, retention.All)
	c.Assert(err, gc.IsNil)
	c.Check(res.Snapshots, gc.HasLen, 2)
	c.Check(res.Backups, gc.HasLen, 0)
	c.Check(names(c, s.snapshots), gc.HasLen, 0)
	c.Check(names(c, s.backups), gc.DeepEquals, []string{filepath.Base(backup)})

	// one batch for the single folder
	c.Check(s.deleter.batches, gc.HasLen, 1)

	left, err := s.sidecars.List()
	c.Assert(err, gc.IsNil)
	c.Check(left, gc.HasLen, 0)
}

func (s *purgeSuite) TestPurgeAlsoBackups(c *gc.C) {
	s.makeSnapshot(c, "home", base)
	s.makeBackup(c, snapshot.FormatName("home", base))

	res, err := s.purger.Purge(context.Background(), []string{s.snapshots}, s.backups, true, nil)
	c.Assert(err, gc.IsNil)
	c.Check(res.Backups, gc.DeepEquals, []string{filepath.Join(s.backups, snapshot.FormatName("home", base))})
	c.Check(names(c, s.backups), gc.HasLen, 0)
	c.Check(s.deleter.batches, gc.HasLen, 2)
}

func (s *purgeSuite) TestAlsoBackupsWithoutDestination(c *gc.C) {
	_, err := s.purger.Purge(context.Background(), []string{s.snapshots}, "", true, retention.All)
	c.Check(errors.Is(err, echoerrors.NotConfigured), gc.Equals, true)
}

func (s *purgeSuite) TestKeepNewestPerSubvolume(c *gc.C) {
	var home []snapshot.Snapshot
	for i := 0; i < 4; i++ {
		home = append(home, s.makeSnapshot(c, "home", base.Add(time.Duration(i)*time.Hour)))
	}
	root := s.makeSnapshot(c, "root", base)
	c.Assert(os.Mkdir(filepath.Join(s.snapshots, "lost+found"), 0o755), gc.IsNil)

	res, err := s.purger.Purge(context.Background(), []string{s.snapshots}, s.backups, false, retention.KeepNewest(2))
	c.Assert(err, gc.IsNil)
	c.Check(res.Snapshots, gc.DeepEquals, []string{home[0].Location(), home[1].Location()})
	c.Check(names(c, s.snapshots), gc.DeepEquals, []string{home[2].Name(), home[3].Name(), "lost+found", root.Name()})

	left, err := s.sidecars.List()
	c.Assert(err, gc.IsNil)
	c.Check(left, gc.HasLen, 3)
}

func (s *purgeSuite) TestNothingSelectedRunsNothing(c *gc.C) {
	s.makeSnapshot(c, "home", base)
	_, err := s.purger.Purge(context.Background(), []string{s.snapshots}, s.backups, false, retention.KeepNewest(5))
	c.Assert(err, gc.IsNil)
	c.Check(s.deleter.batches, gc.HasLen, 0)
}

func (s *purgeSuite) TestFailingFolderDoesNotStopOthers(c *gc.C) {
	other := filepath.Join(s.root, "other", "Snapshots")
	c.Assert(os.MkdirAll(other, 0o755), gc.IsNil)
	s.makeSnapshot(c, "home", base)
	c.Assert(os.Mkdir(filepath.Join(other, snapshot.FormatName("srv", base)), 0o755), gc.IsNil)
	s.deleter.fail[s.snapshots] = echoerrors.Mark(fmt.Errorf("ERROR: cannot delete"), echoerrors.IOFailure)

	res, err := s.purger.Purge(context.Background(), []string{s.snapshots, other}, s.backups, false, retention.All)
	c.Check(err, gc.ErrorMatches, "purging .*Snapshots: ERROR: cannot delete")
	c.Check(errors.Is(err, echoerrors.IOFailure), gc.Equals, true)
	c.Check(res.Snapshots, gc.DeepEquals, []string{filepath.Join(other, snapshot.FormatName("srv", base))})

	// record survives when its snapshot could not be deleted
	left, err := s.sidecars.List()
	c.Assert(err, gc.IsNil)
	c.Check(left, gc.HasLen, 1)
}

func (s *purgeSuite) TestMissingFolderIsEmpty(c *gc.C) {
	res, err := s.purger.Purge(context.Background(), []string{filepath.Join(s.root, "nope")}, s.backups, false, retention.All)
	c.Assert(err, gc.IsNil)
	c.Check(res.Snapshots, gc.HasLen, 0)
}
