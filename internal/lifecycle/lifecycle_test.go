package lifecycle_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"go.uber.org/mock/gomock"
	gc "gopkg.in/check.v1"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
	"github.com/raoulx24/wandering-echo/internal/fs"
	"github.com/raoulx24/wandering-echo/internal/lifecycle"
	"github.com/raoulx24/wandering-echo/internal/logging"
	"github.com/raoulx24/wandering-echo/internal/picker/mocks"
	"github.com/raoulx24/wandering-echo/internal/registry"
	"github.com/raoulx24/wandering-echo/internal/retention"
	"github.com/raoulx24/wandering-echo/internal/snapshot"
)

var epoch = time.Date(2024, time.August, 8, 8, 8, 8, 0, time.UTC)

type lifecycleSuite struct {
	dir      string
	dest     string
	store    *registry.Store
	mount    *fakeMount
	snaps    *fakeSnapshotter
	executor *fakeExecutor
	purger   *fakePurger
	sink     *reportSink
	picker   *mocks.MockPicker
	ctrl     *gomock.Controller
	manager  *lifecycle.Manager
}

var _ = gc.Suite(&lifecycleSuite{})

func (s *lifecycleSuite) SetUpTest(c *gc.C) {
	s.dir = c.MkDir()
	s.dest = filepath.Join(s.dir, "backups")
	s.store = registry.NewStore(filepath.Join(s.dir, "state", "BTRFS Config.json"), fs.New())
	s.mount = &fakeMount{mountPoint: "/media/Wandering_Echo"}
	s.snaps = &fakeSnapshotter{folder: "/Snapshots", fail: map[string]error{}}
	s.executor = &fakeExecutor{fail: map[string]error{}}
	s.purger = &fakePurger{}
	s.sink = &reportSink{}
	s.ctrl = gomock.NewController(c)
	s.picker = mocks.NewMockPicker(s.ctrl)
	s.manager = lifecycle.New(lifecycle.Env{
		Logger:      logging.Nop(),
		Clock:       testclock.NewClock(epoch),
		Store:       s.store,
		Mount:       s.mount,
		Snapshots:   s.snaps,
		Executor:    s.executor,
		Purger:      s.purger,
		Picker:      s.picker,
		SystemRoots: []string{"@", "@home"},
		Metrics:     s.sink,
		NewRunID:    func() string { return "run-1" },
	})
}

func (s *lifecycleSuite) TearDownTest(c *gc.C) {
	s.ctrl.Finish()
}

func (s *lifecycleSuite) seed(c *gc.C, locations ...string) {
	reg := registry.New()
	for _, loc := range locations {
		sv, err := snapshot.NewSubvolume(loc)
		c.Assert(err, gc.IsNil)
		reg.AddSubvolume(sv)
	}
	reg.SetDefaultDestination(s.dest)
	reg.MarkLoaded()
	c.Assert(s.store.Save(context.Background(), reg), gc.IsNil)
}

func (s *lifecycleSuite) TestBackupRunsEveryUnit(c *gc.C) {
	s.seed(c, "/home", "/srv")

	report, err := s.manager.Backup(context.Background())
	c.Assert(err, gc.IsNil)
	c.Check(report.RunID, gc.Equals, "run-1")
	c.Check(report.OK(), gc.Equals, true)
	c.Check(report.Succeeded(), gc.HasLen, 4)

	var names []string
	for _, sv := range s.snaps.seen {
		names = append(names, sv.Location())
	}
	c.Check(names, gc.DeepEquals, []string{"/home", "/srv", "/media/Wandering_Echo/@", "/media/Wandering_Echo/@home"})
	c.Check(s.executor.dest, gc.Equals, s.dest)
	c.Check(s.mount.calls, gc.DeepEquals, []string{"mount", "unmount"})
	c.Check(s.sink.reports, gc.HasLen, 1)

	// index persisted, system roots not
	reg, err := s.store.Load()
	c.Assert(err, gc.IsNil)
	svs, err := reg.Subvolumes()
	c.Assert(err, gc.IsNil)
	c.Check(svs, gc.HasLen, 2)
	_, ok, err := reg.LatestBackup("/home")
	c.Assert(err, gc.IsNil)
	c.Check(ok, gc.Equals, true)
}

func (s *lifecycleSuite) TestSnapshotFailureIsAUnitFailure(c *gc.C) {
	s.seed(c, "/home", "/srv")
	s.snaps.fail["srv"] = echoerrors.Mark(fmt.Errorf("not a subvolume"), echoerrors.IOFailure)
	s.executor.fail["home"] = fmt.Errorf("receive failed")

	report, err := s.manager.Backup(context.Background())
	c.Assert(err, gc.IsNil)
	c.Check(report.OK(), gc.Equals, false)
	c.Check(s.executor.got, gc.HasLen, 3)

	failed := report.Failed()
	c.Assert(failed, gc.HasLen, 2)
	c.Check(failed[0].Subvolume.Name(), gc.Equals, "home")
	c.Check(failed[1].Subvolume.Name(), gc.Equals, "srv")
	c.Check(string(failed[1].FailedIn), gc.Equals, "snapshot")

	reg, err := s.store.Load()
	c.Assert(err, gc.IsNil)
	_, ok, err := reg.LatestBackup("/home")
	c.Assert(err, gc.IsNil)
	c.Check(ok, gc.Equals, false)
}

func (s *lifecycleSuite) TestMountFailureStillTearsDown(c *gc.C) {
	s.seed(c, "/home")
	s.mount.mountErr = echoerrors.Newf(echoerrors.IOFailure, "mount: wrong fs type")

	_, err := s.manager.Backup(context.Background())
	c.Check(err, gc.ErrorMatches, "mounting root filesystem: mount: wrong fs type")
	c.Check(errors.Is(err, echoerrors.IOFailure), gc.Equals, true)
	c.Check(s.mount.calls, gc.DeepEquals, []string{"mount", "unmount"})
	c.Check(s.snaps.seen, gc.HasLen, 0)
}

func (s *lifecycleSuite) TestTeardownErrorsAreJoined(c *gc.C) {
	if os.Geteuid() == 0 {
		c.Skip("root ignores directory permissions")
	}
	s.seed(c, "/home")
	s.mount.unmountErr = fmt.Errorf("target is busy")
	c.Assert(os.Chmod(filepath.Dir(s.store.Path()), 0o500), gc.IsNil)
	defer os.Chmod(filepath.Dir(s.store.Path()), 0o755)

	report, err := s.manager.Backup(context.Background())
	c.Assert(report, gc.NotNil)
	c.Check(err, gc.ErrorMatches, "(?s)persisting configuration: .*\nunmounting: target is busy")
}

func (s *lifecycleSuite) TestCancelledRunStillUnmounts(c *gc.C) {
	s.seed(c, "/home")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.manager.Backup(ctx)
	c.Assert(err, gc.IsNil)
	c.Check(s.mount.calls, gc.DeepEquals, []string{"mount", "unmount"})
}

func (s *lifecycleSuite) TestBackupBootstrapsWhenUnconfigured(c *gc.C) {
	home := c.MkDir()
	gomock.InOrder(
		s.picker.EXPECT().ChooseDirectory(gomock.Any()).Return(home, true, nil),
		s.picker.EXPECT().Confirm(gomock.Any(), gomock.Any()).Return(false, nil),
		s.picker.EXPECT().ChooseDirectory(gomock.Any()).Return(s.dest, true, nil),
	)

	report, err := s.manager.Backup(context.Background())
	c.Assert(err, gc.IsNil)
	c.Check(report.Succeeded(), gc.HasLen, 3)

	reg, err := s.store.Load()
	c.Assert(err, gc.IsNil)
	dest, err := reg.DefaultDestination()
	c.Assert(err, gc.IsNil)
	c.Check(dest, gc.Equals, s.dest)
}

func (s *lifecycleSuite) TestBootstrapWithoutDestination(c *gc.C) {
	gomock.InOrder(
		s.picker.EXPECT().ChooseDirectory(gomock.Any()).Return("", false, nil),
		s.picker.EXPECT().ChooseDirectory(gomock.Any()).Return("", false, nil),
	)

	_, err := s.manager.Backup(context.Background())
	c.Check(errors.Is(err, echoerrors.NotConfigured), gc.Equals, true)
	c.Check(s.mount.calls, gc.HasLen, 0)

	_, err = s.store.Load()
	c.Check(errors.Is(err, echoerrors.NotFound), gc.Equals, true)
}

func (s *lifecycleSuite) TestConfigureKeepsExistingSubvolumes(c *gc.C) {
	s.seed(c, "/home")
	extra := c.MkDir()
	gomock.InOrder(
		s.picker.EXPECT().ChooseDirectory(gomock.Any()).Return(extra, true, nil),
		s.picker.EXPECT().Confirm(gomock.Any(), gomock.Any()).Return(true, nil),
		s.picker.EXPECT().ChooseDirectory(gomock.Any()).Return("", false, nil),
		s.picker.EXPECT().ChooseDirectory(gomock.Any()).Return(s.dest, true, nil),
	)

	c.Assert(s.manager.Configure(context.Background()), gc.IsNil)

	reg, err := s.store.Load()
	c.Assert(err, gc.IsNil)
	svs, err := reg.Subvolumes()
	c.Assert(err, gc.IsNil)
	c.Assert(svs, gc.HasLen, 2)
	c.Check(svs[0].Location(), gc.Equals, "/home")
	c.Check(svs[1].Location(), gc.Equals, extra)
}

func (s *lifecycleSuite) TestPurgeSnapshotsOnly(c *gc.C) {
	s.seed(c, "/data/home", "/data/srv")

	_, err := s.manager.Purge(context.Background(), false, retention.All)
	c.Assert(err, gc.IsNil)
	c.Check(s.purger.also, gc.Equals, false)
	c.Check(s.purger.dest, gc.Equals, "")
	c.Check(s.purger.folders, gc.DeepEquals, []string{"/data/Snapshots", "/media/Wandering_Echo/Snapshots"})
	c.Check(s.mount.calls, gc.DeepEquals, []string{"mount", "unmount"})
}

func (s *lifecycleSuite) TestPurgeBackupsForgetsThem(c *gc.C) {
	s.seed(c, "/home")
	_, err := s.manager.Backup(context.Background())
	c.Assert(err, gc.IsNil)

	reg, err := s.store.Load()
	c.Assert(err, gc.IsNil)
	latest, ok, err := reg.LatestBackup("/home")
	c.Assert(err, gc.IsNil)
	c.Assert(ok, gc.Equals, true)
	s.purger.result = retention.Result{Backups: []string{latest.Location()}}

	_, err = s.manager.Purge(context.Background(), true, retention.All)
	c.Assert(err, gc.IsNil)
	c.Check(s.purger.dest, gc.Equals, s.dest)

	reg, err = s.store.Load()
	c.Assert(err, gc.IsNil)
	_, ok, err = reg.LatestBackup("/home")
	c.Assert(err, gc.IsNil)
	c.Check(ok, gc.Equals, false)
	_, ok, err = reg.LatestBackup("/media/Wandering_Echo/@")
	c.Assert(err, gc.IsNil)
	c.Check(ok, gc.Equals, true)
}

func (s *lifecycleSuite) TestPurgeUnconfigured(c *gc.C) {
	_, err := s.manager.Purge(context.Background(), false, retention.All)
	c.Check(errors.Is(err, echoerrors.NotConfigured), gc.Equals, true)
	c.Check(s.mount.calls, gc.HasLen, 0)
}

func (s *lifecycleSuite) TestReset(c *gc.C) {
	s.seed(c, "/home")
	c.Assert(s.manager.Reset(context.Background()), gc.IsNil)
	_, err := s.store.Load()
	c.Check(errors.Is(err, echoerrors.NotFound), gc.Equals, true)

	// twice is fine
	c.Assert(s.manager.Reset(context.Background()), gc.IsNil)
}

func (s *lifecycleSuite) TestBootstrapSkipsNonBtrfs(c *gc.C) {
	good, bad := c.MkDir(), c.MkDir()
	manager := lifecycle.New(lifecycle.Env{
		Logger:  logging.Nop(),
		Store:   s.store,
		Mount:   s.mount,
		Picker:  s.picker,
		IsBtrfs: func(path string) (bool, error) { return path == good, nil },
	})
	gomock.InOrder(
		s.picker.EXPECT().ChooseDirectory(gomock.Any()).Return(bad, true, nil),
		s.picker.EXPECT().ChooseDirectory(gomock.Any()).Return(good, true, nil),
		s.picker.EXPECT().Confirm(gomock.Any(), gomock.Any()).Return(false, nil),
		s.picker.EXPECT().ChooseDirectory(gomock.Any()).Return(s.dest, true, nil),
	)

	c.Assert(manager.Configure(context.Background()), gc.IsNil)
	reg, err := s.store.Load()
	c.Assert(err, gc.IsNil)
	svs, err := reg.Subvolumes()
	c.Assert(err, gc.IsNil)
	c.Assert(svs, gc.HasLen, 1)
	c.Check(svs[0].Location(), gc.Equals, good)
}
