package snapshot_test

import (
	"time"

	"github.com/juju/errors"
	gc "gopkg.in/check.v1"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
	"github.com/raoulx24/wandering-echo/internal/snapshot"
)

type namingSuite struct{}

var _ = gc.Suite(&namingSuite{})

func (*namingSuite) TestNameRoundTrip(c *gc.C) {
	zones := []*time.Location{
		time.UTC,
		time.FixedZone("CEST", 2*60*60),
		time.FixedZone("NST", -(3*60*60 + 30*60)),
	}
	for _, zone := range zones {
		at := time.Date(2024, time.February, 29, 23, 59, 58, 0, zone)
		name := snapshot.FormatName("home", at)

		sub, parsed, err := snapshot.ParseName(name)
		c.Assert(err, gc.IsNil)
		c.Check(sub, gc.Equals, "home")
		c.Check(parsed.Equal(at), gc.Equals, true, gc.Commentf("%s parsed as %s", name, parsed))
	}
}

func (*namingSuite) TestFormat(c *gc.C) {
	at := time.Date(2023, time.March, 7, 9, 5, 1, 0, time.UTC)
	c.Check(snapshot.FormatName("@home", at), gc.Equals, "@home___07-03-2023_09:05:01Z")

	at = time.Date(2023, time.March, 7, 9, 5, 1, 0, time.FixedZone("", 2*60*60))
	c.Check(snapshot.FormatTimestamp(at), gc.Equals, "07-03-2023_09:05:01+0200")
}

func (*namingSuite) TestParseSplitsAtLastSeparator(c *gc.C) {
	sub, _, err := snapshot.ParseName("odd___name___07-03-2023_09:05:01Z")
	c.Assert(err, gc.IsNil)
	c.Check(sub, gc.Equals, "odd___name")
}

func (*namingSuite) TestParseRejects(c *gc.C) {
	for _, name := range []string{
		"home",
		"___07-03-2023_09:05:01Z",
		"home___yesterday",
		"home___2023-03-07T09:05:01Z",
	} {
		_, _, err := snapshot.ParseName(name)
		c.Check(err, gc.NotNil, gc.Commentf(name))
		c.Check(errors.Is(err, echoerrors.DataInconsistent), gc.Equals, true, gc.Commentf(name))
	}
}

func (*namingSuite) TestNewSubvolume(c *gc.C) {
	sv, err := snapshot.NewSubvolume("/data/home/")
	c.Assert(err, gc.IsNil)
	c.Check(sv.Location(), gc.Equals, "/data/home")
	c.Check(sv.Name(), gc.Equals, "home")
	c.Check(sv.Kind(), gc.Equals, snapshot.KindSubvolume)
	c.Check(sv.Transient(), gc.Equals, false)

	tr, err := snapshot.NewTransient("/media/Wandering_Echo/@")
	c.Assert(err, gc.IsNil)
	c.Check(tr.Name(), gc.Equals, "@")
	c.Check(tr.Transient(), gc.Equals, true)
}

func (*namingSuite) TestNewSubvolumeRejects(c *gc.C) {
	for _, loc := range []string{"relative/home", "/", "/data/a___b"} {
		_, err := snapshot.NewSubvolume(loc)
		c.Check(errors.Is(err, echoerrors.DataInconsistent), gc.Equals, true, gc.Commentf(loc))
	}
}

func (*namingSuite) TestPlannedAndStamped(c *gc.C) {
	sv, err := snapshot.NewSubvolume("/data/home")
	c.Assert(err, gc.IsNil)
	at := time.Date(2023, time.March, 7, 9, 5, 1, 0, time.UTC)

	planned := snapshot.Planned(sv, "/data/Snapshots", at)
	c.Check(planned.IsCreated(), gc.Equals, false)
	c.Check(planned.Location(), gc.Equals, "/data/Snapshots/home___07-03-2023_09:05:01Z")
	c.Check(planned.Kind(), gc.Equals, snapshot.KindSnapshot)

	created := planned.Stamped(at.Add(3 * time.Second))
	c.Check(created.IsCreated(), gc.Equals, true)
	c.Check(created.Created(), gc.Equals, at.Add(3*time.Second))
	// created snapshots are immutable
	c.Check(created.Stamped(at.Add(time.Hour)).Created(), gc.Equals, created.Created())
}

func (*namingSuite) TestRestore(c *gc.C) {
	sv, err := snapshot.NewSubvolume("/data/home")
	c.Assert(err, gc.IsNil)
	at := time.Date(2023, time.March, 7, 9, 5, 1, 0, time.UTC)

	snap, err := snapshot.Restore(sv, "/data/Snapshots/home___07-03-2023_09:05:01Z", at)
	c.Assert(err, gc.IsNil)
	c.Check(snap.Name(), gc.Equals, "home___07-03-2023_09:05:01Z")

	_, err = snapshot.Restore(sv, "/data/Snapshots/root___07-03-2023_09:05:01Z", at)
	c.Check(err, gc.ErrorMatches, `snapshot "root___.*" does not belong to subvolume "home"`)

	_, err = snapshot.Restore(sv, "/data/Snapshots/home___07-03-2023_09:05:01Z", time.Time{})
	c.Check(errors.Is(err, echoerrors.DataInconsistent), gc.Equals, true)
}

func (*namingSuite) TestBackupNeedsCreatedSnapshot(c *gc.C) {
	sv, err := snapshot.NewSubvolume("/data/home")
	c.Assert(err, gc.IsNil)
	at := time.Date(2023, time.March, 7, 9, 5, 1, 0, time.UTC)
	planned := snapshot.Planned(sv, "/data/Snapshots", at)

	_, err = snapshot.NewBackup(planned, "/backups/home___07-03-2023_09:05:01Z", at)
	c.Check(errors.Is(err, echoerrors.DataInconsistent), gc.Equals, true)

	b, err := snapshot.NewBackup(planned.Stamped(at), "/backups/home___07-03-2023_09:05:01Z", at)
	c.Assert(err, gc.IsNil)
	c.Check(b.Name(), gc.Equals, "home___07-03-2023_09:05:01Z")
	c.Check(b.Kind(), gc.Equals, snapshot.KindBackup)
	c.Check(b.Parent().Location(), gc.Equals, planned.Location())
}
