package snapshot_test

import (
	"time"

	"github.com/juju/errors"
	gc "gopkg.in/check.v1"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
	"github.com/raoulx24/wandering-echo/internal/snapshot"
)

type staticHistory []snapshot.Snapshot

func (h staticHistory) Snapshots() ([]snapshot.Snapshot, error) { return h, nil }

type presentSet map[string]bool

func (p presentSet) Exists(path string) (bool, error) { return p[path], nil }

type resolverSuite struct{}

var _ = gc.Suite(&resolverSuite{})

var t0 = time.Date(2024, time.January, 10, 8, 0, 0, 0, time.UTC)

func created(c *gc.C, subvolume string, at time.Time) snapshot.Snapshot {
	sv, err := snapshot.NewSubvolume("/data/" + subvolume)
	c.Assert(err, gc.IsNil)
	return snapshot.Planned(sv, "/data/Snapshots", at).Stamped(at)
}

func resolverFor(snaps ...snapshot.Snapshot) *snapshot.Resolver {
	present := presentSet{}
	for _, s := range snaps {
		present[s.Location()] = true
	}
	return snapshot.NewResolver(staticHistory(snaps), present)
}

func (*resolverSuite) TestNoPriorSnapshots(c *gc.C) {
	home := created(c, "home", t0)
	_, ok, err := resolverFor(home).FindParent(home)
	c.Assert(err, gc.IsNil)
	c.Check(ok, gc.Equals, false)
}

func (*resolverSuite) TestPicksMostRecentEarlier(c *gc.C) {
	t1 := created(c, "home", t0)
	t2 := created(c, "home", t0.Add(24*time.Hour))
	t3 := created(c, "home", t0.Add(48*time.Hour))

	parent, ok, err := resolverFor(t3, t1, t2).FindParent(t3)
	c.Assert(err, gc.IsNil)
	c.Assert(ok, gc.Equals, true)
	c.Check(parent.Location(), gc.Equals, t2.Location())
}

func (*resolverSuite) TestNeverNewerOrOtherSubvolume(c *gc.C) {
	query := created(c, "home", t0.Add(time.Hour))
	history := []snapshot.Snapshot{
		query,
		created(c, "home", t0.Add(2*time.Hour)),
		created(c, "root", t0.Add(30*time.Minute)),
		created(c, "homeX", t0.Add(45*time.Minute)),
		created(c, "home", t0),
	}
	parent, ok, err := resolverFor(history...).FindParent(query)
	c.Assert(err, gc.IsNil)
	c.Assert(ok, gc.Equals, true)
	c.Check(parent.Source().Name(), gc.Equals, "home")
	c.Check(parent.Created().Before(query.Created()), gc.Equals, true)
	c.Check(parent.Created().Equal(t0), gc.Equals, true)
}

func (*resolverSuite) TestOnlyNewerGivesNone(c *gc.C) {
	query := created(c, "home", t0)
	_, ok, err := resolverFor(query, created(c, "home", t0.Add(time.Minute))).FindParent(query)
	c.Assert(err, gc.IsNil)
	c.Check(ok, gc.Equals, false)
}

func (*resolverSuite) TestSkipsPurgedSnapshots(c *gc.C) {
	t1 := created(c, "home", t0)
	t2 := created(c, "home", t0.Add(time.Hour))
	t3 := created(c, "home", t0.Add(2*time.Hour))

	r := snapshot.NewResolver(staticHistory{t1, t2, t3}, presentSet{t1.Location(): true, t3.Location(): true})
	parent, ok, err := r.FindParent(t3)
	c.Assert(err, gc.IsNil)
	c.Assert(ok, gc.Equals, true)
	c.Check(parent.Location(), gc.Equals, t1.Location())
}

func (*resolverSuite) TestDuplicateTimestampsAreCorruption(c *gc.C) {
	sv, err := snapshot.NewSubvolume("/data/home")
	c.Assert(err, gc.IsNil)
	a := snapshot.Planned(sv, "/data/Snapshots", t0).Stamped(t0.Add(time.Second))
	b := snapshot.Planned(sv, "/data/Snapshots", t0.Add(time.Minute)).Stamped(t0.Add(time.Second))
	query := created(c, "home", t0.Add(time.Hour))

	_, _, err = resolverFor(query, a, b).FindParent(query)
	c.Check(errors.Is(err, echoerrors.DataInconsistent), gc.Equals, true)
	c.Check(err, gc.ErrorMatches, ".* share creation date .*")
}

func (*resolverSuite) TestUncreatedSnapshotRejected(c *gc.C) {
	sv, err := snapshot.NewSubvolume("/data/home")
	c.Assert(err, gc.IsNil)
	planned := snapshot.Planned(sv, "/data/Snapshots", t0)

	_, _, err = resolverFor().FindParent(planned)
	c.Check(errors.Is(err, echoerrors.DataInconsistent), gc.Equals, true)
}
