package snapshot

import (
	"github.com/juju/errors"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
)

// History lists every snapshot that has a sidecar record.
type History interface {
	Snapshots() ([]Snapshot, error)
}

// Presence reports whether a snapshot is still on disk.
type Presence interface {
	Exists(path string) (bool, error)
}

// Resolver picks the incremental base for new snapshots.
type Resolver struct {
	history  History
	presence Presence
}

func NewResolver(history History, presence Presence) *Resolver {
	return &Resolver{history: history, presence: presence}
}

// FindParent returns the most recent snapshot of the same subvolume taken
// strictly before snap. The boolean is false when snap has no parent and
// must be sent in full. Records whose snapshot has been purged are ignored.
func (r *Resolver) FindParent(snap Snapshot) (Snapshot, bool, error) {
	if !snap.IsCreated() {
		return Snapshot{}, false, echoerrors.Newf(echoerrors.DataInconsistent, "%s has not been created", snap.Name())
	}

	all, err := r.history.Snapshots()
	if err != nil {
		return Snapshot{}, false, errors.Annotate(err, "listing snapshot history")
	}

	seen := map[int64]string{snap.Created().UnixNano(): snap.Location()}
	var (
		best  Snapshot
		found bool
	)
	for _, cand := range all {
		if cand.Source().Name() != snap.Source().Name() || cand.Location() == snap.Location() {
			continue
		}
		onDisk, err := r.presence.Exists(cand.Location())
		if err != nil {
			return Snapshot{}, false, echoerrors.Mark(err, echoerrors.IOFailure)
		}
		if !onDisk {
			continue
		}

		key := cand.Created().UnixNano()
		if other, dup := seen[key]; dup {
			return Snapshot{}, false, echoerrors.Newf(echoerrors.DataInconsistent,
				"%s and %s share creation date %s", other, cand.Location(), cand.Created())
		}
		seen[key] = cand.Location()

		if !cand.Created().Before(snap.Created()) {
			continue
		}
		if !found || cand.Created().After(best.Created()) {
			best, found = cand, true
		}
	}
	return best, found, nil
}
