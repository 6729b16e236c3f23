package backup

import (
	"time"

	"github.com/raoulx24/wandering-echo/internal/snapshot"
)

// State is where a unit is in its run.
type State int

const (
	Pending State = iota
	SnapshotCreated
	ParentResolved
	TransferInFlight
	BackedUp
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case SnapshotCreated:
		return "snapshot-created"
	case ParentResolved:
		return "parent-resolved"
	case TransferInFlight:
		return "transfer-in-flight"
	case BackedUp:
		return "backed-up"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == BackedUp || s == Failed
}

// Phase names the step a failed unit was in.
type Phase string

const (
	PhaseSnapshot Phase = "snapshot"
	PhaseResolve  Phase = "resolve"
	PhaseTransfer Phase = "transfer"
)

// Unit is one subvolume's way through a run. A unit only carries a Backup
// when its state is BackedUp.
type Unit struct {
	Subvolume snapshot.Subvolume
	Snapshot  snapshot.Snapshot
	Parent    *snapshot.Snapshot
	State     State
	Backup    snapshot.Backup
	Err       error
	FailedIn  Phase
	Elapsed   time.Duration

	// Remote delivery outcome; a delivery failure is a warning only.
	Delivered      string
	DeliveredBytes int64
	DeliveryErr    error
}

func (u *Unit) advance(to State) {
	u.State = to
}

func (u *Unit) fail(phase Phase, err error) {
	u.State = Failed
	u.FailedIn = phase
	u.Err = err
	u.Backup = snapshot.Backup{}
}

// SnapshotFailed is the unit of a subvolume whose snapshot could not be
// taken; it never reaches the executor.
func SnapshotFailed(sv snapshot.Subvolume, err error) Unit {
	return Unit{Subvolume: sv, State: Failed, FailedIn: PhaseSnapshot, Err: err}
}
