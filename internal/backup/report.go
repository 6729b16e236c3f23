package backup

import (
	"time"

	"github.com/raoulx24/wandering-echo/internal/registry"
)

// Report is the aggregate result of a run: every unit, successful or not.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Units    []Unit
}

func (r *Report) Succeeded() []Unit {
	return r.filter(func(u Unit) bool { return u.State == BackedUp })
}

func (r *Report) Failed() []Unit {
	return r.filter(func(u Unit) bool { return u.State == Failed })
}

// Warnings are units that were backed up but could not be delivered
// off-host.
func (r *Report) Warnings() []Unit {
	return r.filter(func(u Unit) bool { return u.State == BackedUp && u.DeliveryErr != nil })
}

func (r *Report) filter(keep func(Unit) bool) []Unit {
	var out []Unit
	for _, u := range r.Units {
		if keep(u) {
			out = append(out, u)
		}
	}
	return out
}

// DeliveredBytes sums what was streamed to the remote destination.
func (r *Report) DeliveredBytes() int64 {
	var n int64
	for _, u := range r.Units {
		n += u.DeliveredBytes
	}
	return n
}

func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// OK reports whether no unit failed.
func (r *Report) OK() bool {
	return len(r.Failed()) == 0
}

// Apply records every successful backup as the latest of its subvolume.
// It must only be called once all units are terminal.
func (r *Report) Apply(reg *registry.Registry) int {
	n := 0
	for _, u := range r.Units {
		if u.State != BackedUp {
			continue
		}
		reg.RecordBackup(u.Backup)
		n++
	}
	return n
}
