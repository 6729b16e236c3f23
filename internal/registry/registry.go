// Package registry holds the authoritative set of subvolumes and the most
// recent backup of each, and persists them as a JSON document.
package registry

import (
	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
	"github.com/raoulx24/wandering-echo/internal/snapshot"
)

// Registry is not safe for concurrent use. Backup tasks never touch it; the
// run applies their results once all of them have finished.
type Registry struct {
	loaded             bool
	order              []string
	subvolumes         map[string]snapshot.Subvolume
	latest             map[string]snapshot.Backup
	defaultDestination string
}

// New returns an empty registry that is not yet loaded.
func New() *Registry {
	return &Registry{
		subvolumes: make(map[string]snapshot.Subvolume),
		latest:     make(map[string]snapshot.Backup),
	}
}

// MarkLoaded records that configuration finished; readers work from now on.
func (r *Registry) MarkLoaded() { r.loaded = true }

func (r *Registry) Loaded() bool { return r.loaded }

func (r *Registry) check() error {
	if !r.loaded {
		return echoerrors.Newf(echoerrors.NotConfigured, "registry used before it was loaded")
	}
	return nil
}

// AddSubvolume appends sv unless a subvolume with the same location is
// already known. It reports whether sv was added.
func (r *Registry) AddSubvolume(sv snapshot.Subvolume) bool {
	if _, ok := r.subvolumes[sv.Location()]; ok {
		return false
	}
	r.subvolumes[sv.Location()] = sv
	r.order = append(r.order, sv.Location())
	return true
}

// Subvolumes returns every subvolume, transient ones included, in the order
// they were added.
func (r *Registry) Subvolumes() ([]snapshot.Subvolume, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	out := make([]snapshot.Subvolume, 0, len(r.order))
	for _, loc := range r.order {
		out = append(out, r.subvolumes[loc])
	}
	return out, nil
}

func (r *Registry) SetDefaultDestination(path string) { r.defaultDestination = path }

func (r *Registry) DefaultDestination() (string, error) {
	if err := r.check(); err != nil {
		return "", err
	}
	if r.defaultDestination == "" {
		return "", echoerrors.Newf(echoerrors.NotConfigured, "no default backup destination")
	}
	return r.defaultDestination, nil
}

// RecordBackup makes b the latest backup of its subvolume.
func (r *Registry) RecordBackup(b snapshot.Backup) {
	r.latest[b.Parent().Source().Location()] = b
}

// LatestBackup returns the most recent backup of the subvolume at location.
func (r *Registry) LatestBackup(location string) (snapshot.Backup, bool, error) {
	if err := r.check(); err != nil {
		return snapshot.Backup{}, false, err
	}
	b, ok := r.latest[location]
	return b, ok, nil
}

// LatestBackups returns a copy of the backup index.
func (r *Registry) LatestBackups() (map[string]snapshot.Backup, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	out := make(map[string]snapshot.Backup, len(r.latest))
	for k, v := range r.latest {
		out[k] = v
	}
	return out, nil
}

// ForgetBackups drops every index entry for which drop returns true and
// returns how many were dropped.
func (r *Registry) ForgetBackups(drop func(snapshot.Backup) bool) int {
	n := 0
	for loc, b := range r.latest {
		if drop(b) {
			delete(r.latest, loc)
			n++
		}
	}
	return n
}
