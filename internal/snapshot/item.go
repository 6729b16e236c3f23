// Package snapshot models subvolumes, their read-only snapshots and the
// backups made from them, and creates and relates snapshots on the host.
package snapshot

import (
	"path/filepath"
	"strings"
	"time"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
)

type Kind int

const (
	KindSubvolume Kind = iota
	KindSnapshot
	KindBackup
)

func (k Kind) String() string {
	switch k {
	case KindSubvolume:
		return "subvolume"
	case KindSnapshot:
		return "snapshot"
	case KindBackup:
		return "backup"
	}
	return "unknown"
}

// Item is the shape shared by subvolumes, snapshots and backups.
type Item interface {
	Location() string
	Name() string
	Kind() Kind
}

// Subvolume is a filesystem tree registered for backup.
type Subvolume struct {
	location  string
	name      string
	transient bool
}

// NewSubvolume validates location and derives the name from its last
// segment. The name must not contain Separator.
func NewSubvolume(location string) (Subvolume, error) {
	return newSubvolume(location, false)
}

// NewTransient returns a subvolume that exists for the current run only and
// is never persisted.
func NewTransient(location string) (Subvolume, error) {
	return newSubvolume(location, true)
}

func newSubvolume(location string, transient bool) (Subvolume, error) {
	if !filepath.IsAbs(location) {
		return Subvolume{}, echoerrors.Newf(echoerrors.DataInconsistent, "subvolume location %q is not absolute", location)
	}
	location = filepath.Clean(location)
	name := filepath.Base(location)
	if name == "/" || name == "." {
		return Subvolume{}, echoerrors.Newf(echoerrors.DataInconsistent, "subvolume location %q has no name", location)
	}
	if strings.Contains(name, Separator) {
		return Subvolume{}, echoerrors.Newf(echoerrors.DataInconsistent, "subvolume name %q contains %q", name, Separator)
	}
	return Subvolume{location: location, name: name, transient: transient}, nil
}

func (s Subvolume) Location() string { return s.location }
func (s Subvolume) Name() string     { return s.name }
func (s Subvolume) Kind() Kind       { return KindSubvolume }
func (s Subvolume) Transient() bool  { return s.transient }

// Snapshot is a read-only point in time image of a subvolume. A snapshot
// whose Created is zero has been planned but not yet created.
type Snapshot struct {
	source   Subvolume
	location string
	name     string
	created  time.Time
}

// Planned returns the not yet created snapshot of source that a snapshot
// taken at instant at would occupy inside folder.
func Planned(source Subvolume, folder string, at time.Time) Snapshot {
	name := FormatName(source.Name(), at)
	return Snapshot{
		source:   source,
		location: filepath.Join(folder, name),
		name:     name,
	}
}

// Restore rebuilds a created snapshot from its recorded metadata.
func Restore(source Subvolume, location string, created time.Time) (Snapshot, error) {
	name := filepath.Base(location)
	subvolume, _, err := ParseName(name)
	if err != nil {
		return Snapshot{}, err
	}
	if subvolume != source.Name() {
		return Snapshot{}, echoerrors.Newf(echoerrors.DataInconsistent,
			"snapshot %q does not belong to subvolume %q", name, source.Name())
	}
	if created.IsZero() {
		return Snapshot{}, echoerrors.Newf(echoerrors.DataInconsistent, "snapshot %q has no creation date", name)
	}
	return Snapshot{source: source, location: location, name: name, created: created}, nil
}

func (s Snapshot) Location() string   { return s.location }
func (s Snapshot) Name() string       { return s.name }
func (s Snapshot) Kind() Kind         { return KindSnapshot }
func (s Snapshot) Source() Subvolume  { return s.source }
func (s Snapshot) Created() time.Time { return s.created }
func (s Snapshot) IsCreated() bool    { return !s.created.IsZero() }

// Stamped returns the snapshot marked as created at t. Created snapshots
// are immutable, so stamping one again returns it unchanged.
func (s Snapshot) Stamped(t time.Time) Snapshot {
	if s.IsCreated() {
		return s
	}
	s.created = t
	return s
}

// Backup is a snapshot transferred to a destination.
type Backup struct {
	parent      Snapshot
	destination string
	created     time.Time
}

// NewBackup records that parent was transferred to destination at created.
func NewBackup(parent Snapshot, destination string, created time.Time) (Backup, error) {
	if !parent.IsCreated() {
		return Backup{}, echoerrors.Newf(echoerrors.DataInconsistent,
			"backup of %q references a snapshot that was never created", parent.Name())
	}
	return Backup{parent: parent, destination: destination, created: created}, nil
}

func (b Backup) Location() string   { return b.destination }
func (b Backup) Name() string       { return filepath.Base(b.destination) }
func (b Backup) Kind() Kind         { return KindBackup }
func (b Backup) Parent() Snapshot   { return b.parent }
func (b Backup) Created() time.Time { return b.created }
