// Package association keeps one sidecar record per snapshot so snapshots
// can be rebuilt from disk across runs.
package association

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
	"github.com/raoulx24/wandering-echo/internal/fs"
	"github.com/raoulx24/wandering-echo/internal/snapshot"
)

// Extension is appended to the snapshot filename to name its record.
const Extension = ".snapshot.yaml"

// Record is the on-disk form of a snapshot.
type Record struct {
	Location        string    `yaml:"location"`
	Of              string    `yaml:"of"`
	CreationDate    string    `yaml:"creationDate"`
	ParentSubvolume Subvolume `yaml:"parentSubvolume"`
}

type Subvolume struct {
	Location string `yaml:"location"`
}

// Store reads and writes records under a single directory.
type Store struct {
	dir string
	fs  fs.FS
}

func NewStore(dir string, filesystem fs.FS) *Store {
	return &Store{dir: dir, fs: filesystem}
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(filename string) string {
	return filepath.Join(s.dir, filename+Extension)
}

func toRecord(snap snapshot.Snapshot) Record {
	return Record{
		Location:        snap.Location(),
		Of:              snap.Source().Location(),
		CreationDate:    snap.Created().Format(time.RFC3339Nano),
		ParentSubvolume: Subvolume{Location: snap.Source().Location()},
	}
}

func fromRecord(r Record) (snapshot.Snapshot, error) {
	of := r.Of
	if of == "" {
		of = r.ParentSubvolume.Location
	}
	source, err := snapshot.NewSubvolume(of)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	created, err := time.Parse(time.RFC3339Nano, r.CreationDate)
	if err != nil {
		return snapshot.Snapshot{}, echoerrors.Newf(echoerrors.DataInconsistent, "bad creationDate %q", r.CreationDate)
	}
	return snapshot.Restore(source, r.Location, created)
}

// Put writes the record of a created snapshot, replacing any previous one.
func (s *Store) Put(snap snapshot.Snapshot) error {
	if !snap.IsCreated() {
		return echoerrors.Newf(echoerrors.DataInconsistent, "%s has not been created", snap.Name())
	}
	data, err := yaml.Marshal(toRecord(snap))
	if err != nil {
		return errors.Trace(err)
	}
	if err := s.fs.WriteFileAtomic(context.Background(), s.path(snap.Name()), data, 0o644); err != nil {
		return echoerrors.Mark(errors.Annotatef(err, "writing record of %s", snap.Name()), echoerrors.IOFailure)
	}
	return nil
}

// Get returns the snapshot recorded under its on-disk filename.
func (s *Store) Get(filename string) (snapshot.Snapshot, error) {
	data, err := s.fs.ReadFile(s.path(filename))
	if os.IsNotExist(err) {
		return snapshot.Snapshot{}, echoerrors.Newf(echoerrors.NotFound, "record of %s not found", filename)
	}
	if err != nil {
		return snapshot.Snapshot{}, echoerrors.Mark(err, echoerrors.IOFailure)
	}
	return decode(filename, data)
}

func decode(filename string, data []byte) (snapshot.Snapshot, error) {
	var r Record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return snapshot.Snapshot{}, echoerrors.Mark(errors.Annotatef(err, "record of %s", filename), echoerrors.DataInconsistent)
	}
	snap, err := fromRecord(r)
	if err != nil {
		return snapshot.Snapshot{}, errors.Annotatef(err, "record of %s", filename)
	}
	if snap.Name() != filename {
		return snapshot.Snapshot{}, echoerrors.Newf(echoerrors.DataInconsistent,
			"record of %s describes %s", filename, snap.Name())
	}
	return snap, nil
}

// List returns every recorded snapshot. A missing directory is an empty
// history; one malformed record fails the whole listing.
func (s *Store) List() ([]snapshot.Snapshot, error) {
	entries, err := s.fs.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, echoerrors.Mark(err, echoerrors.IOFailure)
	}

	var out []snapshot.Snapshot
	for _, e := range entries {
		if e.IsDir || !strings.HasSuffix(e.Name, Extension) {
			continue
		}
		filename := strings.TrimSuffix(e.Name, Extension)
		data, err := s.fs.ReadFile(e.Path)
		if err != nil {
			return nil, echoerrors.Mark(err, echoerrors.IOFailure)
		}
		snap, err := decode(filename, data)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Snapshots lets the store act as the resolver's history.
func (s *Store) Snapshots() ([]snapshot.Snapshot, error) {
	return s.List()
}

// Delete removes the record of filename. Deleting a missing record is not
// an error.
func (s *Store) Delete(filename string) error {
	err := s.fs.Remove(s.path(filename))
	if err != nil && !os.IsNotExist(err) {
		return echoerrors.Mark(err, echoerrors.IOFailure)
	}
	return nil
}
