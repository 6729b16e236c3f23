package registry

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/juju/errors"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
	"github.com/raoulx24/wandering-echo/internal/fs"
	"github.com/raoulx24/wandering-echo/internal/snapshot"
)

type document struct {
	Subvolumes            []subvolumeDoc       `json:"subvolumes"`
	TypicalBackupLocation string               `json:"typicalBackupLocation"`
	BackupMap             map[string]backupDoc `json:"backupMap"`
}

type subvolumeDoc struct {
	Location string `json:"location"`
}

type snapshotDoc struct {
	Location        string       `json:"location"`
	Of              string       `json:"of"`
	CreationDate    string       `json:"creationDate"`
	ParentSubvolume subvolumeDoc `json:"parentSubvolume"`
}

type backupDoc struct {
	Location       string      `json:"location"`
	ParentSnapshot snapshotDoc `json:"parentSnapshot"`
	CreationDate   string      `json:"creationDate"`
}

// Store persists a registry at a single path.
type Store struct {
	path string
	fs   fs.FS
}

func NewStore(path string, filesystem fs.FS) *Store {
	return &Store{path: path, fs: filesystem}
}

func (s *Store) Path() string { return s.path }

// Load reads the document. It fails with NotFound when there is none yet.
func (s *Store) Load() (*Registry, error) {
	data, err := s.fs.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, echoerrors.Newf(echoerrors.NotFound, "configuration %s not found", s.path)
	}
	if err != nil {
		return nil, echoerrors.Mark(errors.Annotatef(err, "reading %s", s.path), echoerrors.IOFailure)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, echoerrors.Mark(errors.Annotatef(err, "parsing %s", s.path), echoerrors.DataInconsistent)
	}
	r, err := fromDocument(doc)
	if err != nil {
		return nil, errors.Annotatef(err, "parsing %s", s.path)
	}
	r.MarkLoaded()
	return r, nil
}

// Save replaces the document with r. Transient subvolumes are left out.
func (s *Store) Save(ctx context.Context, r *Registry) error {
	data, err := json.MarshalIndent(toDocument(r), "", "  ")
	if err != nil {
		return errors.Trace(err)
	}
	if err := s.fs.WriteFileAtomic(ctx, s.path, data, 0o600); err != nil {
		return echoerrors.Mark(errors.Annotatef(err, "saving %s", s.path), echoerrors.IOFailure)
	}
	return nil
}

// Remove discards the document. Removing a missing document succeeds.
func (s *Store) Remove() error {
	err := s.fs.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return echoerrors.Mark(err, echoerrors.IOFailure)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, echoerrors.Newf(echoerrors.DataInconsistent, "bad date %q", s)
	}
	return t, nil
}

func toDocument(r *Registry) document {
	doc := document{
		Subvolumes:            []subvolumeDoc{},
		TypicalBackupLocation: r.defaultDestination,
		BackupMap:             make(map[string]backupDoc, len(r.latest)),
	}
	for _, loc := range r.order {
		if r.subvolumes[loc].Transient() {
			continue
		}
		doc.Subvolumes = append(doc.Subvolumes, subvolumeDoc{Location: loc})
	}
	for loc, b := range r.latest {
		p := b.Parent()
		doc.BackupMap[loc] = backupDoc{
			Location: b.Location(),
			ParentSnapshot: snapshotDoc{
				Location:        p.Location(),
				Of:              p.Source().Location(),
				CreationDate:    formatTime(p.Created()),
				ParentSubvolume: subvolumeDoc{Location: p.Source().Location()},
			},
			CreationDate: formatTime(b.Created()),
		}
	}
	return doc
}

func fromDocument(doc document) (*Registry, error) {
	r := New()
	r.defaultDestination = doc.TypicalBackupLocation
	for _, d := range doc.Subvolumes {
		sv, err := snapshot.NewSubvolume(d.Location)
		if err != nil {
			return nil, err
		}
		r.AddSubvolume(sv)
	}
	for loc, d := range doc.BackupMap {
		of := d.ParentSnapshot.Of
		if of == "" {
			of = d.ParentSnapshot.ParentSubvolume.Location
		}
		source, err := snapshot.NewSubvolume(of)
		if err != nil {
			return nil, err
		}
		snapCreated, err := parseTime(d.ParentSnapshot.CreationDate)
		if err != nil {
			return nil, err
		}
		snap, err := snapshot.Restore(source, d.ParentSnapshot.Location, snapCreated)
		if err != nil {
			return nil, err
		}
		created, err := parseTime(d.CreationDate)
		if err != nil {
			return nil, err
		}
		b, err := snapshot.NewBackup(snap, d.Location, created)
		if err != nil {
			return nil, err
		}
		if source.Location() != loc {
			return nil, echoerrors.Newf(echoerrors.DataInconsistent,
				"backupMap key %s does not match backup of %s", loc, source.Location())
		}
		r.latest[loc] = b
	}
	return r, nil
}
