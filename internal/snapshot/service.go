package snapshot

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
	"github.com/raoulx24/wandering-echo/internal/fs"
	"github.com/raoulx24/wandering-echo/internal/logging"
	"github.com/raoulx24/wandering-echo/internal/worker"
)

// Primitive is the host side of snapshot creation.
type Primitive interface {
	CreateReadOnlySnapshot(ctx context.Context, source, dest string) error
	// FilesystemRoot returns the mount target of the filesystem holding path.
	FilesystemRoot(ctx context.Context, path string) (string, error)
}

// Recorder persists the sidecar record of a created snapshot.
type Recorder interface {
	Put(Snapshot) error
}

type ServiceConfig struct {
	Primitive Primitive
	Recorder  Recorder
	FS        fs.FS
	Clock     clock.Clock
	Pool      *worker.Pool
	Logger    logging.Logger
	// DirName is the folder created at the filesystem root to hold snapshots.
	DirName string
}

// Service creates snapshots and remembers where each subvolume's snapshots
// belong.
type Service struct {
	cfg ServiceConfig

	mu      sync.Mutex
	folders map[string]string
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.DirName == "" {
		cfg.DirName = "Snapshots"
	}
	return &Service{cfg: cfg, folders: make(map[string]string)}
}

// Folder resolves the snapshot folder of sv: <filesystem root>/<DirName>.
// The answer is computed once per subvolume and the folder is created.
func (s *Service) Folder(ctx context.Context, sv Subvolume) (string, error) {
	s.mu.Lock()
	folder, ok := s.folders[sv.Location()]
	s.mu.Unlock()
	if ok {
		return folder, nil
	}

	root, err := s.cfg.Primitive.FilesystemRoot(ctx, filepath.Dir(sv.Location()))
	if err != nil {
		return "", errors.Annotatef(err, "locating filesystem of %s", sv.Location())
	}
	folder = filepath.Join(root, s.cfg.DirName)
	if err := s.cfg.FS.MkdirAll(folder); err != nil {
		return "", echoerrors.Mark(errors.Annotatef(err, "creating %s", folder), echoerrors.IOFailure)
	}

	s.mu.Lock()
	s.folders[sv.Location()] = folder
	s.mu.Unlock()
	return folder, nil
}

// Folders returns every snapshot folder resolved so far, deduplicated.
func (s *Service) Folders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, f := range s.folders {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// Snapshot takes a read-only snapshot of sv and records it. On failure no
// snapshot is returned and the error names the subvolume.
func (s *Service) Snapshot(ctx context.Context, sv Subvolume) (Snapshot, error) {
	snap, err := s.snapshot(ctx, sv)
	if err != nil {
		return Snapshot{}, errors.Annotatef(err, "snapshotting %s", sv.Name())
	}
	return snap, nil
}

func (s *Service) snapshot(ctx context.Context, sv Subvolume) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	folder, err := s.Folder(ctx, sv)
	if err != nil {
		return Snapshot{}, err
	}

	planned := Planned(sv, folder, s.cfg.Clock.Now().Truncate(time.Second))
	exists, err := s.cfg.FS.Exists(planned.Location())
	if err != nil {
		return Snapshot{}, echoerrors.Mark(err, echoerrors.IOFailure)
	}
	if exists {
		return Snapshot{}, echoerrors.Newf(echoerrors.DataInconsistent, "%s already exists", planned.Location())
	}

	if err := s.cfg.Primitive.CreateReadOnlySnapshot(ctx, sv.Location(), planned.Location()); err != nil {
		return Snapshot{}, err
	}
	snap := planned.Stamped(s.cfg.Clock.Now())

	if err := s.cfg.Recorder.Put(snap); err != nil {
		return Snapshot{}, errors.Annotatef(err, "recording %s", snap.Name())
	}
	s.cfg.Logger.Info("snapshot created", "subvolume", sv.Name(), "snapshot", snap.Location())
	return snap, nil
}

// Result is the outcome of snapshotting one subvolume.
type Result struct {
	Subvolume Subvolume
	Snapshot  Snapshot
	Err       error
}

// SnapshotAll snapshots every subvolume concurrently and returns once all of
// them have finished, one result per subvolume in input order.
func (s *Service) SnapshotAll(ctx context.Context, svs []Subvolume) []Result {
	results := make([]Result, len(svs))
	jobs := make([]worker.Job, len(svs))
	for i, sv := range svs {
		i, sv := i, sv
		jobs[i] = worker.Job{
			Name: "snapshot " + sv.Name(),
			Run: func(ctx context.Context) {
				snap, err := s.Snapshot(ctx, sv)
				if err != nil {
					s.cfg.Logger.Error("snapshot failed", "subvolume", sv.Name(), "error", err)
				}
				results[i] = Result{Subvolume: sv, Snapshot: snap, Err: err}
			},
		}
	}
	s.cfg.Pool.Run(ctx, "snapshot", jobs)
	return results
}
