package remote

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/juju/errors"

	"github.com/raoulx24/wandering-echo/internal/fs"
)

// LocalDestination stores streams as files in a directory, typically a
// network mount.
type LocalDestination struct {
	dir string
	fs  fs.FS
}

func NewLocal(dir string, filesystem fs.FS) *LocalDestination {
	return &LocalDestination{dir: dir, fs: filesystem}
}

func (l *LocalDestination) Upload(ctx context.Context, name string, r io.Reader) (int64, error) {
	n, err := l.fs.WriteStream(ctx, filepath.Join(l.dir, name), r)
	return n, errors.Annotatef(err, "storing %s", name)
}

func (l *LocalDestination) Delete(_ context.Context, name string) error {
	err := l.fs.Remove(filepath.Join(l.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	return errors.Trace(err)
}

func (l *LocalDestination) List(context.Context) ([]File, error) {
	entries, err := l.fs.ReadDir(l.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	var files []File
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		files = append(files, File{Name: e.Name, Size: e.Size, Modified: e.MTime})
	}
	return files, nil
}

func (l *LocalDestination) Type() string { return "local" }

func (l *LocalDestination) Close() error { return nil }
