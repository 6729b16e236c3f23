package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/juju/clock"
)

// OSFS is the FS backed by the local OS filesystem.
type OSFS struct {
	retry RetryPolicy
}

func New() *OSFS {
	return &OSFS{retry: DefaultRetryPolicy(clock.WallClock)}
}

// NewWithRetry lets callers tune how transient errors are retried.
func NewWithRetry(p RetryPolicy) *OSFS {
	return &OSFS{retry: p}
}

func infoOf(path string, st os.FileInfo) FileInfo {
	return FileInfo{
		Path:  path,
		Name:  st.Name(),
		Size:  st.Size(),
		MTime: st.ModTime(),
		IsDir: st.IsDir(),
	}
}

func (o *OSFS) Stat(path string) (FileInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return infoOf(path, st), nil
}

func (o *OSFS) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}

// ReadDir lists path sorted by name. Entries that vanish while listing are
// skipped.
func (o *OSFS) ReadDir(path string) ([]FileInfo, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		st, err := e.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		out = append(out, infoOf(filepath.Join(path, e.Name()), st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (o *OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (o *OSFS) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

func (o *OSFS) Remove(path string) error {
	return os.Remove(path)
}

func (o *OSFS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (o *OSFS) Rename(ctx context.Context, oldPath, newPath string) error {
	return renameWithRetry(ctx, o.retry, oldPath, newPath)
}

func (o *OSFS) WriteFileAtomic(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	return writeAtomic(ctx, o.retry, path, perm, func(w io.Writer) (int64, error) {
		n, err := w.Write(data)
		return int64(n), err
	})
}

// WriteStream copies r into path through a temporary sibling, so readers
// never observe a half-written file.
func (o *OSFS) WriteStream(ctx context.Context, path string, r io.Reader) (int64, error) {
	var written int64
	err := writeAtomic(ctx, o.retry, path, 0o644, func(w io.Writer) (int64, error) {
		n, err := io.Copy(w, ctxReader{ctx: ctx, r: r})
		written = n
		return n, err
	})
	return written, err
}
