package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/juju/errors"
)

// writeAtomic writes into a temp file next to path, syncs it and renames it
// into place. The temp file is removed on every failure path.
func writeAtomic(ctx context.Context, p RetryPolicy, path string, perm os.FileMode, fill func(io.Writer) (int64, error)) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Annotatef(err, "creating %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Annotatef(err, "creating temp file for %s", path)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := fill(tmp); err != nil {
		_ = tmp.Close()
		return errors.Annotatef(err, "writing %s", path)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return errors.Trace(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Annotatef(err, "syncing %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Trace(err)
	}

	if err := renameWithRetry(ctx, p, tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}

// ctxReader stops a long copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
