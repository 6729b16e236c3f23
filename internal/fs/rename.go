package fs

import (
	"context"
	"os"
)

// renameWithRetry is the atomic commit step for every write.
func renameWithRetry(ctx context.Context, p RetryPolicy, oldPath, newPath string) error {
	return withRetry(ctx, p, "rename", func() error {
		return os.Rename(oldPath, newPath)
	})
}
