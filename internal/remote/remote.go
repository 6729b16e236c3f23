// Package remote delivers backups off the host: to another directory, an
// SFTP server or an S3 bucket.
package remote

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/raoulx24/wandering-echo/internal/config"
	"github.com/raoulx24/wandering-echo/internal/fs"
	"github.com/raoulx24/wandering-echo/internal/logging"
)

// Destination is an off-host store for send streams.
type Destination interface {
	// Upload stores everything read from r under name and returns the number
	// of bytes stored.
	Upload(ctx context.Context, name string, r io.Reader) (int64, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]File, error)
	Type() string
	Close() error
}

// File is an object held by a destination.
type File struct {
	Name     string
	Size     int64
	Modified time.Time
}

// New opens the destination described by cfg. It returns nil when remote
// delivery is disabled.
func New(cfg config.RemoteConfig, filesystem fs.FS, log logging.Logger) (Destination, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "local":
		return NewLocal(cfg.Path, filesystem), nil
	case "sftp":
		return NewSFTP(cfg.Path, cfg.SFTP, log)
	case "s3":
		return NewS3(cfg.Path, cfg.S3, log)
	default:
		return nil, fmt.Errorf("unsupported destination type: %s", cfg.Type)
	}
}
