// Package watcher monitors the settings file and reports edits.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/raoulx24/wandering-echo/internal/config"
	"github.com/raoulx24/wandering-echo/internal/fsprobe"
	"github.com/raoulx24/wandering-echo/internal/logging"
	"github.com/raoulx24/wandering-echo/internal/mailbox"
)

// Event says the settings file changed and settled.
type Event struct {
	Path    string
	ModTime time.Time
}

// Watcher observes one file and posts an Event when it is modified.
type Watcher struct {
	mu sync.RWMutex

	path      string
	interval  time.Duration
	mode      string
	debounce  time.Duration
	stability time.Duration

	clock clock.Clock
	log   logging.Logger

	lastModTime time.Time

	mb *mailbox.Mailbox[Event]
}

func New(path string, cfg config.ReloadConfig, clk clock.Clock, log logging.Logger, mb *mailbox.Mailbox[Event]) *Watcher {
	w := &Watcher{
		path:  path,
		clock: clk,
		log:   log.With("component", "watcher", "path", path),
		mb:    mb,
	}
	w.UpdateConfig(cfg)
	// edits from before the start do not count
	if mod, ok := w.modTime(); ok {
		w.lastModTime = mod
	}
	return w
}

// Start chooses the watching strategy from the configured mode and blocks
// until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.RLock()
	mode := w.mode
	dir := filepath.Dir(w.path)
	w.mu.RUnlock()

	switch mode {
	case "fsnotify":
		return w.StartFsNotify(ctx)

	case "poll":
		w.StartPolling(ctx)
		return nil

	case "auto", "":
		res := fsprobe.Probe(dir, fsprobe.DefaultTimeout)
		if res.FsnotifySupported {
			return w.StartFsNotify(ctx)
		}
		w.log.Warn("fsnotify disabled, polling", "reason", res.Reason)
		w.StartPolling(ctx)
		return nil

	default:
		return fmt.Errorf("unknown watch mode %q", mode)
	}
}
