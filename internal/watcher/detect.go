package watcher

import (
	"os"
	"time"
)

func (w *Watcher) modTime() (time.Time, bool) {
	w.mu.RLock()
	path := w.path
	w.mu.RUnlock()

	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// detect posts an event if the file changed since the last one and is no
// longer being written.
func (w *Watcher) detect() {
	mod, ok := w.modTime()
	if !ok {
		return
	}

	w.mu.RLock()
	last := w.lastModTime
	path := w.path
	w.mu.RUnlock()

	if !mod.After(last) {
		return
	}
	if !w.isStable() {
		w.log.Debug("settings still being written")
		return
	}

	w.mu.Lock()
	w.lastModTime = mod
	w.mu.Unlock()

	w.log.Info("settings changed")
	w.mb.Put(Event{Path: path, ModTime: mod})
}

// isStable compares the size of the file across the stability window.
func (w *Watcher) isStable() bool {
	w.mu.RLock()
	path := w.path
	stability := w.stability
	w.mu.RUnlock()

	info1, err := os.Stat(path)
	if err != nil {
		return false
	}
	if stability > 0 {
		<-w.clock.After(stability)
	}
	info2, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info1.Size() == info2.Size()
}
