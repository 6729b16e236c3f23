package watcher

func (w *Watcher) Detect() { w.detect() }
