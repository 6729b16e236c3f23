package watcher

import "context"

// StartPolling triggers detect on a fixed interval.
func (w *Watcher) StartPolling(ctx context.Context) {
	for {
		w.mu.RLock()
		interval := w.interval
		w.mu.RUnlock()

		select {
		case <-ctx.Done():
			return
		case <-w.clock.After(interval):
			w.detect()
		}
	}
}
