package watcher

import (
	"time"

	"github.com/raoulx24/wandering-echo/internal/config"
)

const defaultPollInterval = 5 * time.Second

// UpdateConfig applies reloaded watch settings. The mode only takes effect
// on the next Start.
func (w *Watcher) UpdateConfig(cfg config.ReloadConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.mode = cfg.Mode
	w.interval = cfg.PollInterval
	if w.interval <= 0 {
		w.interval = defaultPollInterval
	}
	w.debounce = cfg.DebounceWindow
	w.stability = cfg.StabilityWindow
}
