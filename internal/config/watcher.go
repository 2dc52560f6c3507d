package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/streekit/streekeeper/internal/event"
	"github.com/streekit/streekeeper/internal/logging"
)

// DefaultDebounce is how long the watcher waits for a change burst to
// settle before announcing a reload. Editor saves often produce several
// events (truncate, write, rename) within a few milliseconds.
const DefaultDebounce = 400 * time.Millisecond

// Watcher monitors the configuration files Load consults and publishes a
// single config.reloaded event per change burst.
type Watcher struct {
	watcher  *fsnotify.Watcher
	targets  map[string]bool
	debounce time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	mu       sync.Mutex
}

// NewWatcher creates a watcher for the given workspace directory. The
// parent directories of all candidate config files that currently exist
// are registered; files created later in those directories are picked up
// too.
func NewWatcher(directory string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	targets := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, t := range WatchTargets(directory) {
		abs, err := filepath.Abs(t)
		if err != nil {
			continue
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}

	added := 0
	for dir := range dirs {
		if err := w.Add(dir); err == nil {
			added++
		}
	}
	logging.Debug().Int("dirs", added).Msg("config watcher initialized")

	return &Watcher{
		watcher:  w,
		targets:  targets,
		debounce: DefaultDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// SetDebounce overrides the settle window. Must be called before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Start begins watching for configuration changes.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	// Timer armed only while a burst is settling
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	var pending string
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			pending = ev.Name
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error().Err(err).Msg("config watcher error")
		case <-timer.C:
			logging.Info().Str("path", pending).Msg("configuration changed")
			event.PublishSync(event.Event{
				Type: event.ConfigReloaded,
				Data: event.ConfigReloadedData{Path: pending},
			})
			pending = ""
		}
	}
}

// relevant reports whether the event touches one of the tracked config
// files with an op that changes content.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	return w.targets[abs]
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	select {
	case <-w.stopCh:
		// Already stopped
	default:
		close(w.stopCh)
	}

	if started {
		<-w.doneCh
	}

	return w.watcher.Close()
}
