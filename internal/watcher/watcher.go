// Package watcher notifies when a single file is written, replaced or removed.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce coalesces the burst of events editors produce on save.
const DefaultDebounce = 150 * time.Millisecond

// Event describes what happened to the watched file.
type Event int

const (
	// Changed means the file was written or (re)created.
	Changed Event = iota
	// Removed means the file is gone.
	Removed
)

func (e Event) String() string {
	if e == Removed {
		return "removed"
	}
	return "changed"
}

// Watcher monitors one file and calls onEvent after events settle.
// It watches the parent directory, so editors that save by rename are seen
// and the file may not exist yet when watching starts.
type Watcher struct {
	watcher    *fsnotify.Watcher
	ctx        context.Context
	onEvent    func(Event)
	cancel     context.CancelFunc
	pending    *time.Timer
	targetPath string
	parentPath string
	debounce   time.Duration
	mu         sync.Mutex
	running    bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before onEvent is called.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a Watcher for targetPath.
func New(targetPath string, onEvent func(Event), opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	target := filepath.Clean(targetPath)

	w := &Watcher{
		targetPath: target,
		parentPath: filepath.Dir(target),
		onEvent:    onEvent,
		watcher:    fsw,
		ctx:        ctx,
		cancel:     cancel,
		debounce:   DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. The parent directory must exist.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	if _, err := os.Stat(w.parentPath); err != nil {
		return err
	}
	if err := w.watcher.Add(w.parentPath); err != nil {
		return err
	}
	w.running = true

	go w.watchLoop()
	log.Debug().Str("path", w.targetPath).Msg("Watching file")
	return nil
}

// Stop stops the watcher. Pending notifications are dropped.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	w.cancel()
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.targetPath {
				continue
			}
			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				w.schedule(Changed)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.schedule(Removed)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Str("path", w.targetPath).Msg("Watcher error")
		}
	}
}

// schedule restarts the debounce timer. The last event of a burst wins, but a
// removal followed by a recreate is reported as a change.
func (w *Watcher) schedule(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, func() {
		w.fire(ev)
	})
}

func (w *Watcher) fire(ev Event) {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.pending = nil
	w.mu.Unlock()

	// Rename-based saves remove then recreate; trust the filesystem over the last event.
	if ev == Removed {
		if _, err := os.Stat(w.targetPath); err == nil {
			ev = Changed
		}
	}

	log.Info().Str("path", w.targetPath).Stringer("event", ev).Msg("Watched file event")
	if w.onEvent != nil {
		w.onEvent(ev)
	}
}
