// Package watcher watches a single file with fsnotify and coalesces
// bursts of filesystem events into one callback. Serve mode uses it to
// reload the config file without restarting.
package watcher

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrClosed is returned when operations are called on a closed Watcher.
var ErrClosed = errors.New("watcher: watcher is closed")

// DefaultDebounce is the default coalescing window. Editors often emit
// several write/rename events per save; one callback per burst is enough.
const DefaultDebounce = 250 * time.Millisecond

// Watcher watches one file for changes. The parent directory is watched
// rather than the file itself, so rename-replace saves keep working.
type Watcher struct {
	path     string
	fs       *fsnotify.Watcher
	debounce time.Duration
	onChange func()
	onError  func(error)

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithErrorHandler sets a callback for watch errors.
func WithErrorHandler(fn func(error)) Option {
	return func(w *Watcher) { w.onError = fn }
}

// Watch starts watching path and invokes onChange once per burst of
// modifications. Close releases the watch.
func Watch(path string, onChange func(), opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		path:     abs,
		fs:       fs,
		debounce: DefaultDebounce,
		onChange: onChange,
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := fs.Add(filepath.Dir(abs)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	go w.run()
	return w, nil
}

// Path returns the watched file path.
func (w *Watcher) Path() string { return w.path }

// Close stops the watcher. Idempotent.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	return w.fs.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		closed := w.closed
		w.mu.Unlock()
		if !closed && w.onChange != nil {
			w.onChange()
		}
	})
}
