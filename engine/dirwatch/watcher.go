package dirwatch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-reload/engine/logger"
	"github.com/fsnotify/fsnotify"
)

// watcher is the implementation of the Watcher interface.
type watcher struct {
	root      string
	recursive bool
	log       *slog.Logger

	fs       *fsnotify.Watcher
	pending  atomic.Bool
	revision atomic.Uint64
	events   atomic.Uint64

	mu      sync.Mutex
	watched map[string]bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// Watcher watches a directory tree and turns file-system activity into revision bumps.
// Events are collected on a background goroutine, but the revision only advances when
// Refresh is called, so consumers on the render loop see it change at frame boundaries.
type Watcher interface {
	RevisionSource

	// Refresh publishes pending file-system activity. It should be called once per frame.
	//
	// Returns:
	//   - bool: true if the revision advanced
	Refresh() bool

	// Root returns the watched root directory.
	//
	// Returns:
	//   - string: the absolute root path
	Root() string

	// Events returns the number of raw file-system events observed so far.
	//
	// Returns:
	//   - uint64: the event count
	Events() uint64

	// Close stops watching and waits for the background goroutine to exit.
	//
	// Returns:
	//   - error: an error if the underlying watcher failed to close
	Close() error
}

var _ Watcher = &watcher{}

// NewWatcher starts watching root. Subdirectories are watched too unless disabled with WithRecursive(false),
// and directories created later are added as they appear.
//
// Parameters:
//   - root: the directory to watch
//   - opts: optional WatcherBuilderOption functions
//
// Returns:
//   - Watcher: the running watcher
//   - error: an error if root is not a directory or the OS watcher could not be created
func NewWatcher(root string, opts ...WatcherBuilderOption) (Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("dirwatch: resolve %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("dirwatch: stat %q: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dirwatch: %q is not a directory", abs)
	}

	w := &watcher{
		root:      abs,
		recursive: true,
		watched:   make(map[string]bool),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = logger.Or(w.log)

	w.fs, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("dirwatch: create watcher: %w", err)
	}
	if err := w.addTree(abs); err != nil {
		w.fs.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *watcher) Root() string {
	return w.root
}

func (w *watcher) CurrentRevision() uint64 {
	return w.revision.Load()
}

func (w *watcher) Events() uint64 {
	return w.events.Load()
}

func (w *watcher) Refresh() bool {
	if !w.pending.Swap(false) {
		return false
	}
	rev := w.revision.Add(1)
	w.log.Debug("shader directory changed", "root", w.root, "revision", rev)
	return true
}

func (w *watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()
	return err
}

func (w *watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.events.Add(1)
			if w.recursive && event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.log.Warn("dirwatch: failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.forget(event.Name)
			}
			w.pending.Store(true)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("dirwatch: watcher error", "root", w.root, "error", err)
			// An overflow means events were lost; treat it as a change.
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.pending.Store(true)
			}
		}
	}
}

func (w *watcher) addTree(dir string) error {
	if !w.recursive {
		return w.add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.add(path)
	})
}

func (w *watcher) add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[dir] {
		return nil
	}
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("dirwatch: watch %q: %w", dir, err)
	}
	w.watched[dir] = true
	return nil
}

func (w *watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.watched, path)
}
