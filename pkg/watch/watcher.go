// Package watch reports debounced changes to the configuration file and
// project manifests.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/pkgview/logging"
)

// ChangeKind classifies a watched file.
type ChangeKind int

const (
	// ConfigFile is the pkgview configuration (sources live there).
	ConfigFile ChangeKind = iota
	// Manifest is a project's package manifest.
	Manifest
)

func (k ChangeKind) String() string {
	if k == ConfigFile {
		return "config"
	}
	return "manifest"
}

// Change is one debounced file change.
type Change struct {
	Kind ChangeKind
	Path string
}

// Watcher watches the parent directories of its targets, since editors
// usually replace files instead of writing them in place.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *logrus.Entry

	mu      sync.Mutex
	targets map[string]Change // watched file -> change reported for it
	dirs    map[string]bool
	timers  map[string]*time.Timer
}

// New creates a watcher. A non-positive debounce defaults to 100ms.
func New(debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Watcher{
		watcher:  fw,
		debounce: debounce,
		logger:   logging.NewLogger("watch"),
		targets:  make(map[string]Change),
		dirs:     make(map[string]bool),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Add starts watching path.
func (w *Watcher) Add(path string, kind ChangeKind) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)

	paths := []string{abs}
	// fsnotify does not follow symlinks, so watch the target's directory too.
	if target, err := filepath.EvalSymlinks(abs); err == nil && target != abs {
		paths = append(paths, filepath.Clean(target))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range paths {
		w.targets[p] = Change{Kind: kind, Path: abs}
		if err := w.watchDir(filepath.Dir(p)); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) watchDir(dir string) error {
	if w.dirs[dir] {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = true
	w.logger.WithField("dir", dir).Debug("Watching directory")
	return nil
}

// Run delivers changes to out until ctx is cancelled. It closes the
// underlying watcher before returning.
func (w *Watcher) Run(ctx context.Context, out chan<- Change) error {
	defer w.close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.schedule(ctx, filepath.Clean(event.Name), out)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("File watcher error")
		}
	}
}

// schedule coalesces bursts of events for one path into a single change.
func (w *Watcher) schedule(ctx context.Context, path string, out chan<- Change) {
	w.mu.Lock()
	defer w.mu.Unlock()
	change, ok := w.targets[path]
	if !ok {
		return
	}
	// A symlink and its target share one timer.
	key := change.Path
	if t, ok := w.timers[key]; ok {
		t.Stop()
	}
	w.timers[key] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, key)
		w.mu.Unlock()

		w.logger.WithFields(logrus.Fields{"path": change.Path, "kind": change.Kind}).Debug("File changed")
		select {
		case out <- change:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) close() {
	w.mu.Lock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
	w.watcher.Close()
}
