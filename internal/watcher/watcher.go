// Package watcher turns raw filesystem events under the vault into
// debounced change triggers for the sync engine. Events inside .git and
// paths matched by the exclude globs never trigger.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/skaphos/vaultsync/internal/pathspec"
)

// TriggerFunc receives the paths that changed during one quiet period,
// vault-relative and deduplicated. Callbacks run on the watcher's
// goroutine.
type TriggerFunc func(paths []string)

// Watcher watches a vault directory tree and fires the trigger once a
// burst of changes has been quiet for the debounce interval.
type Watcher struct {
	root     string
	debounce time.Duration
	matcher  *pathspec.Matcher
	trigger  TriggerFunc

	fsw  *fsnotify.Watcher
	done chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	running bool

	// Logf receives watch diagnostics. Nil discards them.
	Logf func(format string, args ...any)
}

// New creates a watcher for the vault root. Exclude patterns use the
// same glob syntax as the staging excludes; a changed path matching one
// is ignored.
func New(root string, debounce time.Duration, exclude []string, trigger TriggerFunc) (*Watcher, error) {
	if trigger == nil {
		return nil, fmt.Errorf("trigger callback is required")
	}
	matcher, err := pathspec.New(exclude)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		matcher:  matcher,
		trigger:  trigger,
	}, nil
}

// Start begins watching. The whole tree under the root is registered up
// front; directories created later are registered as their create events
// arrive.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create filesystem watcher: %w", err)
	}
	if err := w.addTree(fsw, w.root); err != nil {
		_ = fsw.Close()
		return err
	}

	w.fsw = fsw
	w.done = make(chan struct{})
	w.running = true
	w.wg.Add(1)
	go w.loop(fsw, w.done)
	return nil
}

// Stop stops watching and waits for the event loop to drain. Idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	done := w.done
	fsw := w.fsw
	w.mu.Unlock()

	close(done)
	_ = fsw.Close()
	w.wg.Wait()
}

// Running reports whether the event loop is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// addTree registers dir and every non-ignored subdirectory.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if w.ignoredDir(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) ignoredDir(path string) bool {
	rel := w.relPath(path)
	if rel == "." || rel == "" {
		return false
	}
	if rel == ".git" || strings.HasPrefix(rel, ".git/") {
		return true
	}
	return w.matcher.Match(rel)
}

func (w *Watcher) relPath(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) logf(format string, args ...any) {
	if w.Logf != nil {
		w.Logf(format, args...)
	}
}

// loop collects events into a pending set and fires the trigger once the
// debounce timer elapses with no further events.
func (w *Watcher) loop(fsw *fsnotify.Watcher, done chan struct{}) {
	defer w.wg.Done()

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-done:
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			rel, accept := w.filter(event)
			if !accept {
				continue
			}
			if event.Has(fsnotify.Create) {
				w.maybeWatchNewDir(fsw, event.Name)
			}
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logf("watch error: %v", err)

		case <-fire:
			paths := make([]string, 0, len(pending))
			for rel := range pending {
				paths = append(paths, rel)
			}
			pending = make(map[string]struct{})
			fire = nil
			timer = nil
			w.trigger(paths)
		}
	}
}

// filter maps an fsnotify event to a vault-relative path, rejecting
// chmod noise, .git traffic, and excluded paths.
func (w *Watcher) filter(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return "", false
	}
	rel := w.relPath(event.Name)
	if rel == "." || rel == "" {
		return "", false
	}
	if rel == ".git" || strings.HasPrefix(rel, ".git/") {
		return "", false
	}
	if w.matcher.Match(rel) {
		return "", false
	}
	return rel, true
}

// maybeWatchNewDir registers a freshly created directory so events under
// it are not missed.
func (w *Watcher) maybeWatchNewDir(fsw *fsnotify.Watcher, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if w.ignoredDir(path) {
		return
	}
	if err := w.addTree(fsw, path); err != nil {
		w.logf("watch new directory %s: %v", path, err)
	}
}
