package sidecar

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler is called with a book's base name after its data file
// settles. The handler runs on the watcher goroutine; long work should be
// handed off.
type ChangeHandler func(baseName string)

// Watcher monitors the sidecar tree for data files edited behind the
// server's back, by another tool or a file sync client. Writes are
// debounced so a sync client streaming a file in chunks triggers one
// import, not ten.
type Watcher struct {
	manager  *Manager
	handler  ChangeHandler
	logger   *slog.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer // base name -> debounce timer

	// skip suppresses events for paths the server itself just wrote.
	skip map[string]time.Time
}

const defaultDebounce = 500 * time.Millisecond

// NewWatcher creates a watcher over the manager's tree.
func NewWatcher(manager *Manager, handler ChangeHandler, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		manager:  manager,
		handler:  handler,
		logger:   logger,
		debounce: defaultDebounce,
		watcher:  fsw,
		pending:  make(map[string]*time.Timer),
		skip:     make(map[string]time.Time),
	}

	if err := fsw.Add(manager.Root()); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch sidecar root: %w", err)
	}

	dirs, err := manager.BookDirs()
	if err != nil {
		fsw.Close()
		return nil, err
	}
	for _, name := range dirs {
		if err := fsw.Add(filepath.Join(manager.Root(), name)); err != nil {
			logger.Warn("failed to watch book dir", "dir", name, "error", err)
		}
	}

	return w, nil
}

// Suppress marks a path so the next events for it are ignored. Called
// before the server writes a sidecar file itself, so its own exports do not
// bounce back as imports.
func (w *Watcher) Suppress(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.skip[filepath.Clean(path)] = time.Now().Add(2 * time.Second)
}

// Start processes events until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("sidecar watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// A new book directory must itself be watched for its future data file.
	if event.Op.Has(fsnotify.Create) && filepath.Dir(event.Name) == w.manager.Root() {
		if filepath.Ext(event.Name) == "" {
			if err := w.watcher.Add(event.Name); err == nil {
				w.logger.Debug("watching new book dir", "dir", event.Name)
			}
		}
	}

	if filepath.Base(event.Name) != dataFileName {
		return
	}
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
		return
	}

	path := filepath.Clean(event.Name)
	baseName := filepath.Base(filepath.Dir(path))

	w.mu.Lock()
	defer w.mu.Unlock()

	if until, ok := w.skip[path]; ok {
		if time.Now().Before(until) {
			return
		}
		delete(w.skip, path)
	}

	if timer, ok := w.pending[baseName]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.pending[baseName] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, baseName)
		w.mu.Unlock()

		w.logger.Info("sidecar data file changed", "book", baseName)
		w.handler(baseName)
	})
}
