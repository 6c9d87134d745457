package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce collapses the burst of events editors produce on save.
const DefaultDebounce = 500 * time.Millisecond

// ReloadFunc is invoked after a watched file settles.
type ReloadFunc func(path string) error

// FileWatcher watches individual files and calls their reload function once
// per burst of changes. Parent directories are watched so that editors which
// replace the file by rename are still seen.
type FileWatcher struct {
	mu       sync.Mutex
	files    map[string]ReloadFunc
	timers   map[string]*time.Timer
	debounce time.Duration
	watcher  *fsnotify.Watcher
	wg       sync.WaitGroup
	logger   zerolog.Logger
}

// NewFileWatcher creates a watcher. A zero debounce uses DefaultDebounce.
func NewFileWatcher(debounce time.Duration, logger zerolog.Logger) *FileWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &FileWatcher{
		files:    make(map[string]ReloadFunc),
		timers:   make(map[string]*time.Timer),
		debounce: debounce,
		logger:   logger,
	}
}

// Watch registers path. It must be called before Start.
func (w *FileWatcher) Watch(path string, fn ReloadFunc) error {
	if path == "" {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	w.mu.Lock()
	w.files[abs] = fn
	w.mu.Unlock()
	return nil
}

// Len returns the number of watched files.
func (w *FileWatcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.files)
}

// Start begins watching. It returns once the watch is established; events
// are handled until ctx is done.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	dirs := make(map[string]struct{})
	for path := range w.files {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	w.mu.Unlock()

	if len(dirs) == 0 {
		w.logger.Info().Msg("no files to watch, file watcher disabled")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("watch directory %s: %w", dir, err)
		}
	}
	w.watcher = watcher

	w.logger.Info().Int("files", w.Len()).Msg("watching files for changes")

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Wait blocks until the event loop has exited.
func (w *FileWatcher) Wait() {
	w.wg.Wait()
}

func (w *FileWatcher) loop(ctx context.Context) {
	defer w.wg.Done()
	defer func() {
		_ = w.watcher.Close()
		w.mu.Lock()
		for _, t := range w.timers {
			t.Stop()
		}
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("file watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.schedule(ctx, filepath.Clean(event.Name), event.Op)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("file watcher error")
		}
	}
}

func (w *FileWatcher) schedule(ctx context.Context, path string, op fsnotify.Op) {
	w.mu.Lock()
	defer w.mu.Unlock()

	fn, ok := w.files[path]
	if !ok {
		return
	}
	w.logger.Debug().Str("path", path).Str("op", op.String()).Msg("watched file changed")

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		if err := fn(path); err != nil {
			w.logger.Error().Err(err).Str("path", path).Msg("automatic reload failed")
			return
		}
		w.logger.Info().Str("path", path).Msg("reloaded after file change")
	})
}
