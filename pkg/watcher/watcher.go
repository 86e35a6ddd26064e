package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/0xmhha/metalite/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

// watcher implements the Watcher interface using fsnotify.
type watcher struct {
	fsw    *fsnotify.Watcher
	logger logger.Logger
	config Config

	events chan Event
	errors chan error

	mu       sync.RWMutex
	running  bool
	closed   bool
	stopChan chan struct{}

	// files holds the absolute paths being watched.
	files map[string]bool

	// Debouncing state.
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	failureCount int
}

// New creates a new file watcher for local database and history files.
//
// Parameters:
//   - cfg: Watcher configuration (zero values get defaults)
//   - log: Logger instance
//
// Returns:
//   - Configured Watcher, not yet started
//   - Error if the fsnotify watcher cannot be created
func New(cfg Config, log logger.Logger) (Watcher, error) {
	// Set defaults.
	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = 300 * time.Millisecond
	}
	if cfg.CircuitBreakerThreshold == 0 {
		cfg.CircuitBreakerThreshold = 5
	}

	// Create fsnotify watcher.
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &watcher{
		fsw:            fsw,
		logger:         log,
		config:         cfg,
		events:         make(chan Event, 16),
		errors:         make(chan error, 10),
		stopChan:       make(chan struct{}),
		files:          make(map[string]bool),
		debounceTimers: make(map[string]*time.Timer),
	}

	log.Debug("file watcher created", "debounce_interval", cfg.DebounceInterval)

	return w, nil
}

// Start implements Watcher.Start.
func (w *watcher) Start(ctx context.Context, files []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.running {
		return ErrAlreadyStarted
	}
	if len(files) == 0 {
		return ErrNoFiles
	}

	// Resolve and validate files. Their parent directories are watched.
	dirs := make(map[string]bool)
	for _, file := range files {
		abs, err := filepath.Abs(expandHome(file))
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", file, err)
		}

		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", abs, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", abs)
		}

		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}

	// Add directories to watcher.
	for dir := range dirs {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.logger.Debug("added watch directory", "path", dir)
	}

	w.running = true
	w.stopChan = make(chan struct{})

	w.logger.Info("watcher started", "file_count", len(w.files))

	// Start event processing loop.
	go w.processEvents(ctx, w.stopChan)

	return nil
}

// Stop implements Watcher.Stop.
func (w *watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if !w.running {
		return ErrNotStarted
	}

	// Signal stop.
	close(w.stopChan)
	w.running = false

	w.logger.Info("watcher stopped")
	return nil
}

// Events implements Watcher.Events.
func (w *watcher) Events() <-chan Event {
	return w.events
}

// Errors implements Watcher.Errors.
func (w *watcher) Errors() <-chan error {
	return w.errors
}

// Close implements Watcher.Close.
func (w *watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true

	// Stop if running.
	if w.running {
		close(w.stopChan)
		w.running = false
	}

	// Cancel debounce timers.
	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	w.debounceTimers = nil
	w.debounceMu.Unlock()

	// Timers only send while holding mu.RLock, so no send can race these.
	close(w.events)
	close(w.errors)

	// Close fsnotify watcher.
	if err := w.fsw.Close(); err != nil {
		w.logger.Error("failed to close fsnotify watcher", "error", err)
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.logger.Debug("watcher closed")
	return nil
}

// processEvents handles events from fsnotify.
func (w *watcher) processEvents(ctx context.Context, stop <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("event processing stopped", "reason", "context cancelled")
			return

		case <-stop:
			w.logger.Debug("event processing stopped", "reason", "stop signal")
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			w.handleError(err)
		}
	}
}

// handleEvent filters an fsnotify event down to watched files.
func (w *watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	// Skip files nobody asked for; siblings share the directory watch.
	w.mu.RLock()
	watched := w.files[path]
	w.mu.RUnlock()
	if !watched {
		return
	}

	// Convert fsnotify op to our Op type.
	var op Op
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		op = OpCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		op = OpWrite
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		op = OpRemove
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		op = OpRename
	case event.Op&fsnotify.Chmod == fsnotify.Chmod:
		op = OpChmod
	default:
		w.logger.Debug("unknown fsnotify operation",
			"op", event.Op,
			"path", event.Name)
		return
	}

	// Debounce the event.
	w.debounceEvent(Event{
		Path:      path,
		Op:        op,
		Timestamp: time.Now(),
	})
}

// debounceEvent restarts the quiet period for event.Path. Only the last
// event of a burst is delivered.
func (w *watcher) debounceEvent(event Event) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimers == nil {
		return
	}

	// Cancel existing timer for this path.
	if timer, exists := w.debounceTimers[event.Path]; exists {
		timer.Stop()
	}

	// Create new debounce timer.
	w.debounceTimers[event.Path] = time.AfterFunc(w.config.DebounceInterval, func() {
		w.debounceMu.Lock()
		if w.debounceTimers != nil {
			delete(w.debounceTimers, event.Path)
		}
		w.debounceMu.Unlock()

		w.mu.RLock()
		defer w.mu.RUnlock()

		if w.closed {
			return
		}

		select {
		case w.events <- event:
		default:
			w.logger.Warn("event channel full, dropping event", "path", event.Path)
		}
	})
}

// handleError reports an fsnotify error, escalating to
// ErrCircuitBreakerOpen once the threshold is reached.
func (w *watcher) handleError(err error) {
	w.mu.Lock()
	w.failureCount++
	count := w.failureCount
	w.mu.Unlock()

	w.logger.Error("fsnotify error",
		"error", err,
		"failure_count", count)

	// Check circuit breaker.
	if count >= w.config.CircuitBreakerThreshold {
		err = ErrCircuitBreakerOpen
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return
	}

	// Send error to channel.
	select {
	case w.errors <- err:
	default:
		w.logger.Warn("error channel full, dropping error")
	}
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
