package config

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadCallback is called when the panel sets file is successfully
// reloaded. If the callback returns an error, it is logged but the watcher
// continues watching.
type ReloadCallback func(config *PanelSetsFile) error

// PanelSetsWatcherConfig holds configuration for the PanelSetsWatcher.
type PanelSetsWatcherConfig struct {
	// FilePath is the path to the panel sets YAML file to watch
	FilePath string

	// DebounceMillis coalesces multiple file change events within this
	// period into a single reload. Default: 500ms.
	DebounceMillis int
}

// PanelSetsWatcher watches the panel sets file for changes and triggers
// reload callbacks with debouncing to prevent reload storms from editor
// save sequences.
//
// Invalid configs during reload are logged but do not crash the watcher; it
// continues watching with the previous valid config.
type PanelSetsWatcher struct {
	config   PanelSetsWatcherConfig
	callback ReloadCallback
	logger   *slog.Logger
	cancel   context.CancelFunc
	stopped  chan struct{}
	ready    chan struct{}
	mu       sync.Mutex

	debounceTimer *time.Timer
}

// NewPanelSetsWatcher creates a new watcher for the given panel sets file.
// The callback is invoked when the file changes and the new config is valid.
func NewPanelSetsWatcher(cfg PanelSetsWatcherConfig, logger *slog.Logger, callback ReloadCallback) (*PanelSetsWatcher, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("FilePath cannot be empty")
	}
	if callback == nil {
		return nil, fmt.Errorf("callback cannot be nil")
	}
	if cfg.DebounceMillis == 0 {
		cfg.DebounceMillis = 500
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PanelSetsWatcher{
		config:   cfg,
		callback: callback,
		logger:   logger,
		stopped:  make(chan struct{}),
		ready:    make(chan struct{}),
	}, nil
}

// Start loads the initial config, calls the callback, and then watches for
// file changes until the context is cancelled or Stop is called.
func (w *PanelSetsWatcher) Start(ctx context.Context) error {
	initial, err := LoadPanelSetsFile(w.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to load initial panel sets: %w", err)
	}

	if err := w.callback(initial); err != nil {
		return fmt.Errorf("initial callback failed: %w", err)
	}

	w.logger.Info("loaded panel sets", "path", w.config.FilePath)

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	go w.watchLoop(watchCtx)

	// Wait for the fsnotify watcher to be fully initialized so file changes
	// are not missed due to startup races
	select {
	case <-w.ready:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for file watcher to initialize")
	}

	return nil
}

// Stop stops the watcher and waits for the watch loop to exit.
func (w *PanelSetsWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	<-w.stopped
}

// signalReady safely closes the ready channel exactly once
func (w *PanelSetsWatcher) signalReady() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ready:
	default:
		close(w.ready)
	}
}

// watchLoop is the main file watching loop
func (w *PanelSetsWatcher) watchLoop(ctx context.Context) {
	defer close(w.stopped)
	defer w.signalReady()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Error("failed to create file watcher", "error", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(w.config.FilePath); err != nil {
		w.logger.Error("failed to watch panel sets file",
			"path", w.config.FilePath, "error", err)
		return
	}

	w.logger.Debug("watching panel sets file",
		"path", w.config.FilePath, "debounce_ms", w.config.DebounceMillis)

	w.signalReady()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			// Remove/Rename matter for atomic writes where the old file is
			// unlinked before the new one is renamed into place; the watch
			// must be re-added because the inode changed
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Rename == fsnotify.Rename ||
				event.Op&fsnotify.Remove == fsnotify.Remove {
				if event.Op&fsnotify.Rename == fsnotify.Rename ||
					event.Op&fsnotify.Remove == fsnotify.Remove {
					time.Sleep(50 * time.Millisecond)
					if err := watcher.Add(w.config.FilePath); err != nil {
						w.logger.Warn("failed to re-add watch",
							"op", event.Op.String(), "error", err)
					}
				}
				w.handleFileChange()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// handleFileChange debounces change events by resetting a timer on each one.
func (w *PanelSetsWatcher) handleFileChange() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(
		time.Duration(w.config.DebounceMillis)*time.Millisecond,
		w.reloadConfig,
	)
}

// reloadConfig reloads the panel sets file and calls the callback if valid.
// Invalid configs are logged but don't crash the watcher.
func (w *PanelSetsWatcher) reloadConfig() {
	newConfig, err := LoadPanelSetsFile(w.config.FilePath)
	if err != nil {
		w.logger.Warn("failed to reload panel sets, keeping previous config",
			"error", err)
		return
	}

	if err := w.callback(newConfig); err != nil {
		w.logger.Warn("panel sets reload callback failed", "error", err)
		return
	}

	w.logger.Info("reloaded panel sets", "path", w.config.FilePath)
}
