// Package watcher reloads downstream state when a snapshot file on disk
// changes. Changes are debounced so a writer mid-flight triggers one reload.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	defaultDebounce     = 500 * time.Millisecond
	defaultPollInterval = 250 * time.Millisecond
)

// ReloadFunc rebuilds whatever depends on the watched file. It runs on the
// watcher goroutine once the debounce window closes.
type ReloadFunc func(ctx context.Context) error

// Config configures a snapshot watcher.
type Config struct {
	Path         string        // file to watch
	Debounce     time.Duration // quiet period after the last change before reloading
	PollInterval time.Duration // backup poll in case file events are missed
	Reload       ReloadFunc
	Logger       *slog.Logger
}

// Watcher monitors one file and triggers a reload after it changes.
type Watcher struct {
	path         string
	debounce     time.Duration
	pollInterval time.Duration
	reload       ReloadFunc
	logger       *slog.Logger
	stopChan     chan struct{}
	stopOnce     sync.Once
}

// New creates a watcher for cfg.Path. Zero durations fall back to defaults.
func New(cfg Config) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("watch path is required")
	}
	if cfg.Reload == nil {
		return nil, fmt.Errorf("reload function is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:         filepath.Clean(cfg.Path),
		debounce:     cfg.Debounce,
		pollInterval: cfg.PollInterval,
		reload:       cfg.Reload,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}, nil
}

// Start blocks watching the file until Stop is called or ctx is canceled.
// The parent directory is watched rather than the file itself so writers
// that replace the file by rename are still seen.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	var lastMod time.Time
	if info, err := os.Stat(w.path); err == nil {
		lastMod = info.ModTime()
	}

	// The ticker doubles as the debounce clock and as a backup in case
	// file events are missed.
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	var pendingSince time.Time
	pending := false

	w.logger.Info("Watching snapshot for changes", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopChan:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("Snapshot change detected", "op", event.Op.String())
			pending = true
			pendingSince = time.Now()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", "error", err)
		case <-ticker.C:
			if !pending {
				if info, err := os.Stat(w.path); err == nil && info.ModTime().After(lastMod) {
					pending = true
					pendingSince = time.Now()
				}
			}
			if pending && time.Since(pendingSince) >= w.debounce {
				pending = false
				if info, err := os.Stat(w.path); err == nil {
					lastMod = info.ModTime()
				}
				w.runReload(ctx)
			}
		}
	}
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}

func (w *Watcher) runReload(ctx context.Context) {
	w.logger.Info("Snapshot changed, reloading", "path", w.path)
	start := time.Now()
	if err := w.reload(ctx); err != nil {
		w.logger.Warn("Reload failed, previous state stays active", "error", err)
		return
	}
	w.logger.Info("Reload complete", "elapsed", time.Since(start))
}
