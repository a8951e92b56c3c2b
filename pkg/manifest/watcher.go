package manifest

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ReloadFunc is invoked after manifest changes settle.
type ReloadFunc func() error

// Watcher monitors a manifest directory and triggers a registry reload after
// changes settle. Rapid bursts of writes collapse into one reload.
type Watcher struct {
	watcher   *fsnotify.Watcher
	dir       string
	settle    time.Duration
	onReload  ReloadFunc
	logger    zerolog.Logger
	done      chan struct{}
	stopOnce  sync.Once
	timerMu   sync.Mutex
	settleTmr *time.Timer
}

// WatcherConfig holds watcher configuration.
type WatcherConfig struct {
	Dir      string
	Settle   time.Duration
	OnReload ReloadFunc
}

// NewWatcher creates a watcher for the given manifest directory.
func NewWatcher(cfg WatcherConfig, logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if cfg.Settle == 0 {
		cfg.Settle = 250 * time.Millisecond
	}
	return &Watcher{
		watcher:  fsw,
		dir:      cfg.Dir,
		settle:   cfg.Settle,
		onReload: cfg.OnReload,
		logger:   logger.With().Str("component", "manifest-watcher").Logger(),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. It returns immediately; events are handled on a
// background goroutine.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	go w.eventLoop()

	w.logger.Info().Str("dir", w.dir).Msg("Manifest watcher started")
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.timerMu.Lock()
	if w.settleTmr != nil {
		w.settleTmr.Stop()
	}
	w.timerMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.logger.Info().Msg("Manifest watcher stopped")
	return nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.shouldIgnore(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Manifest change detected")
	w.scheduleReload()
}

// scheduleReload arms (or re-arms) the settle timer.
func (w *Watcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.settleTmr != nil {
		w.settleTmr.Stop()
	}
	w.settleTmr = time.AfterFunc(w.settle, func() {
		select {
		case <-w.done:
			return
		default:
		}
		if err := w.onReload(); err != nil {
			w.logger.Error().Err(err).Msg("Manifest reload failed")
			return
		}
		w.logger.Info().Msg("Registry reloaded after manifest change")
	})
}

func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	return !strings.HasSuffix(base, ".json")
}
