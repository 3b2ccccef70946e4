package dataset

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// WatcherConfig holds configuration for a file Watcher.
type WatcherConfig struct {
	Store     *Store
	Source    FileSource
	Transform Transform
	Logger    zerolog.Logger

	// Debounce collapses bursts of write events (default 500ms).
	Debounce time.Duration
}

// Watcher reloads a file-backed Store whenever the file is written or replaced.
type Watcher struct {
	store     *Store
	source    FileSource
	transform Transform
	logger    zerolog.Logger
	debounce  time.Duration
	watcher   *fsnotify.Watcher
	path      string
}

// NewWatcher starts watching the directory holding cfg.Source.Path.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	path, err := filepath.Abs(cfg.Source.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", cfg.Source.Path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory so atomic renames of the file are seen.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}

	return &Watcher{
		store:     cfg.Store,
		source:    cfg.Source,
		transform: cfg.Transform,
		logger:    cfg.Logger,
		debounce:  debounce,
		watcher:   fw,
		path:      path,
	}, nil
}

// Run processes file events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Str("dataset", w.store.Name()).Msg("file watcher error")
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	start := time.Now()
	ds, err := w.store.Refresh(ctx, w.source, w.transform)
	if err != nil {
		w.logger.Error().
			Err(err).
			Str("dataset", w.store.Name()).
			Str("path", w.path).
			Msg("dataset reload failed, keeping previous snapshot")
		return
	}

	w.logger.Info().
		Str("dataset", w.store.Name()).
		Int("rows", ds.Len()).
		Strs("parameters", ds.Parameters()).
		Dur("duration", time.Since(start)).
		Msg("dataset reloaded")
}
