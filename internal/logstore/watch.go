package logstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/newhook/cilog/internal/logging"
)

// WatchConfig configures a Watcher.
type WatchConfig struct {
	Root string
	// DebounceDur is how long a file must go without writes before it is
	// imported.
	DebounceDur time.Duration
}

// DefaultWatchConfig returns a config for root with a 500ms debounce.
func DefaultWatchConfig(root string) WatchConfig {
	return WatchConfig{Root: root, DebounceDur: 500 * time.Millisecond}
}

// Watcher imports logs as they are saved under a directory tree laid out the
// way Import expects.
type Watcher struct {
	store *Store
	cfg   WatchConfig
	fsw   *fsnotify.Watcher

	// pending holds files that appeared in a new directory before it was
	// watched.
	pending []string
}

// NewWatcher starts watching cfg.Root and every directory below it. Files
// saved after it returns are picked up by Run.
func (s *Store) NewWatcher(cfg WatchConfig) (*Watcher, error) {
	if cfg.DebounceDur <= 0 {
		cfg.DebounceDur = DefaultWatchConfig(cfg.Root).DebounceDur
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{store: s, cfg: cfg, fsw: fsw}
	if err := w.addTree(cfg.Root); err != nil {
		fsw.Close()
		return nil, err
	}
	w.pending = nil
	return w, nil
}

// addTree watches dir and its subdirectories, queueing the logs already in
// them.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			return nil
		}
		if strings.HasSuffix(path, ".txt") {
			w.pending = append(w.pending, path)
		}
		return nil
	})
}

// Run imports each log once it has been quiet for the debounce duration and
// passes the stored job to handle. It returns when ctx is cancelled and
// closes the watcher.
func (w *Watcher) Run(ctx context.Context, handle func(*Job)) error {
	defer w.fsw.Close()

	done := make(chan struct{})
	defer close(done)

	ready := make(chan string)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()
	schedule := func(path string) {
		if t, ok := timers[path]; ok {
			t.Reset(w.cfg.DebounceDur)
			return
		}
		timers[path] = time.AfterFunc(w.cfg.DebounceDur, func() {
			select {
			case ready <- path:
			case <-done:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := w.addTree(event.Name); err != nil {
					logging.Warn("failed to watch new directory", "path", event.Name, "error", err)
				}
				for _, path := range w.pending {
					schedule(path)
				}
				w.pending = nil
				continue
			}
			if strings.HasSuffix(event.Name, ".txt") {
				schedule(event.Name)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warn("watch error", "root", w.cfg.Root, "error", err)

		case path := <-ready:
			delete(timers, path)
			job, err := w.store.ImportFile(ctx, w.cfg.Root, path)
			switch {
			case errors.Is(err, errNotLog):
				logging.Debug("skipping file", "path", path, "error", err)
			case errors.Is(err, fs.ErrNotExist):
				logging.Debug("file removed before import", "path", path)
			case err != nil:
				logging.Warn("failed to import log", "path", path, "error", err)
			default:
				logging.Info("imported log", "slug", job.Slug.String(), "path", path)
				handle(job)
			}
		}
	}
}

// Close stops watching. Run closes the watcher itself when it returns.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
