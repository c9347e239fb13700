package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lorrc/team-kpi-backend/internal/adapters/secondary/changefeed"
	"github.com/lorrc/team-kpi-backend/internal/core/ports"
)

// DefaultWatchDebounce collapses the burst of writes one transaction makes.
const DefaultWatchDebounce = 100 * time.Millisecond

// FileWatcher is a change feed over the database file. SQLite cannot say which
// table a write touched, so every write notifies every subscribed table.
type FileWatcher struct {
	*changefeed.Registry

	path     string
	debounce time.Duration
	logger   *slog.Logger
}

var _ ports.ChangeFeed = (*FileWatcher)(nil)

func NewFileWatcher(path string, debounce time.Duration, logger *slog.Logger) *FileWatcher {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	return &FileWatcher{
		Registry: changefeed.NewRegistry(),
		path:     path,
		debounce: debounce,
		logger:   logger.With("component", "file_watcher"),
	}
}

// Run watches the database directory until ctx is cancelled. The directory is
// watched rather than the file so the WAL and journal files are seen too.
func (w *FileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}
	w.logger.Debug("watching database file", "path", w.path)

	base := filepath.Base(w.path)
	watched := map[string]bool{
		base:              true,
		base + "-wal":     true,
		base + "-journal": true,
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Base(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
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
			w.NotifyAll()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}
