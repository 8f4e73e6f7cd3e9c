package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/b/procrastabs/pkg/config"
)

// reloadDebounce folds the write/rename bursts editors produce into one load.
const reloadDebounce = 150 * time.Millisecond

// watchConfig calls onChange with the re-read config whenever the file at
// path is written or replaced. Unreadable configs are logged and skipped.
func watchConfig(ctx context.Context, path string, logger *slog.Logger, onChange func(*config.Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so atomic saves (write temp + rename) are seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pending = time.After(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		case <-pending:
			pending = nil
			cfg, err := config.LoadConfig(path)
			if err != nil {
				logger.Warn("config reload failed, keeping previous", "path", path, "error", err)
				continue
			}
			logger.Info("config reloaded", "path", path)
			onChange(cfg)
		}
	}
}
