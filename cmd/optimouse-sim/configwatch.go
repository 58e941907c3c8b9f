package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchConfig reloads the config file whenever it is written and applies the
// settings that can change at runtime. Only logging.level is live; other
// changes are logged and take effect on restart.
//
// The directory is watched rather than the file so editors that save by
// rename keep working.
func watchConfig(ctx context.Context, path string, overrides FlagOverrides, level *slog.LevelVar, logger *slog.Logger) error {
	path = filepath.Clean(ExpandPath(path))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	logger.Debug("watching config", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			reloadConfig(path, overrides, level, logger)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}

func reloadConfig(path string, overrides FlagOverrides, level *slog.LevelVar, logger *slog.Logger) {
	cfg, err := LoadConfigFile(path)
	if err != nil {
		logger.Warn("config reload failed", "path", path, "error", err)
		return
	}
	overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		logger.Warn("reloaded config is invalid", "path", path, "error", err)
		return
	}

	lv, _ := parseLogLevel(cfg.Logging.Level) // validated above
	if old := level.Level(); old != lv.slogLevel() {
		level.Set(lv.slogLevel())
		logger.Info("log level changed", "level", cfg.Logging.Level)
	}
}
