package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchLogLevel re-reads the configuration file whenever it changes and applies
// the new log.level to level. It blocks until ctx is done.
// Without a configuration file it returns immediately.
func (l *Loader) WatchLogLevel(ctx context.Context, level *slog.LevelVar, logger *slog.Logger) error {
	path := l.v.ConfigFileUsed()
	if path == "" {
		return nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	// editors replace files on save, so watch the directory rather than the file
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	logger.Debug("Watching configuration file", slog.String("file", absPath))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}

			if err := l.v.ReadInConfig(); err != nil {
				logger.Error("Failed to reload configuration", slog.String("error", err.Error()))
				continue
			}

			var logCfg Log
			if err := l.v.UnmarshalKey("log", &logCfg); err != nil {
				logger.Error("Failed to decode log configuration", slog.String("error", err.Error()))
				continue
			}
			if err := validateStruct(&logCfg); err != nil {
				logger.Error("Ignoring invalid log configuration", slog.String("error", err.Error()))
				continue
			}

			if newLevel := logCfg.SlogLevel(); newLevel != level.Level() {
				level.Set(newLevel)
				logger.Info("Log level changed", slog.String("level", newLevel.String()))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("Config watcher error", slog.String("error", err.Error()))
		}
	}
}
