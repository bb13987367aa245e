package config

import (
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/crewhub/crewhub/pkg/observability"
)

// Watch watches the config file for changes and applies the log level
// live whenever the file is rewritten. Only the log level is hot-reloaded;
// everything else requires a restart. Blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, logger *observability.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	logger.WithField("path", path).Info("watching config file for log level changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reloadLogLevel(path, logger)
			// Editors replace files on save, which drops the watch.
			if event.Op&fsnotify.Create != 0 {
				_ = watcher.Add(path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("config watcher error")
		}
	}
}

func reloadLogLevel(path string, logger *observability.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.WithError(err).Warn("failed to re-read config file")
		return
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		logger.WithError(err).Warn("failed to parse config file, keeping current log level")
		return
	}

	level := ParseLogLevel(cfg.Observability.LogLevelName)
	logger.SetLevel(level)
	logger.WithField("level", level.String()).Info("log level updated")
}
