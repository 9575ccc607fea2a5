package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-draw/logger"
	"github.com/fsnotify/fsnotify"
)

// Watch reloads path whenever it is written and passes each configuration that loads and
// validates to onChange. A file that fails to load is logged and skipped, so the previous
// configuration stays in effect. The parent directory is watched so editors that replace
// the file on save are still seen.
//
// Watch returns once the watcher is running. It stops when ctx is cancelled.
//
// Parameters:
//   - ctx: stops the watcher when cancelled
//   - path: the configuration file
//   - onChange: called from the watcher goroutine with every reloaded configuration
//
// Returns:
//   - error: the fsnotify setup error
func Watch(ctx context.Context, path string, onChange func(Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config: %w", err)
	}

	log := logger.Component("config")
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(abs)
				if err != nil {
					log.Warn("config reload failed", "path", abs, "error", err)
					continue
				}
				log.Info("config reloaded", "path", abs)
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher error", "error", err)
			}
		}
	}()
	return nil
}
