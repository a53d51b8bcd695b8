package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the state's configuration file and triggers a Reload each
// time the file is written. It runs until ctx is cancelled.
//
// If a reload fails the error is logged and the previous configuration
// remains live. When the reload touches restart-only parameters, onRestart
// (if non-nil) is called so the daemon can tell the operator.
func (s *State) Watch(ctx context.Context, onRestart func()) error {
	path := s.Live().ConfigurationPath

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Only reload on write or create events. Editors often write via
			// rename (atomic save), so also catch fsnotify.Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			restart, err := s.Reload()
			if err != nil {
				slog.Error("config: reload failed, keeping previous configuration",
					"path", path, "err", err)
			} else if restart && onRestart != nil {
				onRestart()
			}

			// Re-add the file in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
