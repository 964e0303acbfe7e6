package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Watch reloads path whenever it is written and calls fn with the new configuration. Files
// that fail to load are logged and skipped. Watch blocks until ctx is done.
//
// The directory is watched rather than the file, so editors that save by renaming a
// temporary file are seen too.
func Watch(ctx context.Context, path string, log *slog.Logger, fn func(*Config)) error {
	if log == nil {
		log = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "config: watch")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "config: watch")
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return errors.Wrap(err, "config: watch")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			c, err := Load(abs)
			if err != nil {
				log.Warn("config reload failed", "path", abs, "err", err)
				continue
			}
			log.Info("config reloaded", "path", abs)
			fn(c)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watch", "err", err)
		}
	}
}
