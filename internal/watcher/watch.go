// Package watcher re-runs a callback when a single file changes on disk.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

const DefaultDebounce = 250 * time.Millisecond

// Watch calls onChange after path is written, created or replaced, once
// events have been quiet for debounce. It blocks until ctx is done.
// The parent directory is watched so editors and log rotators that replace
// the file by rename are still seen. Callback errors are logged, not returned.
func Watch(ctx context.Context, path string, debounce time.Duration, onChange func(context.Context) error) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "resolve watch path")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer w.Close()

	dir := filepath.Dir(target)
	if err := w.Add(dir); err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}
	slog.Info("chatconv: watching input", "path", target)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !sameFile(ev.Name, target) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)
		case <-timer.C:
			if err := onChange(ctx); err != nil {
				slog.Error("chatconv: rerun failed", "path", target, "err", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Error("chatconv: watch error", "err", err)
		}
	}
}

func sameFile(name, target string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	return abs == target
}
