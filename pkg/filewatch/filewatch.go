// Package filewatch calls back when a single file changes on disk.
//
// The parent directory is watched rather than the file itself, so editors
// that save by writing a temp file and renaming it over the original keep
// being tracked. Bursts of events (truncate then write, rename then create)
// are collapsed into one callback after a short quiet period.
package filewatch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Watch is given zero.
const DefaultDebounce = 100 * time.Millisecond

// Watch calls onChange after path is written or re-created, once per burst
// of events. onChange runs on the watching goroutine. Watch blocks until ctx
// is cancelled.
func Watch(ctx context.Context, path string, debounce time.Duration, onChange func()) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	target := filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("filewatch: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("filewatch: watch %s: %w", filepath.Dir(target), err)
	}

	fire := make(chan struct{}, 1)
	timer := time.AfterFunc(time.Hour, func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	})
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(debounce)

		case <-fire:
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("filewatch: watcher error", "path", target, "err", err)
		}
	}
}
