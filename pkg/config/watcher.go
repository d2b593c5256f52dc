package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// Watch observes the given files (typically the .env file) and returns a
// channel that emits once per debounced change. Editors that save atomically
// replace the file, which surfaces as Create/Rename/Remove rather than Write;
// all of them count as modifications, and a removed path is re-added so the
// watch survives the swap. The goroutine exits when the context is cancelled.
func Watch(ctx context.Context, files ...string) <-chan struct{} {
	reloadCh := make(chan struct{}, 1) // buffer 1 so the sender never blocks

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("Failed to create fsnotify watcher", "error", err)
		return reloadCh
	}

	for _, file := range files {
		absPath, err := filepath.Abs(file)
		if err != nil {
			slog.Warn("Could not resolve watch path", "file", file)
			continue
		}
		if err := watcher.Add(absPath); err != nil {
			slog.Warn("Could not watch file", "file", file, "error", err)
		} else {
			slog.Debug("Watching configuration file", "file", absPath)
		}
	}

	go func() {
		defer watcher.Close()
		defer close(reloadCh)

		debounce := time.NewTimer(watchDebounce)
		if !debounce.Stop() {
			<-debounce.C
		}
		var changed string

		for {
			select {
			case <-ctx.Done():
				debounce.Stop()
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
					// Atomic save replaced the file; the old inode's watch
					// is dead, so re-add the path.
					if err := watcher.Add(event.Name); err != nil {
						slog.Warn("Could not re-watch replaced file", "file", event.Name, "error", err)
					}
				} else if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
					continue
				}
				changed = event.Name
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(watchDebounce)

			case <-debounce.C:
				slog.Info("Configuration change detected", "file", changed)
				select {
				case reloadCh <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Watcher encountered an error", "error", err)
			}
		}
	}()

	return reloadCh
}
