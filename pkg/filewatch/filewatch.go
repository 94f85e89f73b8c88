// Package filewatch reports changes to a single file using fsnotify.
package filewatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long Watch waits after the last event before calling
// onChange. Truncating writes and atomic saves emit several events per save.
const DefaultSettle = 50 * time.Millisecond

// Watch calls onChange once per burst of write or create events on path,
// after settle has passed without a further event. It runs until ctx is
// cancelled and returns an error only if the watch cannot be established.
func Watch(ctx context.Context, path string, settle time.Duration, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}
	slog.Debug("filewatch: watching", "path", path)

	if settle <= 0 {
		settle = DefaultSettle
	}
	timer := time.NewTimer(settle)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often save via rename, so Create counts as a write.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Re-add the file in case an atomic save replaced the inode.
			_ = watcher.Add(path)
			timer.Reset(settle)

		case <-timer.C:
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("filewatch: watcher error", "path", path, "err", err)
		}
	}
}
