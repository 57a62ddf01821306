package repoindex

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sfg-os/starpack/internal/output"
)

// debounceWindow batches bursts of filesystem events (a copy into the
// repository directory fires many writes) into one reindex.
const debounceWindow = 2 * time.Second

// Watch reindexes dir whenever a package archive appears, changes, or
// disappears. Archive removal forces a full rebuild since AddMissing
// never drops records. Blocks until ctx is cancelled.
func Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	if err := AddMissing(dir); err != nil {
		output.Warn("initial index of %s failed: %v", dir, err)
	}
	output.Info("watching %s for package changes", dir)

	var timer *time.Timer
	var timerC <-chan time.Time
	rebuild := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".starpack") {
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				rebuild = true
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			} else {
				timer.Reset(debounceWindow)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			output.Warn("filesystem watch error: %v", err)

		case <-timerC:
			timer = nil
			timerC = nil

			var err error
			if rebuild {
				err = Build(dir)
			} else {
				err = AddMissing(dir)
			}
			if err != nil {
				output.Warn("reindex of %s failed: %v", dir, err)
			}
			rebuild = false
		}
	}
}
