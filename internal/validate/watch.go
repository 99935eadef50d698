package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchDirty watches root for filesystem changes and invokes onChange,
// debounced, for as long as ctx stays alive. Modeled on the teacher's
// MangleWatcher (internal/core/mangle_watcher.go), narrowed to a single
// directory watch with no rule-repair step: decapod only needs to know
// that the worktree changed, not what changed.
//
// The event loop runs on the caller's own goroutine rather than a spawned
// one, so `workspace ensure --watch` blocks in the foreground exactly like
// any other gate run. No background goroutine outlives the call: this is
// enrichment a command opts into, not a daemon.
func WatchDirty(ctx context.Context, root string, debounce time.Duration, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("validate: watch: new watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(root); err != nil {
		return fmt.Errorf("validate: watch %s: %w", root, err)
	}

	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	var pending bool

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !pending {
				pending = true
				timer.Reset(debounce)
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("validate: watch error: %w", werr)
		case <-timer.C:
			if pending {
				pending = false
				onChange()
			}
		}
	}
}
