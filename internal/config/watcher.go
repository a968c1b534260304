package config

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors an env file for changes and invokes onChange with a freshly
// loaded config after each change. It watches the parent directory (not the
// file) to handle atomic renames, and debounces bursts of events.
// Blocks until ctx is cancelled.
func Watch(ctx context.Context, envPath string, onChange func(*Config)) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("Failed to create env watcher: %v", err)
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(envPath)
	filename := filepath.Base(envPath)

	if err := watcher.Add(dir); err != nil {
		log.Printf("Failed to watch env directory %s: %v", dir, err)
		return
	}

	log.Printf("Watching env file: %s", envPath)

	const debounceDelay = 150 * time.Millisecond
	var debounceTimer *time.Timer
	var debounceMu sync.Mutex

	triggerReload := func() {
		debounceMu.Lock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(debounceDelay, func() {
			log.Printf("Env file changed, reloading config")

			cfg, err := Reload(envPath)
			if err != nil {
				log.Printf("Failed to reload env after change: %v (keeping current config)", err)
				return
			}
			onChange(cfg)
		})
		debounceMu.Unlock()
	}

	for {
		select {
		case <-ctx.Done():
			debounceMu.Lock()
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceMu.Unlock()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			// Atomic writes show up as rename/create depending on OS/editor
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				triggerReload()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Env watcher error: %v", err)
		}
	}
}
