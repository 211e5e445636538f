// Package watch re-runs a callback when a file changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/satishbabariya/prisma-engine-go/internal/debug"
)

// DefaultDelay is how long a burst of writes is coalesced for.
const DefaultDelay = 500 * time.Millisecond

// Watcher watches a single file. The directory is watched rather than the
// file so editors that replace the file on save are still seen.
type Watcher struct {
	file    string
	delay   time.Duration
	watcher *fsnotify.Watcher
}

// New creates a watcher for file.
func New(file string, delay time.Duration) (*Watcher, error) {
	absPath, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Watcher{file: absPath, delay: delay, watcher: watcher}, nil
}

// Run calls fn once, then again after every debounced change, until ctx is
// done. Errors from fn after the first call are logged, not returned.
func (w *Watcher) Run(ctx context.Context, fn func() error) error {
	if err := fn(); err != nil {
		return err
	}

	timer := time.NewTimer(w.delay)
	timer.Stop()
	var pending <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if path, err := filepath.Abs(event.Name); err == nil && path == w.file {
				timer.Reset(w.delay)
				pending = timer.C
			}

		case <-pending:
			pending = nil
			if err := fn(); err != nil {
				debug.Error("watch callback failed", "file", w.file, "error", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			debug.Warn("watch error", "file", w.file, "error", err)

		case <-ctx.Done():
			return nil
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
