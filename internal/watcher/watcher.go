// Package watcher observes reference images for replacement so a
// refreshed baseline takes effect on the next monitoring tick.
package watcher

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// ReferenceWatcher watches reference image files and invokes a callback
// when one is rewritten or replaced.
type ReferenceWatcher struct {
	fs       *fsnotify.Watcher
	log      logr.Logger
	onChange func(path string)

	mu     sync.Mutex
	closed bool
}

// New creates a watcher. onChange is called from the watcher's own
// goroutine with the path of the changed file.
func New(log logr.Logger, onChange func(path string)) (*ReferenceWatcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &ReferenceWatcher{
		fs:       fs,
		log:      log,
		onChange: onChange,
	}
	go w.loop()
	return w, nil
}

// Add starts watching a reference image path.
func (w *ReferenceWatcher) Add(path string) error {
	w.log.V(1).Info("watching reference image", "path", path)
	return w.fs.Add(path)
}

// Remove stops watching a reference image path. Removing an unwatched
// path is not an error worth surfacing.
func (w *ReferenceWatcher) Remove(path string) {
	if err := w.fs.Remove(path); err != nil {
		w.log.V(1).Info("failed to remove watch", "path", path, "error", err)
	}
}

// Close stops the watcher and its goroutine.
func (w *ReferenceWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.fs.Close()
}

func (w *ReferenceWatcher) loop() {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
				w.log.Info("reference image changed", "path", event.Name)
				if w.onChange != nil {
					w.onChange(event.Name)
				}
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Error(err, "reference watcher error")
		}
	}
}
