package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ChangeType tags why a Change was emitted.
type ChangeType string

const (
	ChangeInitial  ChangeType = "initial_load"
	ChangeModified ChangeType = "file_modified"
)

// Change is one hot-reload event: a freshly parsed Document plus the
// checksum it superseded.
type Change struct {
	Document         *Document
	Type             ChangeType
	PreviousChecksum string
}

// HotReloader watches one YAML config file and emits a Change whenever its
// content's checksum differs from the last one seen (grounded on the
// teacher's internal/runtime.HotReloadSystem).
type HotReloader struct {
	path string

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	watching bool
}

// NewHotReloader constructs a watcher for path. The file need not exist
// yet at construction time.
func NewHotReloader(path string) (*HotReloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create file watcher: %w", err)
	}
	return &HotReloader{path: path, watcher: watcher}, nil
}

// Watch starts watching the config file's directory and returns a channel
// of Changes and a channel of errors, both closed when ctx is done or Stop
// is called. The first successful parse of the file (if it already
// exists) is emitted as a ChangeInitial before any filesystem events.
func (r *HotReloader) Watch(ctx context.Context) (<-chan Change, <-chan error) {
	changes := make(chan Change, 8)
	errs := make(chan error, 8)

	r.mu.Lock()
	if r.watching {
		r.mu.Unlock()
		close(changes)
		close(errs)
		return changes, errs
	}
	dir := filepath.Dir(r.path)
	if err := r.watcher.Add(dir); err != nil {
		r.mu.Unlock()
		errs <- fmt.Errorf("config: watch dir %s: %w", dir, err)
		close(changes)
		close(errs)
		return changes, errs
	}
	r.watching = true
	r.mu.Unlock()

	go r.loop(ctx, changes, errs)
	return changes, errs
}

func (r *HotReloader) loop(ctx context.Context, changes chan<- Change, errs chan<- error) {
	defer close(changes)
	defer close(errs)

	var lastChecksum string
	if doc, err := Load(r.path); err == nil {
		lastChecksum = doc.Checksum()
		changes <- Change{Document: doc, Type: ChangeInitial}
	}

	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Name != r.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			doc, err := Load(r.path)
			if err != nil {
				errs <- err
				continue
			}
			if doc.Checksum() == lastChecksum {
				continue
			}
			prev := lastChecksum
			lastChecksum = doc.Checksum()
			changes <- Change{Document: doc, Type: ChangeModified, PreviousChecksum: prev}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			errs <- err
		case <-ctx.Done():
			return
		}
	}
}

// Stop closes the underlying filesystem watcher.
func (r *HotReloader) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.watching {
		return nil
	}
	r.watching = false
	return r.watcher.Close()
}
