// Package watcher reloads the map when it changes on disk.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/wayfinder/pkg/logging"
)

// ChangeType represents the type of file change detected
type ChangeType int

const (
	ChangeTypeMap ChangeType = iota
	ChangeTypeRoute
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypeMap:
		return "map"
	case ChangeTypeRoute:
		return "route"
	}
	return fmt.Sprintf("change(%d)", int(t))
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

const batchWindow = 100 * time.Millisecond

// FileWatcher watches the map and route files. Files are saved by renaming a
// temporary file over them, so the parent directories are watched and events
// are filtered by name.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	files   map[string]ChangeType
	events  chan ChangeEvent
}

// NewFileWatcher creates a watcher for the given files. An empty path is not
// watched.
func NewFileWatcher(mapPath, routePath string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher: watcher,
		files:   make(map[string]ChangeType),
		events:  make(chan ChangeEvent, 100),
	}
	for path, typ := range map[string]ChangeType{mapPath: ChangeTypeMap, routePath: ChangeTypeRoute} {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("resolve %s: %w", path, err)
		}
		fw.files[abs] = typ
	}
	return fw, nil
}

// Start begins watching for file changes
func (fw *FileWatcher) Start(ctx context.Context) error {
	dirs := make(map[string]bool)
	for path := range fw.files {
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	logging.Info("watching files", "count", len(fw.files), "directories", len(dirs))

	go fw.processEvents(ctx)
	return nil
}

// classify reports which watched file a raw event concerns.
func (fw *FileWatcher) classify(event fsnotify.Event) (ChangeType, bool) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return 0, false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return 0, false
	}
	typ, ok := fw.files[abs]
	return typ, ok
}

// processEvents batches raw events by type
func (fw *FileWatcher) processEvents(ctx context.Context) {
	pending := make(map[ChangeType][]string)

	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()
	errs := fw.watcher.Errors

	flush := func() {
		for _, typ := range []ChangeType{ChangeTypeMap, ChangeTypeRoute} {
			if paths := pending[typ]; len(paths) > 0 {
				fw.events <- ChangeEvent{Type: typ, Paths: paths, Timestamp: time.Now()}
			}
		}
		pending = make(map[ChangeType][]string)
	}

	for {
		select {
		case <-ctx.Done():
			fw.watcher.Close()
			close(fw.events)
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				close(fw.events)
				return
			}
			typ, ok := fw.classify(event)
			if !ok {
				continue
			}
			logging.Trace("file event", "path", event.Name, "op", event.Op.String(), "type", typ.String())
			pending[typ] = append(pending[typ], event.Name)
			flushTimer.Reset(batchWindow)

		case <-flushTimer.C:
			flush()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Watch wires a watcher and debouncer together and calls onChange for every
// debounced batch until ctx is done.
func Watch(ctx context.Context, mapPath, routePath string, quiet, maxWait time.Duration, onChange func(*ChangeAnalysis)) error {
	fw, err := NewFileWatcher(mapPath, routePath)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		fw.watcher.Close()
		return err
	}

	d := NewDebouncer(fw.Events(), quiet, maxWait)
	d.Start(ctx)

	go func() {
		for event := range d.Output() {
			logging.Debug("files changed", "type", event.Type.String(), "files", len(event.Paths))
			onChange(AnalyzeChanges(event))
		}
	}()
	return nil
}
