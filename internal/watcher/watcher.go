// Package watcher blocks until something changes under a set of directory
// trees.
package watcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/devloop/internal/logging"
	"github.com/conneroisu/devloop/internal/monitoring"
)

// ErrWatcherClosed is returned when fsnotify stops delivering events.
var ErrWatcherClosed = stderrors.New("watcher: event stream closed")

// ChangeEvent describes the change that ended a wait.
type ChangeEvent struct {
	Type EventType
	Path string
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
	EventTypeChmod
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	case EventTypeChmod:
		return "chmod"
	default:
		return "unknown"
	}
}

// FileWatcher arms a fresh fsnotify watcher for every wait. It serves one
// wait at a time.
type FileWatcher struct {
	logger  logging.Logger
	metrics *monitoring.Metrics
	last    ChangeEvent
}

// Option configures a FileWatcher.
type Option func(*FileWatcher)

// WithLogger sets the watcher logger.
func WithLogger(logger logging.Logger) Option {
	return func(fw *FileWatcher) { fw.logger = logger }
}

// WithMetrics counts triggers in Prometheus.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(fw *FileWatcher) { fw.metrics = m }
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(opts ...Option) *FileWatcher {
	fw := &FileWatcher{logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(fw)
	}
	fw.logger = fw.logger.WithComponent("watcher")
	return fw
}

// WaitForChange watches every directory under roots and returns on the first
// event. A burst of events yields a single return; nothing is re-armed.
// Cancelling ctx returns ctx.Err(). The underlying watcher is always closed
// before returning.
func (fw *FileWatcher) WaitForChange(ctx context.Context, roots ...string) error {
	if len(roots) == 0 {
		return fmt.Errorf("watcher: no roots given")
	}
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("watcher: root %s not found: %w", root, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("watcher: root %s is not a directory", root)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer w.Close()

	dirs := 0
	for _, root := range roots {
		n, err := addRecursive(w, root)
		if err != nil {
			return fmt.Errorf("watcher: watch %s: %w", root, err)
		}
		dirs += n
	}
	fw.logger.Debug(ctx, "Watching for changes", "roots", roots, "directories", dirs)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.Events:
			if !ok {
				return ErrWatcherClosed
			}
			fw.last = ChangeEvent{Type: eventType(event.Op), Path: event.Name}
			fw.metrics.WatchTriggered()
			fw.logger.Info(ctx, "Change detected", "path", event.Name, "op", fw.last.Type.String())
			return nil

		case err, ok := <-w.Errors:
			if !ok {
				return ErrWatcherClosed
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

// LastChange returns the event that ended the most recent wait.
func (fw *FileWatcher) LastChange() ChangeEvent {
	return fw.last
}

// addRecursive adds root and every directory below it, returning the count.
func addRecursive(w *fsnotify.Watcher, root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// directories removed mid-walk are skipped
			if path != root && stderrors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(path); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

func eventType(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventTypeCreated
	case op.Has(fsnotify.Write):
		return EventTypeModified
	case op.Has(fsnotify.Remove):
		return EventTypeDeleted
	case op.Has(fsnotify.Rename):
		return EventTypeRenamed
	case op.Has(fsnotify.Chmod):
		return EventTypeChmod
	default:
		return EventTypeModified
	}
}
