package ports

import (
	"context"
	"iter"
)

// WatchOp represents the type of file system operation.
type WatchOp uint8

const (
	// OpCreate indicates a file or directory was created.
	OpCreate WatchOp = iota
	// OpWrite indicates a file was modified.
	OpWrite
	// OpRemove indicates a file or directory was removed.
	OpRemove
	// OpRename indicates a file or directory was renamed.
	OpRename
)

// WatchEvent represents a file system event from the watcher.
type WatchEvent struct {
	Path      string
	Operation WatchOp
}

// Watcher delivers file system changes below a root directory.
type Watcher interface {
	// Start begins watching root recursively.
	Start(ctx context.Context, root string) error
	// Stop releases all resources and ends Events.
	Stop() error
	// Events yields events until the watcher stops.
	Events() iter.Seq[WatchEvent]
}

// WatcherFactory creates a Watcher ignoring directories named in exclude.
type WatcherFactory func(exclude []string) (Watcher, error)
