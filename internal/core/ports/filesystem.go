package ports

import "go.trai.ch/tsl/internal/core/domain"

// FileSystem is the filesystem collaborator of the orchestration and application layers.
//
//go:generate mockgen -source=filesystem.go -destination=mocks/mock_filesystem.go -package=mocks
type FileSystem interface {
	// Stat returns the change-detection status of path. ok is false when path does not exist.
	Stat(path string) (status domain.FileStatus, ok bool, err error)
	// ReadFile returns the contents of path.
	ReadFile(path string) ([]byte, error)
	// WriteFile writes data to path, creating parent directories.
	WriteFile(path string, data []byte) error
	// ListSources returns the files below root with one of the extensions,
	// skipping directories named in exclude. A file root is returned as is.
	ListSources(root string, extensions, exclude []string) ([]string, error)
}
