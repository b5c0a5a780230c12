// Package fs provides the operating system backed file system adapter.
package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"

	"go.trai.ch/tsl/internal/core/domain"
	"go.trai.ch/tsl/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.FileSystem = (*FileSystem)(nil)

// FileSystem reads and writes the local file system.
type FileSystem struct{}

// New creates a FileSystem.
func New() *FileSystem {
	return &FileSystem{}
}

// Stat returns the modification time and size of path.
func (f *FileSystem) Stat(path string) (domain.FileStatus, bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, iofs.ErrNotExist) {
		return domain.FileStatus{}, false, nil
	}
	if err != nil {
		return domain.FileStatus{}, false, err
	}
	if info.IsDir() {
		return domain.FileStatus{}, false, nil
	}
	return domain.FileStatus{ModTime: info.ModTime(), Size: info.Size()}, true, nil
}

// ReadFile returns the contents of path.
func (f *FileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path) //nolint:gosec // Path is chosen by the user
}

// WriteFile writes data to path, creating missing parent directories.
func (f *FileSystem) WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrFileWriteFailed.Error()), "path", path)
	}
	if err := os.WriteFile(path, data, domain.FilePerm); err != nil { //nolint:gosec // Output is world readable like any build artifact
		return zerr.With(zerr.Wrap(err, domain.ErrFileWriteFailed.Error()), "path", path)
	}
	return nil
}

// ListSources walks root and returns the sorted files carrying one of the
// extensions. Directories matching an exclude pattern are skipped, as are
// version control directories.
func (f *FileSystem) ListSources(root string, extensions, exclude []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, zerr.With(domain.ErrFileNotFound, "path", root)
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", root)
	}
	if !info.IsDir() {
		return []string{filepath.Clean(root)}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skipDir(d.Name(), exclude) {
				return filepath.SkipDir
			}
			return nil
		}
		if slices.Contains(extensions, filepath.Ext(path)) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrFileReadFailed.Error()), "path", root)
	}

	slices.Sort(files)
	return files, nil
}

func skipDir(name string, exclude []string) bool {
	if name == ".git" || name == ".jj" {
		return true
	}
	for _, pattern := range exclude {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}
