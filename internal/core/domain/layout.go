package domain

import (
	"os"
	"path/filepath"
)

const (
	// CacheDirName is the name of the default cache directory.
	CacheDirName = ".tsl-cache"

	// ResultsDirName is the name of the persistent result store inside the cache directory.
	ResultsDirName = "results"

	// CacheDirEnv overrides the configured cache directory.
	CacheDirEnv = "TSL_CACHE_DIR"

	// RecordExt is the file extension of a persistent cache record.
	RecordExt = ".rec"

	// LockFileName is the name of the lock file guarding the result store.
	LockFileName = ".lock"

	// OutputExt is the extension of emitted code.
	OutputExt = ".js"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultCachePath returns the cache directory, honoring TSL_CACHE_DIR.
func DefaultCachePath() string {
	if dir := os.Getenv(CacheDirEnv); dir != "" {
		return dir
	}
	return CacheDirName
}

// ResultsPath returns the persistent result store directory below the given cache directory.
func ResultsPath(cacheDir string) string {
	return filepath.Join(cacheDir, ResultsDirName)
}
