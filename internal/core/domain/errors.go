package domain

import "go.trai.ch/zerr"

var (
	// ErrTaskTimeout is returned when a task exhausts its retries without a worker response.
	ErrTaskTimeout = zerr.New("task timed out")

	// ErrWorkerCrashed is returned when the worker holding a task terminates abnormally.
	ErrWorkerCrashed = zerr.New("worker crashed")

	// ErrPoolShutdown is returned for tasks submitted to, or still pending in, a pool that is shutting down.
	ErrPoolShutdown = zerr.New("worker pool is shut down")

	// ErrPoolNotInitialized is returned when a task is submitted before the pool is initialized.
	ErrPoolNotInitialized = zerr.New("worker pool is not initialized")

	// ErrInvalidPoolSize is returned when the pool is configured with fewer than one worker.
	ErrInvalidPoolSize = zerr.New("worker pool size must be at least 1")

	// ErrStoreCreateFailed is returned when the persistent cache directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create cache directory")

	// ErrStoreReadFailed is returned when a persistent cache record cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read cache record")

	// ErrStoreWriteFailed is returned when a persistent cache record cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write cache record")

	// ErrStoreRemoveFailed is returned when a persistent cache record cannot be removed.
	ErrStoreRemoveFailed = zerr.New("failed to remove cache record")

	// ErrStoreLockFailed is returned when the persistent cache directory lock cannot be acquired.
	ErrStoreLockFailed = zerr.New("failed to lock cache directory")

	// ErrRecordCorrupt is returned when a persistent cache record cannot be decoded or fails its checksum.
	ErrRecordCorrupt = zerr.New("corrupt cache record")

	// ErrRecordMarshalFailed is returned when a cache entry cannot be encoded.
	ErrRecordMarshalFailed = zerr.New("failed to encode cache record")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigInvalid is returned when a configuration value is out of range.
	ErrConfigInvalid = zerr.New("invalid configuration")

	// ErrFileNotFound is returned when a source file does not exist.
	ErrFileNotFound = zerr.New("source file not found")

	// ErrFileReadFailed is returned when a source file cannot be read.
	ErrFileReadFailed = zerr.New("failed to read source file")

	// ErrFileWriteFailed is returned when a compiled output file cannot be written.
	ErrFileWriteFailed = zerr.New("failed to write output file")

	// ErrPathStatFailed is returned when stating a path fails.
	ErrPathStatFailed = zerr.New("failed to stat path")

	// ErrNoInputs is returned when a command is given no source files.
	ErrNoInputs = zerr.New("no source files found")

	// ErrDiagnosticsReported is returned when at least one unit failed and its diagnostics were rendered.
	ErrDiagnosticsReported = zerr.New("compilation reported errors")

	// ErrCacheCleanFailed is returned when the cache directory cannot be removed.
	ErrCacheCleanFailed = zerr.New("failed to clean cache directory")

	// ErrMetricsWriteFailed is returned when the metrics textfile cannot be written.
	ErrMetricsWriteFailed = zerr.New("failed to write metrics file")
)
