package domain

import (
	"time"

	"go.trai.ch/zerr"
)

// Default tuning values.
const (
	DefaultMemoryMaxEntries     = 1000
	DefaultMemoryTTL            = time.Hour
	DefaultCleanupThreshold     = 0.8
	DefaultPersistentMaxBytes   = 100 * 1024 * 1024
	DefaultPersistentTTL        = 24 * time.Hour
	DefaultFileStatusTTL        = 5 * time.Second
	DefaultFileRecords          = 500
	DefaultPoolSize             = 4
	DefaultTaskTimeout          = 30 * time.Second
	DefaultRetryAttempts        = 3
	DefaultMaxDependencies      = 1000
	PersistentEvictionWatermark = 0.8
)

// Config is the pipeline configuration.
type Config struct {
	Compiler     CompilerConfig   `yaml:"compiler"`
	Cache        CacheConfig      `yaml:"cache"`
	Workers      WorkersConfig    `yaml:"workers"`
	Dependencies DependencyConfig `yaml:"dependencies"`
}

// CompilerConfig holds the default compile options and the source selection rules.
type CompilerConfig struct {
	Target     string   `yaml:"target"`
	Strict     bool     `yaml:"strict"`
	NoEmit     bool     `yaml:"noEmit"`
	SourceMap  bool     `yaml:"sourceMap"`
	Extensions []string `yaml:"extensions"`
	Exclude    []string `yaml:"exclude"`
}

// CacheConfig configures both cache tiers and the file status cache.
type CacheConfig struct {
	Dir           string           `yaml:"dir"`
	Memory        MemoryConfig     `yaml:"memory"`
	Persistent    PersistentConfig `yaml:"persistent"`
	FileStatusTTL time.Duration    `yaml:"fileStatusTTL"`
	FileRecords   int              `yaml:"fileRecords"`
}

// MemoryConfig configures the memory tier.
type MemoryConfig struct {
	MaxEntries       int           `yaml:"maxEntries"`
	TTL              time.Duration `yaml:"ttl"`
	CleanupThreshold float64       `yaml:"cleanupThreshold"`
}

// PersistentConfig configures the persistent tier.
type PersistentConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxBytes    int64         `yaml:"maxBytes"`
	TTL         time.Duration `yaml:"ttl"`
	Compression bool          `yaml:"compression"`
}

// WorkersConfig configures the worker pool.
type WorkersConfig struct {
	Size          int           `yaml:"size"`
	TaskTimeout   time.Duration `yaml:"taskTimeout"`
	RetryAttempts int           `yaml:"retryAttempts"`
}

// DependencyConfig configures dependency tracking.
type DependencyConfig struct {
	Enabled         bool `yaml:"enabled"`
	MaxDependencies int  `yaml:"maxDependencies"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Compiler: CompilerConfig{
			Target:     string(DefaultTarget),
			Extensions: []string{".ts"},
			Exclude:    []string{"node_modules", "dist", CacheDirName},
		},
		Cache: CacheConfig{
			Dir: DefaultCachePath(),
			Memory: MemoryConfig{
				MaxEntries:       DefaultMemoryMaxEntries,
				TTL:              DefaultMemoryTTL,
				CleanupThreshold: DefaultCleanupThreshold,
			},
			Persistent: PersistentConfig{
				Enabled:     true,
				MaxBytes:    DefaultPersistentMaxBytes,
				TTL:         DefaultPersistentTTL,
				Compression: true,
			},
			FileStatusTTL: DefaultFileStatusTTL,
			FileRecords:   DefaultFileRecords,
		},
		Workers: WorkersConfig{
			Size:          DefaultPoolSize,
			TaskTimeout:   DefaultTaskTimeout,
			RetryAttempts: DefaultRetryAttempts,
		},
		Dependencies: DependencyConfig{
			Enabled:         true,
			MaxDependencies: DefaultMaxDependencies,
		},
	}
}

// Options returns the compile options configured as defaults.
func (c Config) Options() Options {
	return Options{
		Target:    ParseTarget(c.Compiler.Target),
		Strict:    c.Compiler.Strict,
		NoEmit:    c.Compiler.NoEmit,
		SourceMap: c.Compiler.SourceMap,
	}
}

// Validate rejects values no component can operate with.
func (c Config) Validate() error {
	switch {
	case c.Cache.Memory.MaxEntries < 1:
		return zerr.With(ErrConfigInvalid, "cache.memory.maxEntries", c.Cache.Memory.MaxEntries)
	case c.Cache.Memory.CleanupThreshold <= 0 || c.Cache.Memory.CleanupThreshold > 1:
		return zerr.With(ErrConfigInvalid, "cache.memory.cleanupThreshold", c.Cache.Memory.CleanupThreshold)
	case c.Cache.Persistent.Enabled && c.Cache.Persistent.MaxBytes < 1:
		return zerr.With(ErrConfigInvalid, "cache.persistent.maxBytes", c.Cache.Persistent.MaxBytes)
	case c.Cache.FileRecords < 1:
		return zerr.With(ErrConfigInvalid, "cache.fileRecords", c.Cache.FileRecords)
	case c.Workers.Size < 1:
		return zerr.With(ErrConfigInvalid, "workers.size", c.Workers.Size)
	case c.Workers.TaskTimeout <= 0:
		return zerr.With(ErrConfigInvalid, "workers.taskTimeout", c.Workers.TaskTimeout.String())
	case c.Workers.RetryAttempts < 0:
		return zerr.With(ErrConfigInvalid, "workers.retryAttempts", c.Workers.RetryAttempts)
	case len(c.Compiler.Extensions) == 0:
		return zerr.With(ErrConfigInvalid, "compiler.extensions", "empty")
	}
	return nil
}
