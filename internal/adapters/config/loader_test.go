package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/tsl/internal/adapters/config"
	"go.trai.ch/tsl/internal/adapters/logger"
	"go.trai.ch/tsl/internal/core/domain"
)

func noEnv(string) string { return "" }

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tsl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(domain.CacheDirEnv, "")
	l := config.NewLoader(logger.Discard()).WithEnv(noEnv)

	cfg, err := l.Load("")
	require.NoError(t, err)

	want := domain.DefaultConfig()
	want.Cache.Dir = domain.CacheDirName
	assert.Equal(t, want, cfg)
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
compiler:
  target: es5
  strict: true
cache:
  memory:
    maxEntries: 10
  persistent:
    ttl: 2h
workers:
  size: 8
  taskTimeout: 5s
`)
	l := config.NewLoader(logger.Discard()).WithEnv(noEnv)

	cfg, err := l.Load(path)
	require.NoError(t, err)

	assert.Equal(t, domain.TargetES5, cfg.Options().Target)
	assert.True(t, cfg.Compiler.Strict)
	assert.Equal(t, []string{".ts"}, cfg.Compiler.Extensions)
	assert.Equal(t, 10, cfg.Cache.Memory.MaxEntries)
	assert.Equal(t, domain.DefaultMemoryTTL, cfg.Cache.Memory.TTL)
	assert.Equal(t, 2*time.Hour, cfg.Cache.Persistent.TTL)
	assert.True(t, cfg.Cache.Persistent.Compression)
	assert.Equal(t, 8, cfg.Workers.Size)
	assert.Equal(t, 5*time.Second, cfg.Workers.TaskTimeout)
	assert.Equal(t, domain.DefaultRetryAttempts, cfg.Workers.RetryAttempts)
}

func TestLoad_CacheDirEnv(t *testing.T) {
	path := writeConfig(t, "cache:\n  dir: from-file\n")
	l := config.NewLoader(logger.Discard()).WithEnv(func(key string) string {
		if key == domain.CacheDirEnv {
			return "/tmp/override"
		}
		return ""
	})

	cfg, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override", cfg.Cache.Dir)
}

func TestLoad_EmptyFile(t *testing.T) {
	l := config.NewLoader(logger.Discard()).WithEnv(noEnv)

	cfg, err := l.Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPoolSize, cfg.Workers.Size)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "malformed yaml", content: "compiler: [", want: domain.ErrConfigParseFailed},
		{name: "unknown key", content: "compilr:\n  strict: true\n", want: domain.ErrConfigParseFailed},
		{name: "bad duration", content: "workers:\n  taskTimeout: soon\n", want: domain.ErrConfigParseFailed},
		{name: "zero workers", content: "workers:\n  size: 0\n", want: domain.ErrConfigInvalid},
		{name: "threshold above one", content: "cache:\n  memory:\n    cleanupThreshold: 1.5\n", want: domain.ErrConfigInvalid},
		{name: "negative bytes", content: "cache:\n  persistent:\n    maxBytes: -1\n", want: domain.ErrConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := config.NewLoader(logger.Discard()).WithEnv(noEnv)

			_, err := l.Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.want.Error())
		})
	}

	t.Run("missing file", func(t *testing.T) {
		l := config.NewLoader(logger.Discard()).WithEnv(noEnv)

		_, err := l.Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrConfigReadFailed.Error())
	})
}
