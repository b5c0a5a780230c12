package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/tsl/internal/adapters/cas"
	"go.trai.ch/tsl/internal/adapters/logger"
	"go.trai.ch/tsl/internal/adapters/memory"
	"go.trai.ch/tsl/internal/core/domain"
	"go.trai.ch/tsl/internal/engine/cache"
)

type recorder struct {
	hits   map[string]int
	misses int
}

func (r *recorder) CacheHit(tier string) { r.hits[tier]++ }
func (r *recorder) CacheMiss() { r.misses++ }
func (r *recorder) CacheEvicted(string, int) {}
func (r *recorder) FrontendInvoked(domain.TaskKind) {}
func (r *recorder) TaskFinished(domain.TaskKind, string) {}
func (r *recorder) TaskRetried(domain.TaskKind) {}
func (r *recorder) WorkerRestarted() {}
func newRecorder() *recorder { return &recorder{hits: map[string]int{}} }

var result = domain.FrontendResult{
	Success:     true,
	Diagnostics: []domain.Diagnostic{},
	Code:        "var x = 1;",
	Emitted:     true,
}

func fp(source string) domain.Fingerprint {
	return domain.NewFingerprint(domain.KindCompile, source, domain.DefaultOptions())
}

func newMemory(t *testing.T) *memory.Store {
	t.Helper()
	m, err := memory.New(100, time.Hour, 0.8)
	require.NoError(t, err)
	return m
}

func newPersistent(t *testing.T, dir string) *cas.Store {
	t.Helper()
	cfg := domain.DefaultConfig().Cache.Persistent
	s := cas.New(dir, cfg, logger.Discard())
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTier_MemoryOnly(t *testing.T) {
	rec := newRecorder()
	c := cache.New(newMemory(t), cache.WithMetrics(rec))

	_, ok := c.Get(fp("let x = 1;"))
	assert.False(t, ok)

	c.Set(fp("let x = 1;"), result)
	got, ok := c.Get(fp("let x = 1;"))
	require.True(t, ok)
	assert.Equal(t, result, got)

	stats := c.Stats()
	assert.False(t, stats.PersistentEnabled)
	assert.Equal(t, uint64(1), stats.MemoryHits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Memory.Entries)
	assert.Positive(t, stats.Memory.Bytes)
	assert.Equal(t, 1, rec.hits["memory"])
	assert.Equal(t, 1, rec.misses)
}

func TestTier_PromotesPersistentHit(t *testing.T) {
	dir := t.TempDir()
	key := fp("let y = 2;")

	first := cache.New(newMemory(t), cache.WithPersistent(newPersistent(t, dir)))
	first.Set(key, result)

	// A fresh memory tier over the same directory models a restart.
	mem := newMemory(t)
	second := cache.New(mem, cache.WithPersistent(newPersistent(t, dir)))

	got, ok := second.Get(key)
	require.True(t, ok)
	assert.Equal(t, result, got)
	assert.Equal(t, uint64(1), second.Stats().PersistentHits)

	_, ok = mem.Get(key)
	assert.True(t, ok, "persistent hit is promoted into memory")

	_, ok = second.Get(key)
	require.True(t, ok)
	assert.Equal(t, uint64(1), second.Stats().MemoryHits)
}

func TestTier_DeleteClear(t *testing.T) {
	c := cache.New(newMemory(t), cache.WithPersistent(newPersistent(t, t.TempDir())))

	c.Set(fp("a"), result)
	c.Set(fp("b"), result)

	c.Delete(fp("a"))
	_, ok := c.Get(fp("a"))
	assert.False(t, ok)
	_, ok = c.Get(fp("b"))
	assert.True(t, ok)

	c.Clear()
	_, ok = c.Get(fp("b"))
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, 0, stats.Memory.Entries)
	assert.Equal(t, 0, stats.Persistent.Entries)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestTier_SetThenGetObservesWrite(t *testing.T) {
	c := cache.New(newMemory(t))

	done := make(chan struct{})
	for i := range 8 {
		go func() {
			defer func() { done <- struct{}{} }()
			key := fp(string(rune('a' + i)))
			c.Set(key, result)
			_, ok := c.Get(key)
			assert.True(t, ok)
		}()
	}
	for range 8 {
		<-done
	}
	assert.Equal(t, 8, c.Stats().Memory.Entries)
}
