package memory_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/tsl/internal/adapters/memory"
	"go.trai.ch/tsl/internal/core/domain"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func entry(i int) domain.CacheEntry {
	fp := domain.NewFingerprint(domain.KindCheck, fmt.Sprintf("let v%d = %d;", i, i), domain.DefaultOptions())
	return domain.CacheEntry{
		Fingerprint: fp,
		Value:       domain.FrontendResult{Success: true},
		Size:        10,
	}
}

func TestStore_SetGet(t *testing.T) {
	s, err := memory.New(10, time.Hour, 0.8)
	require.NoError(t, err)

	e := entry(1)
	s.Set(e)

	got, ok := s.Get(e.Fingerprint)
	require.True(t, ok)
	assert.Equal(t, e.Value, got.Value)
	assert.False(t, got.CreatedAt.IsZero())

	_, ok = s.Get(entry(2).Fingerprint)
	assert.False(t, ok)
}

func TestStore_Replace(t *testing.T) {
	s, err := memory.New(10, time.Hour, 0.8)
	require.NoError(t, err)

	e := entry(1)
	s.Set(e)
	e.Size = 25
	s.Set(e)

	stats := s.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(25), stats.Bytes)
}

func TestStore_ThresholdEviction(t *testing.T) {
	s, err := memory.New(10, time.Hour, 0.8)
	require.NoError(t, err)

	for i := range 8 {
		s.Set(entry(i))
	}
	require.Equal(t, 8, s.Len())

	// Reaching the threshold triggers a batch eviction before the insert.
	s.Set(entry(100))
	assert.LessOrEqual(t, s.Len(), 8)

	_, ok := s.Get(entry(0).Fingerprint)
	assert.False(t, ok, "least recently used entry is evicted first")
	_, ok = s.Get(entry(100).Fingerprint)
	assert.True(t, ok)
}

func TestStore_NeverExceedsMax(t *testing.T) {
	s, err := memory.New(20, time.Hour, 0.8)
	require.NoError(t, err)

	for i := range 500 {
		s.Set(entry(i))
		require.LessOrEqual(t, s.Len(), 20)
		require.LessOrEqual(t, s.Len(), 16)
	}
	assert.Positive(t, s.Stats().Evictions)
}

func TestStore_BatchEviction(t *testing.T) {
	s, err := memory.New(1000, time.Hour, 0.8)
	require.NoError(t, err)

	for i := range 800 {
		s.Set(entry(i))
	}
	require.Equal(t, 800, s.Len())

	s.Set(entry(5000))

	// 20% of the tier is released at once.
	assert.Equal(t, 641, s.Len())
	assert.Equal(t, uint64(160), s.Stats().Evictions)
}

func TestStore_RecencyOrder(t *testing.T) {
	s, err := memory.New(5, time.Hour, 0.8)
	require.NoError(t, err)

	for i := range 4 {
		s.Set(entry(i))
	}
	// Touch the oldest so entry 1 becomes the eviction candidate.
	_, ok := s.Get(entry(0).Fingerprint)
	require.True(t, ok)

	s.Set(entry(10))

	_, ok = s.Get(entry(0).Fingerprint)
	assert.True(t, ok)
	_, ok = s.Get(entry(1).Fingerprint)
	assert.False(t, ok)
}

func TestStore_TTL(t *testing.T) {
	clock := newClock()
	s, err := memory.New(10, time.Minute, 0.8, memory.WithClock(clock.Now))
	require.NoError(t, err)

	e := entry(1)
	s.Set(e)

	clock.Advance(59 * time.Second)
	_, ok := s.Get(e.Fingerprint)
	require.True(t, ok)

	// Reads do not extend the lifetime.
	clock.Advance(time.Second)
	_, ok = s.Get(e.Fingerprint)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len(), "expired entry is purged on read")
}

func TestStore_CleanupPrefersExpired(t *testing.T) {
	clock := newClock()
	s, err := memory.New(5, time.Minute, 0.8, memory.WithClock(clock.Now))
	require.NoError(t, err)

	s.Set(entry(0))
	s.Set(entry(1))
	clock.Advance(2 * time.Minute)
	s.Set(entry(2))
	s.Set(entry(3))

	s.Set(entry(4))

	_, ok := s.Get(entry(2).Fingerprint)
	assert.True(t, ok)
	_, ok = s.Get(entry(3).Fingerprint)
	assert.True(t, ok)
	assert.Equal(t, 3, s.Len())
}

func TestStore_DeleteClear(t *testing.T) {
	s, err := memory.New(10, time.Hour, 0.8)
	require.NoError(t, err)

	s.Set(entry(1))
	s.Set(entry(2))
	s.Delete(entry(1).Fingerprint)

	_, ok := s.Get(entry(1).Fingerprint)
	assert.False(t, ok)
	assert.Equal(t, int64(10), s.Stats().Bytes)

	s.Clear()
	assert.Equal(t, domain.TierStats{MaxEntries: 10}, s.Stats())
}

func TestNew_Invalid(t *testing.T) {
	_, err := memory.New(0, time.Hour, 0.8)
	require.Error(t, err)
}
