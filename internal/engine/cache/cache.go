// Package cache composes the memory and persistent tiers into a single result cache.
package cache

import (
	"encoding/json"
	"sync"
	"time"

	"go.trai.ch/tsl/internal/core/domain"
	"go.trai.ch/tsl/internal/core/ports"
)

var _ ports.ResultCache = (*Tier)(nil)

// Tier looks up the memory tier first and the persistent tier second,
// promoting persistent hits into memory. The persistent tier is optional.
type Tier struct {
	mu         sync.Mutex
	memory     ports.EntryStore
	persistent ports.EntryStore
	metrics    ports.Metrics
	now        func() time.Time

	memoryHits     uint64
	persistentHits uint64
	misses         uint64
}

// Option configures a Tier.
type Option func(*Tier)

// WithPersistent adds a persistent tier below memory.
func WithPersistent(store ports.EntryStore) Option {
	return func(t *Tier) {
		t.persistent = store
	}
}

// WithMetrics reports hits and misses to m.
func WithMetrics(m ports.Metrics) Option {
	return func(t *Tier) {
		t.metrics = m
	}
}

// WithClock replaces the wall clock used to stamp new entries.
func WithClock(now func() time.Time) Option {
	return func(t *Tier) {
		t.now = now
	}
}

// New creates a Tier over memory.
func New(memory ports.EntryStore, opts ...Option) *Tier {
	t := &Tier{
		memory: memory,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Get returns the result cached under fp.
func (t *Tier) Get(fp domain.Fingerprint) (domain.FrontendResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.memory.Get(fp); ok {
		t.memoryHits++
		t.hit(ports.TierMemory)
		return e.Value, true
	}

	if t.persistent != nil {
		if e, ok := t.persistent.Get(fp); ok {
			t.persistentHits++
			t.hit(ports.TierPersistent)
			// The memory TTL runs from promotion, not from the original write.
			e.CreatedAt = time.Time{}
			t.memory.Set(e)
			return e.Value, true
		}
	}

	t.misses++
	if t.metrics != nil {
		t.metrics.CacheMiss()
	}
	return domain.FrontendResult{}, false
}

func (t *Tier) hit(tier string) {
	if t.metrics != nil {
		t.metrics.CacheHit(tier)
	}
}

// Set stores value under fp in every tier.
func (t *Tier) Set(fp domain.Fingerprint, value domain.FrontendResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := domain.CacheEntry{
		Fingerprint: fp,
		Value:       value,
		CreatedAt:   t.now(),
		Size:        size(value),
	}
	t.memory.Set(e)
	if t.persistent != nil {
		t.persistent.Set(e)
	}
}

// Delete removes fp from every tier.
func (t *Tier) Delete(fp domain.Fingerprint) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.memory.Delete(fp)
	if t.persistent != nil {
		t.persistent.Delete(fp)
	}
}

// Clear empties every tier and resets the counters.
func (t *Tier) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.memory.Clear()
	if t.persistent != nil {
		t.persistent.Clear()
	}
	t.memoryHits, t.persistentHits, t.misses = 0, 0, 0
}

// Stats aggregates the tier statistics and lookup counters.
func (t *Tier) Stats() domain.CacheStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := domain.CacheStats{
		Memory:         t.memory.Stats(),
		MemoryHits:     t.memoryHits,
		PersistentHits: t.persistentHits,
		Misses:         t.misses,
	}
	if t.persistent != nil {
		stats.Persistent = t.persistent.Stats()
		stats.PersistentEnabled = true
	}
	return stats
}

// size approximates the memory footprint of value by its encoded length.
func size(value domain.FrontendResult) int64 {
	b, err := json.Marshal(value)
	if err != nil {
		return 0
	}
	return int64(len(b))
}
