// Package memory implements the bounded in-memory cache tier.
package memory

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.trai.ch/tsl/internal/core/domain"
	"go.trai.ch/tsl/internal/core/ports"
)

var _ ports.EntryStore = (*Store)(nil)

// Store is a recency ordered map from fingerprint to entry. Occupancy never
// exceeds maxEntries; once it reaches the cleanup threshold, the next insert
// evicts a batch of least recently used entries first.
type Store struct {
	mu        sync.Mutex
	lru       *simplelru.LRU[domain.Fingerprint, domain.CacheEntry]
	max       int
	limit     int
	threshold float64
	ttl       time.Duration
	bytes     int64
	evictions uint64
	now       func() time.Time
	metrics   ports.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock used for TTL and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithMetrics reports evictions to m.
func WithMetrics(m ports.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New creates a Store holding at most maxEntries entries that expire ttl after
// creation. threshold in (0, 1] sets the batch eviction point.
func New(maxEntries int, ttl time.Duration, threshold float64, opts ...Option) (*Store, error) {
	if maxEntries < 1 {
		return nil, domain.ErrConfigInvalid
	}
	s := &Store{
		max:       maxEntries,
		limit:     max(1, int(float64(maxEntries)*threshold)),
		threshold: threshold,
		ttl:       ttl,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	lru, err := simplelru.NewLRU[domain.Fingerprint, domain.CacheEntry](maxEntries, s.onEvict)
	if err != nil {
		return nil, err
	}
	s.lru = lru
	return s, nil
}

// onEvict keeps the byte total in step with every removal path of the LRU.
func (s *Store) onEvict(_ domain.Fingerprint, e domain.CacheEntry) {
	s.bytes -= e.Size
}

// Get returns the entry for fp if present and fresh, marking it most recently used.
func (s *Store) Get(fp domain.Fingerprint) (domain.CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lru.Peek(fp)
	if !ok {
		return domain.CacheEntry{}, false
	}
	now := s.now()
	if e.Expired(now, s.ttl) {
		s.lru.Remove(fp)
		return domain.CacheEntry{}, false
	}

	e.LastAccessedAt = now
	// Add on an existing key moves it to the front without triggering eviction.
	s.lru.Add(fp, e)
	return e, true
}

// Set inserts or replaces the entry for e.Fingerprint.
func (s *Store) Set(e domain.CacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.LastAccessedAt = now

	if old, ok := s.lru.Peek(e.Fingerprint); ok {
		s.bytes -= old.Size
	} else if s.lru.Len() >= s.limit {
		s.cleanup(now)
	}

	s.bytes += e.Size
	s.lru.Add(e.Fingerprint, e)
}

// cleanup drops expired entries, then a batch of least recently used entries:
// the (1 - threshold) share of the tier, and at least enough that the insert
// that follows leaves occupancy at the threshold.
func (s *Store) cleanup(now time.Time) {
	removed := 0
	for _, fp := range s.lru.Keys() {
		if e, ok := s.lru.Peek(fp); ok && e.Expired(now, s.ttl) {
			s.lru.Remove(fp)
			removed++
		}
	}

	if n := s.lru.Len(); n >= s.limit {
		batch := max(n-s.limit+1, n-int(float64(n)*s.threshold))
		for range batch {
			if _, _, ok := s.lru.RemoveOldest(); !ok {
				break
			}
			removed++
		}
	}

	if removed > 0 {
		s.evictions += uint64(removed)
		if s.metrics != nil {
			s.metrics.CacheEvicted(ports.TierMemory, removed)
		}
	}
}

// Delete removes the entry for fp.
func (s *Store) Delete(fp domain.Fingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Remove(fp)
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Purge()
	s.bytes = 0
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// Stats returns the tier occupancy.
func (s *Store) Stats() domain.TierStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.TierStats{
		Entries:    s.lru.Len(),
		MaxEntries: s.max,
		Bytes:      s.bytes,
		Evictions:  s.evictions,
	}
}
