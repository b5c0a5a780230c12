// Package cas implements the persistent, content addressed cache tier.
package cas

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gofrs/flock"
	"go.trai.ch/tsl/internal/core/domain"
	"go.trai.ch/tsl/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.EntryStore = (*Store)(nil)

const tempPattern = "*.tmp"

type meta struct {
	size      int64
	createdAt time.Time
}

// Store keeps one record file per fingerprint below dir. An in-memory index of
// record sizes and creation times is rebuilt by Initialize so eviction never
// rescans the directory. Failures are logged and reported as misses.
type Store struct {
	mu        sync.Mutex
	dir       string
	maxBytes  int64
	ttl       time.Duration
	compress  bool
	index     map[domain.Fingerprint]meta
	total     int64
	evictions uint64
	lock      *flock.Flock
	logger    ports.Logger
	metrics   ports.Metrics
	now       func() time.Time
	retryOpts []retry.Option
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

// WithRetry replaces the retry policy of record writes.
func WithRetry(opts ...retry.Option) Option {
	return func(s *Store) {
		s.retryOpts = opts
	}
}

// New creates a Store rooted at dir. Initialize must be called before use.
func New(dir string, cfg domain.PersistentConfig, logger ports.Logger, opts ...Option) *Store {
	s := &Store{
		dir:      dir,
		maxBytes: cfg.MaxBytes,
		ttl:      cfg.TTL,
		compress: cfg.Compression,
		index:    make(map[domain.Fingerprint]meta),
		lock:     flock.New(filepath.Join(dir, domain.LockFileName)),
		logger:   logger,
		now:      time.Now,
		retryOpts: []retry.Option{
			retry.Attempts(3),
			retry.Delay(10 * time.Millisecond),
			retry.MaxDelay(100 * time.Millisecond),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the record directory.
func (s *Store) Dir() string {
	return s.dir
}

// Initialize creates the directory and rebuilds the index from every record on
// disk. Unreadable or corrupt records are logged and removed.
func (s *Store) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreCreateFailed.Error()), "dir", s.dir)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquire()
	if err != nil {
		return err
	}
	defer unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "dir", s.dir)
	}

	s.index = make(map[domain.Fingerprint]meta, len(entries))
	s.total = 0

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if ok, _ := filepath.Match(tempPattern, name); ok {
			s.remove(filepath.Join(s.dir, name))
			continue
		}
		if !strings.HasSuffix(name, domain.RecordExt) {
			continue
		}
		s.load(name)
	}

	s.logger.Debug("persistent cache loaded", "dir", s.dir, "entries", len(s.index), "bytes", s.total)
	if s.total > s.maxBytes {
		s.evict()
	}
	return nil
}

func (s *Store) load(name string) {
	path := filepath.Join(s.dir, name)
	fp := domain.Fingerprint(strings.TrimSuffix(name, domain.RecordExt))

	//nolint:gosec // path is built from the store directory and a directory entry name
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("skipping unreadable cache record", "file", name, "error", err.Error())
		return
	}

	rec, _, err := decodeRecord(data)
	if err == nil && (!fp.Valid() || rec.Fingerprint != fp) {
		err = zerr.With(domain.ErrRecordCorrupt, "reason", "name mismatch")
	}
	if err != nil {
		s.logger.Warn("skipping corrupt cache record", "file", name, "error", err.Error())
		s.remove(path)
		return
	}

	size := int64(len(data))
	s.index[fp] = meta{size: size, createdAt: rec.CreatedAt}
	s.total += size
}

// Get returns the entry for fp if indexed, fresh and readable.
func (s *Store) Get(fp domain.Fingerprint) (domain.CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.index[fp]
	if !ok {
		return domain.CacheEntry{}, false
	}

	now := s.now()
	if (domain.CacheEntry{CreatedAt: m.createdAt}).Expired(now, s.ttl) {
		s.drop(fp)
		return domain.CacheEntry{}, false
	}

	//nolint:gosec // path is built from the store directory and a validated fingerprint
	data, err := os.ReadFile(s.path(fp))
	if err != nil {
		s.logger.Warn("cache record unreadable", "fingerprint", fp.String(), "error",
			zerr.Wrap(err, domain.ErrStoreReadFailed.Error()).Error())
		s.drop(fp)
		return domain.CacheEntry{}, false
	}

	rec, value, err := decodeRecord(data)
	if err == nil && rec.Fingerprint != fp {
		err = zerr.With(domain.ErrRecordCorrupt, "reason", "fingerprint mismatch")
	}
	if err != nil {
		s.logger.Warn("cache record corrupt", "fingerprint", fp.String(), "error", err.Error())
		s.drop(fp)
		return domain.CacheEntry{}, false
	}

	return domain.CacheEntry{
		Fingerprint:    fp,
		Value:          value,
		CreatedAt:      rec.CreatedAt,
		LastAccessedAt: now,
		Size:           m.size,
	}, true
}

// Set writes the record for e and evicts oldest records once the byte cap is exceeded.
func (s *Store) Set(e domain.CacheEntry) {
	if !e.Fingerprint.Valid() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}

	data, err := encodeRecord(e, s.compress)
	if err != nil {
		s.logger.Warn("cache record not stored", "fingerprint", e.Fingerprint.String(), "error", err.Error())
		return
	}
	size := int64(len(data))
	if float64(size) > float64(s.maxBytes)*domain.PersistentEvictionWatermark {
		s.logger.Debug("cache record exceeds eviction watermark", "fingerprint", e.Fingerprint.String(), "bytes", size)
		return
	}

	unlock, err := s.acquire()
	if err != nil {
		s.logger.Warn("cache record not stored", "fingerprint", e.Fingerprint.String(), "error", err.Error())
		return
	}
	defer unlock()

	if err := s.write(e.Fingerprint, data); err != nil {
		s.logger.Warn("cache record not stored", "fingerprint", e.Fingerprint.String(), "error", err.Error())
		return
	}

	if old, ok := s.index[e.Fingerprint]; ok {
		s.total -= old.size
	}
	s.index[e.Fingerprint] = meta{size: size, createdAt: e.CreatedAt}
	s.total += size

	if s.total > s.maxBytes {
		s.evict()
	}
}

// write replaces the record atomically via a temp file and rename.
func (s *Store) write(fp domain.Fingerprint, data []byte) error {
	return retry.Do(func() error {
		tmp, err := os.CreateTemp(s.dir, fp.String()+"-"+tempPattern)
		if err != nil {
			return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
		}
		tmpName := tmp.Name()

		_, werr := tmp.Write(data)
		cerr := tmp.Close()
		if err := errors.Join(werr, cerr); err != nil {
			_ = os.Remove(tmpName)
			return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
		}
		if err := os.Chmod(tmpName, domain.FilePerm); err != nil {
			_ = os.Remove(tmpName)
			return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
		}
		if err := os.Rename(tmpName, s.path(fp)); err != nil {
			_ = os.Remove(tmpName)
			return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
		}
		return nil
	}, s.retryOpts...)
}

// evict removes records oldest first until the total is at the watermark.
func (s *Store) evict() {
	target := int64(float64(s.maxBytes) * domain.PersistentEvictionWatermark)

	order := make([]domain.Fingerprint, 0, len(s.index))
	for fp := range s.index {
		order = append(order, fp)
	}
	slices.SortFunc(order, func(a, b domain.Fingerprint) int {
		if c := s.index[a].createdAt.Compare(s.index[b].createdAt); c != 0 {
			return c
		}
		return strings.Compare(string(a), string(b))
	})

	removed := 0
	for _, fp := range order {
		if s.total <= target {
			break
		}
		s.drop(fp)
		removed++
	}

	s.evictions += uint64(removed)
	if s.metrics != nil && removed > 0 {
		s.metrics.CacheEvicted(ports.TierPersistent, removed)
	}
	s.logger.Debug("persistent cache evicted", "records", removed, "bytes", s.total)
}

// Delete removes the record for fp.
func (s *Store) Delete(fp domain.Fingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[fp]; !ok {
		return
	}
	unlock, err := s.acquire()
	if err != nil {
		s.logger.Warn("cache record not removed", "fingerprint", fp.String(), "error", err.Error())
		return
	}
	defer unlock()
	s.drop(fp)
}

// Clear removes every record in the directory.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquire()
	if err != nil {
		s.logger.Warn("cache not cleared", "error", err.Error())
		return
	}
	defer unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("cache not cleared", "error", zerr.Wrap(err, domain.ErrStoreReadFailed.Error()).Error())
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), domain.RecordExt) {
			s.remove(filepath.Join(s.dir, entry.Name()))
		}
	}
	s.index = make(map[domain.Fingerprint]meta)
	s.total = 0
}

// Stats returns the tier occupancy.
func (s *Store) Stats() domain.TierStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.TierStats{
		Entries:   len(s.index),
		Bytes:     s.total,
		MaxBytes:  s.maxBytes,
		Evictions: s.evictions,
	}
}

// Close releases the directory lock handle.
func (s *Store) Close() error {
	return s.lock.Close()
}

// drop removes fp from the index and the disk.
func (s *Store) drop(fp domain.Fingerprint) {
	if m, ok := s.index[fp]; ok {
		s.total -= m.size
		delete(s.index, fp)
	}
	s.remove(s.path(fp))
}

func (s *Store) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("cache record not removed", "file", filepath.Base(path),
			"error", zerr.Wrap(err, domain.ErrStoreRemoveFailed.Error()).Error())
	}
}

func (s *Store) acquire() (func(), error) {
	if err := s.lock.Lock(); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreLockFailed.Error()), "dir", s.dir)
	}
	return func() { _ = s.lock.Unlock() }, nil
}

func (s *Store) path(fp domain.Fingerprint) string {
	return filepath.Join(s.dir, fp.String()+domain.RecordExt)
}
