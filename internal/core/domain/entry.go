package domain

import "time"

// CacheEntry is a stored frontend result. Value is immutable for a given fingerprint.
type CacheEntry struct {
	Fingerprint    Fingerprint
	Value          FrontendResult
	CreatedAt      time.Time
	LastAccessedAt time.Time
	Size           int64
}

// Expired reports whether the entry is older than ttl at now. A zero ttl never expires.
func (e CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(e.CreatedAt) >= ttl
}

// TierStats describes the occupancy of one cache tier.
type TierStats struct {
	Entries    int    `json:"entries"`
	MaxEntries int    `json:"maxEntries,omitempty"`
	Bytes      int64  `json:"bytes"`
	MaxBytes   int64  `json:"maxBytes,omitempty"`
	Evictions  uint64 `json:"evictions"`
}

// CacheStats aggregates both tiers and the lookup counters.
type CacheStats struct {
	Memory            TierStats `json:"memory"`
	Persistent        TierStats `json:"persistent"`
	PersistentEnabled bool      `json:"persistentEnabled"`
	MemoryHits        uint64    `json:"memoryHits"`
	PersistentHits    uint64    `json:"persistentHits"`
	Misses            uint64    `json:"misses"`
}

// FileStatus is the change-detection signal of a source file.
type FileStatus struct {
	ModTime time.Time
	Size    int64
}

// Same reports whether both modification time and size are unchanged.
func (s FileStatus) Same(other FileStatus) bool {
	return s.Size == other.Size && s.ModTime.Equal(other.ModTime)
}
