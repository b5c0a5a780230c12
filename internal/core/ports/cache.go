package ports

import "go.trai.ch/tsl/internal/core/domain"

// ResultCache maps fingerprints to frontend results.
type ResultCache interface {
	Get(fp domain.Fingerprint) (domain.FrontendResult, bool)
	Set(fp domain.Fingerprint, value domain.FrontendResult)
	Delete(fp domain.Fingerprint)
	Clear()
	Stats() domain.CacheStats
}

// EntryStore is a single cache tier.
type EntryStore interface {
	// Get returns the entry if present and not expired.
	Get(fp domain.Fingerprint) (domain.CacheEntry, bool)
	// Set inserts or replaces the entry, evicting under the tier's policy.
	Set(entry domain.CacheEntry)
	Delete(fp domain.Fingerprint)
	Clear()
	Stats() domain.TierStats
}
