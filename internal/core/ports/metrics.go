package ports

import "go.trai.ch/tsl/internal/core/domain"

// Cache tier labels.
const (
	TierMemory     = "memory"
	TierPersistent = "persistent"
)

// Task outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeTimeout  = "timeout"
	OutcomeCrash    = "crash"
	OutcomeShutdown = "shutdown"
	OutcomeError    = "error"
)

// Metrics records pipeline counters.
type Metrics interface {
	CacheHit(tier string)
	CacheMiss()
	CacheEvicted(tier string, n int)
	FrontendInvoked(kind domain.TaskKind)
	TaskFinished(kind domain.TaskKind, outcome string)
	TaskRetried(kind domain.TaskKind)
	WorkerRestarted()
}
