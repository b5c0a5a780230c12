package metrics_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/tsl/internal/adapters/metrics"
	"go.trai.ch/tsl/internal/core/domain"
	"go.trai.ch/tsl/internal/core/ports"
)

func TestPrometheus_Counters(t *testing.T) {
	m := metrics.New()

	m.CacheHit(ports.TierMemory)
	m.CacheHit(ports.TierMemory)
	m.CacheHit(ports.TierPersistent)
	m.CacheMiss()
	m.CacheEvicted(ports.TierMemory, 3)
	m.FrontendInvoked(domain.KindCheck)
	m.TaskFinished(domain.KindCompile, ports.OutcomeTimeout)
	m.TaskRetried(domain.KindCompile)
	m.TaskRetried(domain.KindCompile)
	m.WorkerRestarted()

	assert.InDelta(t, 2, m.Value("tsl_cache_hits_total", ports.TierMemory), 0)
	assert.InDelta(t, 1, m.Value("tsl_cache_hits_total", ports.TierPersistent), 0)
	assert.InDelta(t, 1, m.Value("tsl_cache_misses_total"), 0)
	assert.InDelta(t, 3, m.Value("tsl_cache_evictions_total", ports.TierMemory), 0)
	assert.InDelta(t, 1, m.Value("tsl_frontend_invocations_total", "check"), 0)
	assert.InDelta(t, 1, m.Value("tsl_pool_tasks_total", "compile", ports.OutcomeTimeout), 0)
	assert.InDelta(t, 2, m.Value("tsl_pool_task_retries_total", "compile"), 0)
	assert.InDelta(t, 1, m.Value("tsl_pool_worker_restarts_total"), 0)
	assert.InDelta(t, 0, m.Value("tsl_pool_tasks_total", "check", ports.OutcomeSuccess), 0)
}

func TestPrometheus_WriteToTextfile(t *testing.T) {
	m := metrics.New()
	m.WorkerRestarted()

	path := filepath.Join(t.TempDir(), "tsl.prom")
	require.NoError(t, m.WriteToTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# TYPE tsl_pool_worker_restarts_total counter")
	assert.Contains(t, string(data), "tsl_pool_worker_restarts_total 1")

	err = m.WriteToTextfile(filepath.Join(t.TempDir(), "missing", "tsl.prom"))
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrMetricsWriteFailed.Error())
}
