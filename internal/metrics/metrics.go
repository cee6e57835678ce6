// Package metrics holds process-wide counters for a single run,
// folded into the run summary at the end.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds runtime counters for chore.
type Metrics struct {
	// Task execution
	TasksRun    atomic.Int64
	TasksFailed atomic.Int64

	// Cache outcomes
	CacheHitsLocal  atomic.Int64
	CacheHitsRemote atomic.Int64
	CacheMisses     atomic.Int64

	// Cache I/O degradations (never fatal, always counted)
	CacheReadErrors  atomic.Int64
	CacheWriteErrors atomic.Int64
	RemoteUploadErrs atomic.Int64

	// Restored artifact volume
	BytesRestored atomic.Int64

	startTime time.Time
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// Global returns the global metrics instance.
func Global() *Metrics {
	globalOnce.Do(func() {
		global = &Metrics{startTime: time.Now()}
	})
	return global
}

// Uptime returns time since first use.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// Snapshot returns the counters as a map for logging and summaries.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"tasks_run":          m.TasksRun.Load(),
		"tasks_failed":       m.TasksFailed.Load(),
		"cache_hits_local":   m.CacheHitsLocal.Load(),
		"cache_hits_remote":  m.CacheHitsRemote.Load(),
		"cache_misses":       m.CacheMisses.Load(),
		"cache_read_errors":  m.CacheReadErrors.Load(),
		"cache_write_errors": m.CacheWriteErrors.Load(),
		"remote_upload_errs": m.RemoteUploadErrs.Load(),
		"bytes_restored":     m.BytesRestored.Load(),
	}
}
