package ports

import "time"

// Cache lookup results
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// MetricsCollector records scheduler metrics.
type MetricsCollector interface {
	RecordRunSubmitted()
	RecordRunCompleted(status string, duration time.Duration)
	RecordTaskExecuted(taskName, status string, duration time.Duration)
	// RecordCacheLookup records a result cache lookup; result is CacheHit or CacheMiss.
	RecordCacheLookup(result string)
	SetActiveRuns(n int)
	RecordWorkerPoolStatus(idle, busy, stopped int)
}
