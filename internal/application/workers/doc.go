// Package workers implements the worker pool that executes graph tasks.
//
// The worker pool manages a fixed number of goroutines that:
//   - Consume task jobs submitted by the orchestrator
//   - Run each task under a per-task timeout, turning panics into errors
//   - Collapse concurrent executions of the same graph key into one
//   - Record task metrics and deliver results on the job's channel
//
// The health monitor tracks worker status and logs metrics.
package workers
