// Package orchestrator implements the concurrent, caching graph scheduler.
//
// The orchestrator manager resolves task graphs by:
//   - Validating graph structure and the requested keys
//   - Reusing cached results by key and skipping the ancestors they cover
//   - Dispatching ready tasks to the worker pool in dependency order
//   - Managing run lifecycle (submit, complete, fail, cancel, timeout)
//   - Publishing run and task events to the event bus
//   - Tracking run state via the run store
//
// Manager implements graph.Scheduler, so lazy estimators compute through it
// with graph.WithScheduler.
package orchestrator
