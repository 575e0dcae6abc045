// Package graph is the deferred-execution substrate: key-addressed task graphs
// that are built incrementally and resolved on demand.
//
// A Graph maps keys to Tasks. A Task is a function plus arguments; arguments
// are literals, Refs to other keys, or RefLists. Graphs are immutable values:
// With and Merge return new graphs and never modify their receivers, so a
// graph can be shared between any number of handles and goroutines.
//
// Keys are content addresses. Two tasks stored under the same key are assumed
// to compute the same value, which is what lets Merge deduplicate shared
// ancestors and lets schedulers cache results across runs.
//
// Resolution goes through a Scheduler. Sync resolves in the calling goroutine;
// the orchestrator service provides a concurrent, caching implementation.
package graph
