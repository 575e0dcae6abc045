// Package ports defines the interfaces the scheduler service depends on.
// Adapters under pkg/adapters implement them.
package ports
