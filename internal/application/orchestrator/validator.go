package orchestrator

import (
	"fmt"

	"github.com/aescanero/dagoml/pkg/graph"
)

// DefaultMaxTasks bounds the size of a single run
const DefaultMaxTasks = 100000

// Validator validates graphs before they are scheduled
type Validator struct {
	maxTasks int
}

// NewValidator creates a new graph validator
func NewValidator(maxTasks int) *Validator {
	if maxTasks <= 0 {
		maxTasks = DefaultMaxTasks
	}
	return &Validator{maxTasks: maxTasks}
}

// Validate checks that keys are resolvable in g. Structural problems are
// returned as *graph.GraphError.
func (v *Validator) Validate(g graph.Graph, keys []string) error {
	if len(keys) == 0 {
		return fmt.Errorf("at least one key is required")
	}

	for _, key := range keys {
		if key == "" {
			return fmt.Errorf("empty key requested")
		}
	}

	// Structure: every reachable key defined, has a function, no cycles
	if err := g.Validate(keys...); err != nil {
		return err
	}

	culled, err := g.Cull(keys...)
	if err != nil {
		return err
	}
	if culled.Len() > v.maxTasks {
		return fmt.Errorf("run needs %d tasks, more than the limit of %d", culled.Len(), v.maxTasks)
	}

	return nil
}
