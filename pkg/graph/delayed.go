package graph

import (
	"context"
)

// Delayed is a handle to the not-yet-computed value of one key.
type Delayed struct {
	key   string
	graph Graph
}

// NewDelayed returns a handle for key within g.
func NewDelayed(key string, g Graph) *Delayed {
	return &Delayed{key: key, graph: g}
}

// Key returns the key the handle resolves.
func (d *Delayed) Key() string { return d.key }

// Graph returns the graph needed to resolve the handle.
func (d *Delayed) Graph() Graph { return d.graph }

// Token identifies the handle by its key.
func (d *Delayed) Token() string { return d.key }

// Compute resolves the handle.
func (d *Delayed) Compute(ctx context.Context, opts ...ComputeOption) (any, error) {
	return Compute(ctx, d, opts...)
}

// String returns a short description of the handle.
func (d *Delayed) String() string {
	return "Delayed(" + d.key + ")"
}
