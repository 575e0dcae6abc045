package graph

import (
	"context"
)

// Scheduler resolves keys of a graph to values.
//
// Implementations must return a task function's error unchanged.
type Scheduler interface {
	Get(ctx context.Context, g Graph, keys ...string) ([]any, error)
}

type computeOptions struct {
	scheduler Scheduler
}

// ComputeOption configures Compute.
type ComputeOption func(*computeOptions)

// WithScheduler selects the scheduler used to resolve a handle.
func WithScheduler(s Scheduler) ComputeOption {
	return func(o *computeOptions) {
		if s != nil {
			o.scheduler = s
		}
	}
}

// Compute resolves d with the configured scheduler, Sync by default.
func Compute(ctx context.Context, d *Delayed, opts ...ComputeOption) (any, error) {
	o := computeOptions{scheduler: Sync{}}
	for _, opt := range opts {
		opt(&o)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	vals, err := o.scheduler.Get(ctx, d.graph, d.key)
	if err != nil {
		return nil, err
	}
	return vals[0], nil
}

// Sync resolves graphs depth-first in the calling goroutine. Each key is
// computed at most once per Get call.
type Sync struct{}

// Get implements Scheduler.
func (Sync) Get(ctx context.Context, g Graph, keys ...string) ([]any, error) {
	if err := g.Validate(keys...); err != nil {
		return nil, err
	}

	results := make(map[string]any)
	var resolve func(k string) error
	resolve = func(k string) error {
		if _, ok := results[k]; ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		t, _ := g.Task(k)
		for _, dep := range t.Dependencies() {
			if err := resolve(dep); err != nil {
				return err
			}
		}
		args, err := ResolveArgs(t.Args, results)
		if err != nil {
			return err
		}
		v, err := t.Func(ctx, args)
		if err != nil {
			return err
		}
		results[k] = v
		return nil
	}

	out := make([]any, len(keys))
	for i, k := range keys {
		if err := resolve(k); err != nil {
			return nil, err
		}
		out[i] = results[k]
	}
	return out, nil
}
