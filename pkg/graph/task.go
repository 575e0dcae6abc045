package graph

import (
	"context"
)

// TaskFunc computes a task's value from its resolved arguments.
type TaskFunc func(ctx context.Context, args []any) (any, error)

// Task is one node of a Graph.
type Task struct {
	// Name is the operation label used by logs and metrics ("fit", "predict", ...).
	Name string
	Func TaskFunc
	Args []any
}

// Ref is an argument that resolves to the value of another key.
type Ref string

// RefList is an argument that resolves to the values of several keys, in order.
type RefList []string

// Dependencies returns the keys referenced by the task's arguments, in argument order.
func (t Task) Dependencies() []string {
	var deps []string
	for _, arg := range t.Args {
		switch a := arg.(type) {
		case Ref:
			deps = append(deps, string(a))
		case RefList:
			deps = append(deps, a...)
		}
	}
	return deps
}

// ResolveArgs substitutes Refs and RefLists in args with values from results.
func ResolveArgs(args []any, results map[string]any) ([]any, error) {
	out := make([]any, len(args))
	for i, arg := range args {
		switch a := arg.(type) {
		case Ref:
			v, ok := results[string(a)]
			if !ok {
				return nil, missingf("unresolved reference %q", string(a))
			}
			out[i] = v
		case RefList:
			vals := make([]any, len(a))
			for j, k := range a {
				v, ok := results[k]
				if !ok {
					return nil, missingf("unresolved reference %q", k)
				}
				vals[j] = v
			}
			out[i] = vals
		default:
			out[i] = arg
		}
	}
	return out, nil
}
