package graph

import (
	"sort"
)

// Graph is an immutable mapping from keys to tasks.
//
// The zero value is an empty graph.
type Graph struct {
	tasks map[string]Task
}

// New returns an empty graph.
func New() Graph {
	return Graph{}
}

// Single returns a graph holding one task.
func Single(key string, t Task) Graph {
	return Graph{tasks: map[string]Task{key: t}}
}

// With returns a copy of g extended with key. An existing definition of key is
// kept, since equal keys denote equal computations.
func (g Graph) With(key string, t Task) Graph {
	if _, exists := g.tasks[key]; exists {
		return g
	}
	tasks := make(map[string]Task, len(g.tasks)+1)
	for k, v := range g.tasks {
		tasks[k] = v
	}
	tasks[key] = t
	return Graph{tasks: tasks}
}

// Merge returns the union of graphs. The first definition of a key wins.
func Merge(graphs ...Graph) Graph {
	size := 0
	for _, g := range graphs {
		size += len(g.tasks)
	}
	tasks := make(map[string]Task, size)
	for _, g := range graphs {
		for k, t := range g.tasks {
			if _, exists := tasks[k]; !exists {
				tasks[k] = t
			}
		}
	}
	return Graph{tasks: tasks}
}

// Task returns the task stored under key.
func (g Graph) Task(key string) (Task, bool) {
	t, ok := g.tasks[key]
	return t, ok
}

// Has reports whether key is defined.
func (g Graph) Has(key string) bool {
	_, ok := g.tasks[key]
	return ok
}

// Len returns the number of tasks.
func (g Graph) Len() int { return len(g.tasks) }

// Keys returns every key in sorted order.
func (g Graph) Keys() []string {
	keys := make([]string, 0, len(g.tasks))
	for k := range g.tasks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dependencies returns the keys the task under key refers to.
func (g Graph) Dependencies(key string) ([]string, error) {
	t, ok := g.tasks[key]
	if !ok {
		return nil, missingf("key %q not in graph", key)
	}
	return t.Dependencies(), nil
}

// Cull returns the sub-graph needed to compute keys.
func (g Graph) Cull(keys ...string) (Graph, error) {
	tasks := make(map[string]Task)
	stack := append([]string(nil), keys...)
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := tasks[k]; seen {
			continue
		}
		t, ok := g.tasks[k]
		if !ok {
			return Graph{}, missingf("key %q not in graph", k)
		}
		tasks[k] = t
		stack = append(stack, t.Dependencies()...)
	}
	return Graph{tasks: tasks}, nil
}

// Validate checks that keys and everything they depend on are defined, that
// every task has a function, and that no cycle is reachable.
func (g Graph) Validate(keys ...string) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(g.tasks))
	var path []string

	var visit func(k string) error
	visit = func(k string) error {
		switch state[k] {
		case done:
			return nil
		case visiting:
			start := 0
			for i, p := range path {
				if p == k {
					start = i
					break
				}
			}
			cycle := append(append([]string(nil), path[start:]...), k)
			return cycleError(cycle)
		}

		t, ok := g.tasks[k]
		if !ok {
			if len(path) == 0 {
				return missingf("key %q not in graph", k)
			}
			return missingf("key %q (needed by %q) not in graph", k, path[len(path)-1])
		}
		if t.Func == nil {
			return invalidf("task %q has no function", k)
		}

		state[k] = visiting
		path = append(path, k)
		for _, dep := range t.Dependencies() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[k] = done
		return nil
	}

	if len(keys) == 0 {
		keys = g.Keys()
	}
	for _, k := range keys {
		if err := visit(k); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalOrder returns the keys of g so that every key follows its
// dependencies. Ties are broken by key for determinism. g must be valid.
func (g Graph) TopologicalOrder() []string {
	indeg := make(map[string]int, len(g.tasks))
	dependents := make(map[string][]string, len(g.tasks))
	for k, t := range g.tasks {
		if _, ok := indeg[k]; !ok {
			indeg[k] = 0
		}
		for _, dep := range uniq(t.Dependencies()) {
			indeg[k]++
			dependents[dep] = append(dependents[dep], k)
		}
	}

	var ready []string
	for k, d := range indeg {
		if d == 0 {
			ready = append(ready, k)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.tasks))
	for len(ready) > 0 {
		k := ready[0]
		ready = ready[1:]
		order = append(order, k)
		next := dependents[k]
		sort.Strings(next)
		for _, d := range next {
			indeg[d]--
			if indeg[d] == 0 {
				ready = append(ready, d)
			}
		}
		sort.Strings(ready)
	}
	return order
}

func uniq(keys []string) []string {
	if len(keys) < 2 {
		return keys
	}
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
