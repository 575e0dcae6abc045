package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aescanero/dagoml/pkg/domain"
	"github.com/aescanero/dagoml/pkg/ports"
	"github.com/huandu/go-clone"
)

// Store implements ports.ResultStore and ports.RunStore using in-memory maps.
// Values are deep-copied on the way in and out, so cached estimators can
// never be mutated by a task that received them.
type Store struct {
	results map[string]any
	runs    map[string]*domain.RunState
	mu      sync.RWMutex
}

// NewStore creates a new in-memory store
func NewStore() *Store {
	return &Store{
		results: make(map[string]any),
		runs:    make(map[string]*domain.RunState),
	}
}

// GetResult retrieves a cached task value (ports.ResultStore interface)
func (s *Store) GetResult(ctx context.Context, key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.results[key]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return clone.Clone(v), nil
}

// PutResult caches a task value (ports.ResultStore interface)
func (s *Store) PutResult(ctx context.Context, key string, value any) error {
	stored := clone.Clone(value)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[key] = stored
	return nil
}

// DeleteResult removes a cached task value (ports.ResultStore interface)
func (s *Store) DeleteResult(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.results, key)
	return nil
}

// SaveRun persists a run record (ports.RunStore interface)
func (s *Store) SaveRun(ctx context.Context, run *domain.RunState) error {
	runCopy := clone.Clone(run).(*domain.RunState)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.RunID] = runCopy
	return nil
}

// GetRun retrieves a run record (ports.RunStore interface)
func (s *Store) GetRun(ctx context.Context, runID string) (*domain.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return clone.Clone(run).(*domain.RunState), nil
}

// ListRuns returns all run records, oldest first (ports.RunStore interface)
func (s *Store) ListRuns(ctx context.Context) ([]*domain.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*domain.RunState, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, clone.Clone(run).(*domain.RunState))
	}
	sortRuns(runs)
	return runs, nil
}

// DeleteRun removes a run record (ports.RunStore interface)
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, runID)
	return nil
}

func sortRuns(runs []*domain.RunState) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].SubmittedAt.Equal(runs[j].SubmittedAt) {
			return runs[i].RunID < runs[j].RunID
		}
		return runs[i].SubmittedAt.Before(runs[j].SubmittedAt)
	})
}
