package ports

import (
	"context"
	"errors"

	"github.com/aescanero/dagoml/pkg/domain"
)

var (
	// ErrNotFound is returned when a result or run does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotCacheable is returned by PutResult for values the store cannot hold.
	ErrNotCacheable = errors.New("value is not cacheable")
)

// ResultStore caches computed task values by graph key.
type ResultStore interface {
	// GetResult returns the cached value for key, or ErrNotFound.
	GetResult(ctx context.Context, key string) (any, error)
	// PutResult caches value under key.
	PutResult(ctx context.Context, key string, value any) error
	DeleteResult(ctx context.Context, key string) error
}

// RunStore persists scheduler run records.
type RunStore interface {
	SaveRun(ctx context.Context, run *domain.RunState) error
	// GetRun returns the run with the given ID, or ErrNotFound.
	GetRun(ctx context.Context, runID string) (*domain.RunState, error)
	ListRuns(ctx context.Context) ([]*domain.RunState, error)
	DeleteRun(ctx context.Context, runID string) error
}
