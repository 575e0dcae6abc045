package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/dagoml/pkg/domain"
	"github.com/aescanero/dagoml/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

const (
	resultPrefix = "dagoml:result:"
	runPrefix    = "dagoml:run:"
)

// Store implements ports.ResultStore and ports.RunStore using Redis.
//
// Only plain numeric results (scores, prediction vectors, float slices) are
// cached; estimators stay in memory and PutResult rejects them with
// ports.ErrNotCacheable.
type Store struct {
	client    *redis.Client
	logger    *zap.Logger
	resultTTL time.Duration
	runTTL    time.Duration
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client, resultTTL, runTTL time.Duration, logger *zap.Logger) *Store {
	return &Store{
		client:    client,
		logger:    logger,
		resultTTL: resultTTL,
		runTTL:    runTTL,
	}
}

// result value kinds
const (
	kindFloat  = "float64"
	kindVector = "vector"
	kindFloats = "floats"
)

// envelope is the JSON form of a cached result
type envelope struct {
	Kind   string    `json:"kind"`
	Scalar float64   `json:"scalar,omitempty"`
	Values []float64 `json:"values,omitempty"`
}

func encodeResult(value any) ([]byte, error) {
	var env envelope
	switch v := value.(type) {
	case float64:
		env = envelope{Kind: kindFloat, Scalar: v}
	case *mat.VecDense:
		values := make([]float64, v.Len())
		for i := range values {
			values[i] = v.AtVec(i)
		}
		env = envelope{Kind: kindVector, Values: values}
	case []float64:
		env = envelope{Kind: kindFloats, Values: v}
	default:
		return nil, fmt.Errorf("%w: %T", ports.ErrNotCacheable, value)
	}
	return json.Marshal(env)
}

func decodeResult(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	switch env.Kind {
	case kindFloat:
		return env.Scalar, nil
	case kindVector:
		if len(env.Values) == 0 {
			return &mat.VecDense{}, nil
		}
		return mat.NewVecDense(len(env.Values), env.Values), nil
	case kindFloats:
		if env.Values == nil {
			return []float64{}, nil
		}
		return env.Values, nil
	default:
		return nil, fmt.Errorf("unknown result kind %q", env.Kind)
	}
}

// GetResult retrieves a cached task value (ports.ResultStore interface)
func (s *Store) GetResult(ctx context.Context, key string) (any, error) {
	data, err := s.client.Get(ctx, resultPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return decodeResult(data)
}

// PutResult caches a task value with the configured TTL (ports.ResultStore interface)
func (s *Store) PutResult(ctx context.Context, key string, value any) error {
	data, err := encodeResult(value)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, resultPrefix+key, data, s.resultTTL).Err(); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	s.logger.Debug("result cached", zap.String("key", key))
	return nil
}

// DeleteResult removes a cached task value (ports.ResultStore interface)
func (s *Store) DeleteResult(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, resultPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	return nil
}

// SaveRun persists a run record (ports.RunStore interface)
func (s *Store) SaveRun(ctx context.Context, run *domain.RunState) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	if err := s.client.Set(ctx, getRunKey(run.RunID), data, s.runTTL).Err(); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	s.logger.Debug("run saved",
		zap.String("run_id", run.RunID),
		zap.String("status", string(run.Status)))

	return nil
}

// GetRun retrieves a run record (ports.RunStore interface)
func (s *Store) GetRun(ctx context.Context, runID string) (*domain.RunState, error) {
	data, err := s.client.Get(ctx, getRunKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run domain.RunState
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

// ListRuns lists all stored runs (ports.RunStore interface)
func (s *Store) ListRuns(ctx context.Context) ([]*domain.RunState, error) {
	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, runPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	runs := make([]*domain.RunState, 0, len(keys))
	for _, key := range keys {
		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			// expired between SCAN and GET
			continue
		}

		var run domain.RunState
		if err := json.Unmarshal(data, &run); err != nil {
			s.logger.Warn("skipping malformed run record", zap.String("key", key), zap.Error(err))
			continue
		}
		runs = append(runs, &run)
	}

	return runs, nil
}

// DeleteRun removes a run record (ports.RunStore interface)
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	if err := s.client.Del(ctx, getRunKey(runID)).Err(); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	s.logger.Debug("run deleted", zap.String("run_id", runID))
	return nil
}

// getRunKey returns the Redis key for a run record
func getRunKey(runID string) string {
	return fmt.Sprintf("%s%s", runPrefix, runID)
}
