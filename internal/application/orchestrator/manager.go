package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aescanero/dagoml/internal/application/workers"
	"github.com/aescanero/dagoml/pkg/domain"
	"github.com/aescanero/dagoml/pkg/graph"
	"github.com/aescanero/dagoml/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrShuttingDown is returned by Get once Shutdown has been called.
	ErrShuttingDown = errors.New("scheduler is shutting down")
	// ErrRunNotActive is returned by CancelRun for unknown or finished runs.
	ErrRunNotActive = errors.New("run is not active")
)

// Manager coordinates graph execution
type Manager struct {
	pool      *workers.Pool
	results   ports.ResultStore
	runs      ports.RunStore
	eventBus  ports.EventBus
	metrics   ports.MetricsCollector
	validator *Validator
	logger    *zap.Logger

	// Track active runs
	active      sync.Map // map[string]*runContext
	activeCount atomic.Int64
	closed      atomic.Bool

	runTimeout time.Duration
}

// runContext holds state for a single run
type runContext struct {
	runID      string
	startedAt  time.Time
	cancelFunc context.CancelFunc
	cancelled  atomic.Bool
}

// NewManager creates a new orchestrator manager. results may be nil to
// disable result caching.
func NewManager(
	pool *workers.Pool,
	results ports.ResultStore,
	runs ports.RunStore,
	eventBus ports.EventBus,
	metrics ports.MetricsCollector,
	validator *Validator,
	logger *zap.Logger,
	runTimeout time.Duration,
) *Manager {
	return &Manager{
		pool:       pool,
		results:    results,
		runs:       runs,
		eventBus:   eventBus,
		metrics:    metrics,
		validator:  validator,
		logger:     logger,
		runTimeout: runTimeout,
	}
}

// Get implements graph.Scheduler. It resolves keys as one run and returns
// their values in order. The first task failure cancels the run and is
// returned exactly as the task function produced it.
func (m *Manager) Get(ctx context.Context, g graph.Graph, keys ...string) ([]any, error) {
	if m.closed.Load() {
		return nil, ErrShuttingDown
	}
	if err := m.validator.Validate(g, keys); err != nil {
		m.logger.Warn("graph validation failed", zap.Strings("keys", keys), zap.Error(err))
		return nil, err
	}
	culled, err := g.Cull(keys...)
	if err != nil {
		return nil, err
	}

	run := &domain.RunState{
		RunID:       uuid.New().String(),
		Targets:     append([]string(nil), keys...),
		Status:      domain.RunStatusSubmitted,
		Tasks:       culled.Len(),
		SubmittedAt: time.Now().UTC(),
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if m.runTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, m.runTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	rc := &runContext{runID: run.RunID, startedAt: time.Now(), cancelFunc: cancel}
	m.active.Store(run.RunID, rc)
	m.metrics.SetActiveRuns(int(m.activeCount.Add(1)))
	defer func() {
		m.active.Delete(run.RunID)
		m.metrics.SetActiveRuns(int(m.activeCount.Add(-1)))
	}()

	m.saveRun(ctx, run)
	m.publish(ctx, domain.TopicRunEvents, domain.EventTypeRunSubmitted, run.RunID, "", map[string]any{
		"targets": run.Targets,
		"tasks":   run.Tasks,
	})
	m.metrics.RecordRunSubmitted()
	m.logger.Info("run submitted",
		zap.String("run_id", run.RunID),
		zap.Strings("targets", keys),
		zap.Int("tasks", run.Tasks))

	run.Status = domain.RunStatusRunning
	m.saveRun(ctx, run)

	results, err := m.execute(runCtx, culled, run)
	m.finish(ctx, rc, run, err)
	if err != nil {
		return nil, err
	}

	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = results[k]
	}
	return out, nil
}

// execute runs the tasks of g that are needed for run.Targets and not cached.
func (m *Manager) execute(ctx context.Context, g graph.Graph, run *domain.RunState) (map[string]any, error) {
	results := make(map[string]any, g.Len())

	// Walk down from the targets; a cached key cuts off its ancestors.
	needed := make(map[string]bool)
	visited := make(map[string]bool)
	stack := append([]string(nil), run.Targets...)
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[k] {
			continue
		}
		visited[k] = true

		if v, ok := m.lookup(ctx, run.RunID, k); ok {
			results[k] = v
			run.CacheHits++
			continue
		}
		needed[k] = true
		deps, _ := g.Dependencies(k)
		stack = append(stack, deps...)
	}

	pending := make(map[string]int, len(needed))
	dependents := make(map[string][]string, len(needed))
	var ready []string
	for k := range needed {
		deps, _ := g.Dependencies(k)
		for _, d := range unique(deps) {
			if needed[d] {
				pending[k]++
				dependents[d] = append(dependents[d], k)
			}
		}
		if pending[k] == 0 {
			ready = append(ready, k)
		}
	}
	sort.Strings(ready)

	done := make(chan workers.Result, len(needed))
	dispatch := func(k string) error {
		t, _ := g.Task(k)
		args, err := graph.ResolveArgs(t.Args, results)
		if err != nil {
			return err
		}
		return m.pool.Submit(workers.Job{
			Ctx:   ctx,
			RunID: run.RunID,
			Key:   k,
			Task:  t,
			Args:  args,
			Done:  done,
		})
	}

	for _, k := range ready {
		if err := dispatch(k); err != nil {
			return nil, m.runError(run.RunID, err)
		}
	}

	for remaining := len(needed); remaining > 0; remaining-- {
		var res workers.Result
		select {
		case res = <-done:
		case <-ctx.Done():
			return nil, m.runError(run.RunID, ctx.Err())
		case <-m.pool.Done():
			return nil, workers.ErrPoolStopped
		}

		if res.Err != nil {
			m.publish(ctx, domain.TopicTaskEvents, domain.EventTypeTaskFailed, run.RunID, res.Key, map[string]any{
				"task":  res.TaskName,
				"error": res.Err.Error(),
			})
			m.logger.Warn("task failed",
				zap.String("run_id", run.RunID),
				zap.String("key", res.Key),
				zap.String("task", res.TaskName),
				zap.Error(res.Err))
			if ctx.Err() != nil {
				return nil, m.runError(run.RunID, ctx.Err())
			}
			return nil, res.Err
		}

		results[res.Key] = res.Value
		run.Executed++
		m.store(ctx, run.RunID, res.Key, res.Value)
		m.publish(ctx, domain.TopicTaskEvents, domain.EventTypeTaskCompleted, run.RunID, res.Key, map[string]any{
			"task":        res.TaskName,
			"duration_ms": res.Duration.Milliseconds(),
			"shared":      res.Shared,
		})

		next := dependents[res.Key]
		sort.Strings(next)
		for _, d := range next {
			pending[d]--
			if pending[d] == 0 {
				if err := dispatch(d); err != nil {
					return nil, m.runError(run.RunID, err)
				}
			}
		}
	}

	return results, nil
}

// runError describes a run-level interruption. Cancellation and timeouts
// keep their context error so callers can test for them.
func (m *Manager) runError(runID string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("run %s timed out: %w", runID, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("run %s cancelled: %w", runID, err)
	}
	return err
}

// lookup consults the result cache
func (m *Manager) lookup(ctx context.Context, runID, key string) (any, bool) {
	if m.results == nil {
		return nil, false
	}
	v, err := m.results.GetResult(ctx, key)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			m.logger.Warn("result cache lookup failed", zap.String("key", key), zap.Error(err))
		}
		m.metrics.RecordCacheLookup(ports.CacheMiss)
		return nil, false
	}
	m.metrics.RecordCacheLookup(ports.CacheHit)
	m.publish(ctx, domain.TopicTaskEvents, domain.EventTypeTaskCached, runID, key, nil)
	return v, true
}

// store writes a computed value to the result cache
func (m *Manager) store(ctx context.Context, runID, key string, value any) {
	if m.results == nil {
		return
	}
	if err := m.results.PutResult(ctx, key, value); err != nil {
		if errors.Is(err, ports.ErrNotCacheable) {
			m.logger.Debug("result not cacheable", zap.String("run_id", runID), zap.String("key", key))
			return
		}
		m.logger.Warn("failed to cache result",
			zap.String("run_id", runID),
			zap.String("key", key),
			zap.Error(err))
	}
}

// finish records the final state of a run
func (m *Manager) finish(ctx context.Context, rc *runContext, run *domain.RunState, err error) {
	now := time.Now().UTC()
	run.CompletedAt = &now

	eventType := domain.EventTypeRunCompleted
	switch {
	case err == nil:
		run.Status = domain.RunStatusCompleted
	case errors.Is(err, context.Canceled) && (rc.cancelled.Load() || ctx.Err() != nil):
		run.Status = domain.RunStatusCancelled
		eventType = domain.EventTypeRunCancelled
	default:
		run.Status = domain.RunStatusFailed
		eventType = domain.EventTypeRunFailed
	}
	if err != nil {
		run.Error = err.Error()
	}

	// The caller's context may already be done; the record must still land.
	recordCtx := context.WithoutCancel(ctx)
	m.saveRun(recordCtx, run)

	data := map[string]any{
		"executed":   run.Executed,
		"cache_hits": run.CacheHits,
	}
	if err != nil {
		data["error"] = run.Error
	}
	m.publish(recordCtx, domain.TopicRunEvents, eventType, run.RunID, "", data)

	duration := time.Since(rc.startedAt)
	m.metrics.RecordRunCompleted(string(run.Status), duration)

	fields := []zap.Field{
		zap.String("run_id", run.RunID),
		zap.String("status", string(run.Status)),
		zap.Int("executed", run.Executed),
		zap.Int("cache_hits", run.CacheHits),
		zap.Duration("duration", duration),
	}
	if err != nil {
		m.logger.Info("run finished with error", append(fields, zap.Error(err))...)
		return
	}
	m.logger.Info("run completed", fields...)
}

// GetRun retrieves the record of a run
func (m *Manager) GetRun(ctx context.Context, runID string) (*domain.RunState, error) {
	run, err := m.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns all stored run records, newest first
func (m *Manager) ListRuns(ctx context.Context) ([]*domain.RunState, error) {
	runs, err := m.runs.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].SubmittedAt.After(runs[j].SubmittedAt)
	})
	return runs, nil
}

// ActiveRuns returns the number of runs in progress
func (m *Manager) ActiveRuns() int {
	return int(m.activeCount.Load())
}

// CancelRun cancels an active run. The caller blocked in Get receives an
// error wrapping context.Canceled.
func (m *Manager) CancelRun(ctx context.Context, runID string) error {
	val, ok := m.active.Load(runID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotActive, runID)
	}

	rc := val.(*runContext)
	rc.cancelled.Store(true)
	rc.cancelFunc()

	m.logger.Info("run cancellation requested", zap.String("run_id", runID))
	return nil
}

// Shutdown gracefully shuts down the manager: new runs are refused and
// active ones are cancelled.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down orchestrator manager")
	m.closed.Store(true)

	m.active.Range(func(key, value interface{}) bool {
		rc := value.(*runContext)
		rc.cancelled.Store(true)
		rc.cancelFunc()
		return true
	})

	// Wait for cancelled runs to record their final state
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for m.activeCount.Load() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("shutdown timeout with %d active runs", m.activeCount.Load())
		case <-ticker.C:
		}
	}

	m.logger.Info("orchestrator manager shut down complete")
	return nil
}

func (m *Manager) saveRun(ctx context.Context, run *domain.RunState) {
	if err := m.runs.SaveRun(ctx, run); err != nil {
		m.logger.Error("failed to save run",
			zap.String("run_id", run.RunID),
			zap.Error(err))
	}
}

// publish publishes an event to the event bus
func (m *Manager) publish(ctx context.Context, topic string, eventType domain.EventType, runID, key string, data map[string]any) {
	event := &domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		RunID:     runID,
		Key:       key,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	// Events describe what already happened; a cancelled run still reports it.
	if err := m.eventBus.Publish(context.WithoutCancel(ctx), topic, event); err != nil {
		m.logger.Error("failed to publish event",
			zap.String("run_id", runID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

func unique(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
