package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/dagoml/pkg/graph"
	"github.com/aescanero/dagoml/pkg/ports"
	"github.com/huandu/go-clone"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrPoolStopped is returned by Submit once the pool is shutting down.
var ErrPoolStopped = errors.New("worker pool stopped")

// Task execution statuses, used as metric labels
const (
	TaskStatusSuccess = "success"
	TaskStatusFailed  = "failed"
)

// Job is one task execution request
type Job struct {
	// Ctx scopes the execution; cancelling it abandons the task.
	Ctx   context.Context
	RunID string
	Key   string
	Task  graph.Task
	// Args are the task arguments with references already resolved.
	Args []any
	// Done receives exactly one Result. It must be buffered so that a
	// worker never blocks on a caller that stopped listening.
	Done chan<- Result
}

// Result is the outcome of a Job
type Result struct {
	RunID    string
	Key      string
	TaskName string
	Value    any
	Err      error
	Duration time.Duration
	// Shared is set when the value came from a concurrent execution of
	// the same key.
	Shared bool
}

// Pool manages a pool of worker goroutines
type Pool struct {
	size        int
	taskTimeout time.Duration
	metrics     ports.MetricsCollector
	logger      *zap.Logger
	health      *HealthMonitor

	jobs    chan Job
	flights singleflight.Group

	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool
func NewPool(
	size int,
	taskTimeout time.Duration,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:        size,
		taskTimeout: taskTimeout,
		metrics:     metrics,
		logger:      logger,
		jobs:        make(chan Job, size*2),
		workers:     make([]*worker, size),
		ctx:         ctx,
		cancel:      cancel,
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start starts the worker pool
func (p *Pool) Start() error {
	if p.size < 1 {
		return fmt.Errorf("worker pool size must be at least 1, got %d", p.size)
	}
	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(p.ctx)
	}

	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Submit queues a job. It blocks while the queue is full and fails when the
// job's context is done or the pool is stopping.
func (p *Pool) Submit(job Job) error {
	if job.Ctx == nil {
		job.Ctx = context.Background()
	}
	if job.Task.Func == nil {
		return fmt.Errorf("task %s has no function", job.Key)
	}
	if p.ctx.Err() != nil {
		return ErrPoolStopped
	}

	select {
	case p.jobs <- job:
		return nil
	case <-job.Ctx.Done():
		return job.Ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolStopped
	}
}

// Shutdown gracefully shuts down the worker pool
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.health.Stop()

	// Cancel context to signal workers to stop
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// Health returns the pool's health monitor
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// Done is closed when the pool starts shutting down
func (p *Pool) Done() <-chan struct{} {
	return p.ctx.Done()
}

// Size returns the configured number of workers
func (p *Pool) Size() int {
	return p.size
}

// run is the main worker loop
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Debug("worker started", zap.String("worker_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.setStatus(WorkerStatusStopped)
			w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
			return
		case job := <-w.pool.jobs:
			w.handleJob(job)
		}
	}
}

func (w *worker) setStatus(s WorkerStatus) {
	w.mu.Lock()
	w.status = s
	if s == WorkerStatusBusy {
		w.lastJob = time.Now()
	}
	w.mu.Unlock()
}

// handleJob executes a job and delivers its result
func (w *worker) handleJob(job Job) {
	w.setStatus(WorkerStatusBusy)
	defer w.setStatus(WorkerStatusIdle)

	start := time.Now()
	value, shared, err := w.pool.execute(job)
	duration := time.Since(start)

	status := TaskStatusSuccess
	if err != nil {
		status = TaskStatusFailed
	}
	w.pool.metrics.RecordTaskExecuted(job.Task.Name, status, duration)

	fields := []zap.Field{
		zap.String("worker_id", w.id),
		zap.String("run_id", job.RunID),
		zap.String("key", job.Key),
		zap.String("task", job.Task.Name),
		zap.Bool("shared", shared),
		zap.Duration("duration", duration),
	}
	if err != nil {
		w.pool.logger.Debug("task failed", append(fields, zap.Error(err))...)
	} else {
		w.pool.logger.Debug("task completed", fields...)
	}

	job.Done <- Result{
		RunID:    job.RunID,
		Key:      job.Key,
		TaskName: job.Task.Name,
		Value:    value,
		Err:      err,
		Duration: duration,
		Shared:   shared,
	}
}

// execute runs the job's task, sharing the execution with any concurrent job
// for the same key. A shared execution that was cancelled by another run is
// retried alone.
func (p *Pool) execute(job Job) (any, bool, error) {
	ch := p.flights.DoChan(job.Key, func() (any, error) {
		return p.runTask(job)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-job.Ctx.Done():
		return nil, false, job.Ctx.Err()
	}

	if res.Shared && isContextError(res.Err) && job.Ctx.Err() == nil {
		v, err := p.runTask(job)
		return v, false, err
	}
	if res.Shared && res.Err == nil {
		// every sharer receives the same value; each run gets its own copy
		return clone.Clone(res.Val), true, nil
	}
	return res.Val, res.Shared, res.Err
}

type outcome struct {
	value any
	err   error
}

// runTask runs the task function under the per-task timeout. Errors returned
// by the task function are passed through unchanged.
func (p *Pool) runTask(job Job) (any, error) {
	ctx := job.Ctx
	if p.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.taskTimeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("task %s (%s) panicked: %v", job.Key, job.Task.Name, r)}
			}
		}()
		v, err := job.Task.Func(ctx, job.Args)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && job.Ctx.Err() == nil {
			return nil, fmt.Errorf("task %s (%s) timed out after %s: %w",
				job.Key, job.Task.Name, p.taskTimeout, ctx.Err())
		}
		return nil, ctx.Err()
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
