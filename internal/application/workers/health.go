package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthMonitor periodically samples worker states, publishes them as
// metrics and logs health transitions.
type HealthMonitor struct {
	pool     *Pool
	interval time.Duration
	logger   *zap.Logger

	mu          sync.Mutex
	stop        context.CancelFunc
	done        chan struct{}
	lastHealthy bool
}

// HealthStatus is a point-in-time view of the worker pool
type HealthStatus struct {
	TotalWorkers   int       `json:"total_workers"`
	IdleWorkers    int       `json:"idle_workers"`
	BusyWorkers    int       `json:"busy_workers"`
	StoppedWorkers int       `json:"stopped_workers"`
	QueuedJobs     int       `json:"queued_jobs"`
	Healthy        bool      `json:"healthy"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewHealthMonitor creates a monitor for pool. A non-positive interval
// disables periodic sampling; GetStatus still works.
func NewHealthMonitor(pool *Pool, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		pool:        pool,
		interval:    interval,
		logger:      logger,
		lastHealthy: true,
	}
}

// Start begins sampling. Calling Start on a running monitor does nothing.
func (h *HealthMonitor) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil || h.interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.stop = cancel
	h.done = make(chan struct{})
	go h.loop(ctx, h.done)
}

// Stop ends sampling and waits for the loop to exit
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	stop, done := h.stop, h.done
	h.stop, h.done = nil, nil
	h.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-done
}

func (h *HealthMonitor) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sample()
		}
	}
}

// sample records one status reading
func (h *HealthMonitor) sample() {
	status := h.GetStatus()
	h.pool.metrics.RecordWorkerPoolStatus(status.IdleWorkers, status.BusyWorkers, status.StoppedWorkers)

	h.logger.Debug("worker pool sampled",
		zap.Int("idle", status.IdleWorkers),
		zap.Int("busy", status.BusyWorkers),
		zap.Int("stopped", status.StoppedWorkers),
		zap.Int("queued", status.QueuedJobs))

	h.mu.Lock()
	changed := status.Healthy != h.lastHealthy
	h.lastHealthy = status.Healthy
	h.mu.Unlock()

	switch {
	case changed && !status.Healthy:
		h.logger.Warn("worker pool became unhealthy",
			zap.Int("stopped", status.StoppedWorkers),
			zap.Int("total", status.TotalWorkers))
	case changed:
		h.logger.Info("worker pool recovered", zap.Int("total", status.TotalWorkers))
	}

	// A full queue with every worker busy means runs are waiting on capacity.
	if status.TotalWorkers > 0 && status.BusyWorkers == status.TotalWorkers && status.QueuedJobs > 0 {
		h.logger.Warn("worker pool saturated, consider raising SCHEDULER_WORKERS",
			zap.Int("workers", status.TotalWorkers),
			zap.Int("queued", status.QueuedJobs))
	}
}

// GetStatus counts workers by state
func (h *HealthMonitor) GetStatus() *HealthStatus {
	status := &HealthStatus{
		QueuedJobs: len(h.pool.jobs),
		Timestamp:  time.Now(),
	}
	for _, s := range h.pool.GetStatus() {
		status.TotalWorkers++
		switch s {
		case WorkerStatusIdle:
			status.IdleWorkers++
		case WorkerStatusBusy:
			status.BusyWorkers++
		case WorkerStatusStopped:
			status.StoppedWorkers++
		}
	}
	// Busy workers drain the queue on their own; only stopped ones are a fault.
	status.Healthy = status.TotalWorkers > 0 && status.StoppedWorkers == 0
	return status
}

// IsHealthy reports whether every worker is running
func (h *HealthMonitor) IsHealthy() bool {
	return h.GetStatus().Healthy
}
