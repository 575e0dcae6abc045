package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aescanero/dagoml/internal/application/orchestrator"
	"github.com/aescanero/dagoml/internal/application/workers"
	"github.com/aescanero/dagoml/internal/config"
	eventsmemory "github.com/aescanero/dagoml/pkg/adapters/events/memory"
	"github.com/aescanero/dagoml/pkg/adapters/metrics/prometheus"
	storagememory "github.com/aescanero/dagoml/pkg/adapters/storage/memory"
	"github.com/aescanero/dagoml/pkg/array"
	"github.com/aescanero/dagoml/pkg/datasets"
	"github.com/aescanero/dagoml/pkg/graph"
	"github.com/aescanero/dagoml/pkg/lazy"
	"github.com/aescanero/dagoml/pkg/models/logistic"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// runDemo fits a lazy logistic regression on three blobs and evaluates it
// through scheduler: chunked predict, score, then the concrete model.
func runDemo(ctx context.Context, cfg config.DemoConfig, scheduler graph.Scheduler, logger *zap.Logger) error {
	X, y := datasets.ThreeClass(cfg.Seed)

	base, err := lazy.From(logistic.New(logistic.WithC(cfg.C)))
	if err != nil {
		return fmt.Errorf("failed to wrap estimator: %w", err)
	}
	fitted := base.Fit(X, y, nil)
	logger.Info("demo graph built",
		zap.String("estimator", base.String()),
		zap.String("fit_key", fitted.Key()),
		zap.Int("tasks", fitted.Graph().Len()))

	chunks, err := array.FromDense(X, cfg.ChunkSize)
	if err != nil {
		return fmt.Errorf("failed to chunk demo data: %w", err)
	}

	opt := graph.WithScheduler(scheduler)

	predicted, err := fitted.Predict(chunks).Compute(ctx, opt)
	if err != nil {
		return fmt.Errorf("predict failed: %w", err)
	}
	labels := predicted.(*mat.VecDense)

	score, err := fitted.Score(X, y).Compute(ctx, opt)
	if err != nil {
		return fmt.Errorf("score failed: %w", err)
	}

	model, err := fitted.ToConcrete(ctx, opt)
	if err != nil {
		return fmt.Errorf("failed to materialize model: %w", err)
	}
	nIter := model.(*logistic.LogisticRegression).NIter

	logger.Info("demo workload finished",
		zap.Int("predictions", labels.Len()),
		zap.Int("chunks", chunks.NumChunks()),
		zap.Float64("accuracy", score.(float64)),
		zap.Int("n_iter", nIter))
	return nil
}

func newDemoCommand() *cobra.Command {
	var (
		inline    bool
		poolSize  int
		seed      int64
		chunkSize int
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the demo workload once in-process and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Demo.Seed = seed
			}
			if cmd.Flags().Changed("chunk-size") {
				cfg.Demo.ChunkSize = chunkSize
			}
			if cmd.Flags().Changed("workers") {
				cfg.Scheduler.Workers = poolSize
			}

			logger := initLogger(cfg.LogLevel)
			defer func() { _ = logger.Sync() }()

			if inline {
				return runDemo(cmd.Context(), cfg.Demo, graph.Sync{}, logger)
			}
			return runDemoOnManager(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().BoolVar(&inline, "sync", false, "resolve graphs in the calling goroutine instead of a worker pool")
	cmd.Flags().IntVar(&poolSize, "workers", 4, "worker pool size (overrides SCHEDULER_WORKERS)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "dataset seed (overrides DEMO_SEED)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 16, "rows per chunk (overrides DEMO_CHUNK_SIZE)")
	return cmd
}

// runDemoOnManager runs the demo through a throwaway scheduler built from
// in-memory adapters.
func runDemoOnManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	collector := prometheus.NewCollector(promclient.NewRegistry())
	pool := workers.NewPool(cfg.Scheduler.Workers, cfg.Timeouts.TaskTimeout, collector, logger, 0)
	if err := pool.Start(); err != nil {
		return err
	}

	store := storagememory.NewStore()
	bus := eventsmemory.NewEventBus()
	manager := orchestrator.NewManager(pool, store, store, bus, collector,
		orchestrator.NewValidator(orchestrator.DefaultMaxTasks), logger, cfg.Timeouts.RunTimeout)

	demoErr := runDemo(ctx, cfg.Demo, manager, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Warn("orchestrator shutdown error", zap.Error(err))
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Warn("worker pool shutdown error", zap.Error(err))
	}
	_ = bus.Close()

	if demoErr != nil {
		return demoErr
	}

	runs, err := manager.ListRuns(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		logger.Info("demo run",
			zap.String("run_id", r.RunID),
			zap.String("status", string(r.Status)),
			zap.Int("tasks", r.Tasks),
			zap.Int("executed", r.Executed),
			zap.Int("cache_hits", r.CacheHits))
	}
	return nil
}
