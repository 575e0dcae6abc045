package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/dagoml/internal/application/orchestrator"
	"github.com/aescanero/dagoml/internal/application/workers"
	"github.com/aescanero/dagoml/internal/config"
	eventsmemory "github.com/aescanero/dagoml/pkg/adapters/events/memory"
	eventsredis "github.com/aescanero/dagoml/pkg/adapters/events/redis"
	"github.com/aescanero/dagoml/pkg/adapters/metrics/prometheus"
	storagememory "github.com/aescanero/dagoml/pkg/adapters/storage/memory"
	storageredis "github.com/aescanero/dagoml/pkg/adapters/storage/redis"
	"github.com/aescanero/dagoml/pkg/api/grpc"
	"github.com/aescanero/dagoml/pkg/api/http"
	"github.com/aescanero/dagoml/pkg/api/websocket"
	"github.com/aescanero/dagoml/pkg/ports"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "dagoml",
		Short:        "Lazy estimator graphs and the scheduler service that runs them",
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler service until SIGINT or SIGTERM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	root.AddCommand(serveCmd, newDemoCommand(), &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("dagoml %s (built %s)\n", Version, BuildTime)
		},
	})
	root.RunE = serveCmd.RunE

	return root
}

func serve(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting dagoml scheduler",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *goredis.Client
	if cfg.UsesRedis() {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	results, runs := buildStores(cfg, redisClient, logger)

	eventBus, err := buildEventBus(cfg, redisClient, logger)
	if err != nil {
		return err
	}

	metricsCollector := prometheus.NewCollector(nil)

	workerPool := workers.NewPool(
		cfg.Scheduler.Workers,
		cfg.Timeouts.TaskTimeout,
		metricsCollector,
		logger,
		cfg.Scheduler.HealthCheckInterval,
	)
	if err := workerPool.Start(); err != nil {
		return err
	}

	manager := orchestrator.NewManager(
		workerPool,
		results,
		runs,
		eventBus,
		metricsCollector,
		orchestrator.NewValidator(orchestrator.DefaultMaxTasks),
		logger,
		cfg.Timeouts.RunTimeout,
	)

	httpServer := http.NewServer(&http.Config{
		Port:   cfg.HTTPPort,
		Runs:   manager,
		Health: workerPool.Health(),
		Logger: logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(eventBus, logger))

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:     cfg.GRPCPort,
		Checker:  workerPool.Health(),
		Interval: cfg.Scheduler.HealthCheckInterval,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("dagoml scheduler started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("workers", cfg.Scheduler.Workers),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("events_backend", cfg.Events.Backend))

	if cfg.Demo.Enabled {
		go func() {
			if err := runDemo(ctx, cfg.Demo, manager, logger); err != nil {
				logger.Error("demo workload failed", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	// Runs must record their final state before the workers go away
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", zap.Error(err))
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("dagoml scheduler shut down complete")
	return nil
}

// buildStores selects the result cache and run store. Run records follow the
// cache backend, with memory standing in when caching is disabled.
func buildStores(cfg *config.Config, client *goredis.Client, logger *zap.Logger) (ports.ResultStore, ports.RunStore) {
	switch cfg.Cache.Backend {
	case config.BackendRedis:
		store := storageredis.NewStore(client, cfg.Cache.TTL, cfg.Cache.RunTTL, logger)
		return store, store
	case config.BackendNone:
		return nil, storagememory.NewStore()
	default:
		store := storagememory.NewStore()
		return store, store
	}
}

func buildEventBus(cfg *config.Config, client *goredis.Client, logger *zap.Logger) (ports.EventBus, error) {
	if cfg.Events.Backend == config.BackendRedis {
		hostname, _ := os.Hostname()
		return eventsredis.NewStreamsEventBus(
			client,
			cfg.Events.ConsumerGroup,
			fmt.Sprintf("dagoml-%s-%d", hostname, os.Getpid()),
			logger,
		)
	}
	return eventsmemory.NewEventBus(), nil
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
