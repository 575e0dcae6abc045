package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the dagoml scheduler service
type Config struct {
	// Server configuration
	HTTPPort int    `env:"DAGOML_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"DAGOML_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis configuration
	Redis RedisConfig

	// Result cache configuration
	Cache CacheConfig

	// Event bus configuration
	Events EventsConfig

	// Scheduler worker configuration
	Scheduler SchedulerConfig

	// Timeouts
	Timeouts TimeoutConfig

	// Demo workload run at startup
	Demo DemoConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// CacheConfig selects where computed task results are cached
type CacheConfig struct {
	Backend string        `env:"CACHE_BACKEND" envDefault:"memory"`
	TTL     time.Duration `env:"CACHE_TTL" envDefault:"24h"`
	// RunTTL bounds how long run records are kept in Redis
	RunTTL time.Duration `env:"CACHE_RUN_TTL" envDefault:"168h"`
}

// EventsConfig selects the event bus implementation
type EventsConfig struct {
	Backend       string `env:"EVENTS_BACKEND" envDefault:"memory"`
	ConsumerGroup string `env:"EVENTS_CONSUMER_GROUP" envDefault:"dagoml"`
}

// SchedulerConfig holds worker pool configuration
type SchedulerConfig struct {
	Workers             int           `env:"SCHEDULER_WORKERS" envDefault:"4"`
	HealthCheckInterval time.Duration `env:"SCHEDULER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	RunTimeout      time.Duration `env:"TIMEOUT_RUN" envDefault:"3600s"` // 1 hour
	TaskTimeout     time.Duration `env:"TIMEOUT_TASK" envDefault:"300s"` // 5 minutes
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// DemoConfig describes the workload cmd/dagoml runs through the scheduler on startup
type DemoConfig struct {
	Enabled   bool    `env:"DEMO_ENABLED" envDefault:"true"`
	Seed      int64   `env:"DEMO_SEED" envDefault:"42"`
	C         float64 `env:"DEMO_C" envDefault:"1000"`
	ChunkSize int     `env:"DEMO_CHUNK_SIZE" envDefault:"16"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom reads configuration from the given variables instead of the
// process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	switch c.Cache.Backend {
	case BackendMemory, BackendRedis, BackendNone:
	default:
		return fmt.Errorf("invalid cache backend: %s (must be memory, redis, or none)", c.Cache.Backend)
	}
	switch c.Events.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("invalid events backend: %s (must be memory or redis)", c.Events.Backend)
	}

	// Redis is only required when a backend uses it
	if c.UsesRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler worker count must be at least 1")
	}
	if c.Timeouts.TaskTimeout <= 0 || c.Timeouts.RunTimeout <= 0 {
		return fmt.Errorf("run and task timeouts must be positive")
	}
	if c.Demo.Enabled && c.Demo.ChunkSize < 1 {
		return fmt.Errorf("demo chunk size must be at least 1")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// UsesRedis reports whether any configured backend needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.Cache.Backend == BackendRedis || c.Events.Backend == BackendRedis
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
