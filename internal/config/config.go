// Package config provides unified configuration loading for the SmartDoc
// service. Supports YAML files, environment variables, and programmatic
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the SmartDoc service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Model         ModelConfig         `yaml:"model"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Store         StoreConfig         `yaml:"store"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
}

// ModelConfig holds inference backend settings.
type ModelConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// SchedulerConfig holds batch formation settings.
type SchedulerConfig struct {
	MaxBatchSize         int           `yaml:"max_batch_size"`
	MemoryBudgetBytes    int64         `yaml:"memory_budget_bytes"`
	MaxRequestBytes      int64         `yaml:"max_request_bytes"`
	FormationWindow      time.Duration `yaml:"batch_formation_window"`
	MaxConcurrentBatches int           `yaml:"max_concurrent_batches"`
}

// PipelineConfig holds per-task processing settings.
type PipelineConfig struct {
	MaxRetries      int           `yaml:"max_retries"`
	FailurePolicy   string        `yaml:"failure_policy"` // failFast or bestEffort
	RequestDeadline time.Duration `yaml:"request_deadline"`
	MergeGapPx      float64       `yaml:"merge_gap_px"`
}

// StoreConfig holds task store settings.
type StoreConfig struct {
	Driver string        `yaml:"driver"` // memory or redis
	TTL    time.Duration `yaml:"ttl"`
	Redis  RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json or console
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8000,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      60 * time.Second,
			GracefulShutdown: 15 * time.Second,
			MaxUploadBytes:   50 << 20,
		},
		Model: ModelConfig{
			Endpoint:       "http://localhost:9000",
			Timeout:        120 * time.Second,
			MaxRetries:     3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
		Scheduler: SchedulerConfig{
			MaxBatchSize:         16,
			MemoryBudgetBytes:    256 << 20,
			MaxRequestBytes:      512 << 20,
			FormationWindow:      50 * time.Millisecond,
			MaxConcurrentBatches: 1,
		},
		Pipeline: PipelineConfig{
			MaxRetries:      1,
			FailurePolicy:   "bestEffort",
			RequestDeadline: 120 * time.Second,
			MergeGapPx:      50,
		},
		Store: StoreConfig{
			Driver: "memory",
			TTL:    time.Hour,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load reads configuration from the given YAML file (optional) and applies
// environment overrides. A .env file in the working directory is honored.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides configuration from SMARTDOC_* environment variables.
func (c *Config) applyEnv() {
	setString(&c.Server.Host, "SMARTDOC_HOST")
	setInt(&c.Server.Port, "SMARTDOC_PORT")
	setString(&c.Model.Endpoint, "SMARTDOC_MODEL_ENDPOINT")
	setInt(&c.Scheduler.MaxBatchSize, "SMARTDOC_MAX_BATCH_SIZE")
	setInt64(&c.Scheduler.MemoryBudgetBytes, "SMARTDOC_MEMORY_BUDGET_BYTES")
	setInt(&c.Scheduler.MaxConcurrentBatches, "SMARTDOC_MAX_CONCURRENT_BATCHES")
	setDuration(&c.Scheduler.FormationWindow, "SMARTDOC_BATCH_WINDOW")
	setInt(&c.Pipeline.MaxRetries, "SMARTDOC_MAX_RETRIES")
	setString(&c.Pipeline.FailurePolicy, "SMARTDOC_FAILURE_POLICY")
	setDuration(&c.Pipeline.RequestDeadline, "SMARTDOC_REQUEST_DEADLINE")
	setString(&c.Store.Driver, "SMARTDOC_STORE_DRIVER")
	setDuration(&c.Store.TTL, "SMARTDOC_TASK_TTL")
	setString(&c.Store.Redis.Addr, "SMARTDOC_REDIS_ADDR")
	setString(&c.Store.Redis.Password, "SMARTDOC_REDIS_PASSWORD")
	setInt(&c.Store.Redis.DB, "SMARTDOC_REDIS_DB")
	setString(&c.Observability.LogLevel, "SMARTDOC_LOG_LEVEL")
	setString(&c.Observability.LogFormat, "SMARTDOC_LOG_FORMAT")
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Scheduler.MaxBatchSize < 1 || c.Scheduler.MaxBatchSize > 64 {
		return fmt.Errorf("max_batch_size must be in [1,64], got %d", c.Scheduler.MaxBatchSize)
	}
	if c.Scheduler.MemoryBudgetBytes <= 0 {
		return fmt.Errorf("memory_budget_bytes must be positive")
	}
	if c.Scheduler.MaxConcurrentBatches < 1 {
		return fmt.Errorf("max_concurrent_batches must be at least 1")
	}
	if c.Scheduler.FormationWindow <= 0 {
		return fmt.Errorf("batch_formation_window must be positive")
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	switch c.Pipeline.FailurePolicy {
	case "failFast", "bestEffort":
	default:
		return fmt.Errorf("failure_policy must be failFast or bestEffort, got %q", c.Pipeline.FailurePolicy)
	}
	switch c.Store.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("store driver must be memory or redis, got %q", c.Store.Driver)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
