package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 16, cfg.Scheduler.MaxBatchSize)
	assert.Equal(t, time.Hour, cfg.Store.TTL)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "bestEffort", cfg.Pipeline.FailurePolicy)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9090
scheduler:
  max_batch_size: 32
  batch_formation_window: 100ms
store:
  driver: redis
  redis:
    addr: redis.internal:6379
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 32, cfg.Scheduler.MaxBatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Scheduler.FormationWindow)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "redis.internal:6379", cfg.Store.Redis.Addr)

	// Unset fields keep defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, time.Hour, cfg.Store.TTL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SMARTDOC_PORT", "7070")
	t.Setenv("SMARTDOC_MAX_BATCH_SIZE", "8")
	t.Setenv("SMARTDOC_FAILURE_POLICY", "failFast")
	t.Setenv("SMARTDOC_BATCH_WINDOW", "25ms")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Scheduler.MaxBatchSize)
	assert.Equal(t, "failFast", cfg.Pipeline.FailurePolicy)
	assert.Equal(t, 25*time.Millisecond, cfg.Scheduler.FormationWindow)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, false},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, false},
		{"batch size zero", func(c *Config) { c.Scheduler.MaxBatchSize = 0 }, false},
		{"batch size over cap", func(c *Config) { c.Scheduler.MaxBatchSize = 65 }, false},
		{"batch size at cap", func(c *Config) { c.Scheduler.MaxBatchSize = 64 }, true},
		{"negative budget", func(c *Config) { c.Scheduler.MemoryBudgetBytes = -1 }, false},
		{"zero admission limit", func(c *Config) { c.Scheduler.MaxConcurrentBatches = 0 }, false},
		{"zero window", func(c *Config) { c.Scheduler.FormationWindow = 0 }, false},
		{"bad policy", func(c *Config) { c.Pipeline.FailurePolicy = "always" }, false},
		{"bad store driver", func(c *Config) { c.Store.Driver = "postgres" }, false},
		{"negative retries", func(c *Config) { c.Pipeline.MaxRetries = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
