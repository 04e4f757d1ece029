package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
log:
  level: debug
  format: text
engine:
  binary_path: /opt/vina/bin/vina
  scoring: vina
  exhaustiveness: 16
  timeout: 5m
pipeline:
  ph: 7.0
  max_variants: 4
  protonation_mode: require
worker:
  concurrency: 2
`

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dockprep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromYAML(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "/opt/vina/bin/vina", cfg.Engine.BinaryPath)
	assert.Equal(t, 16, cfg.Engine.Exhaustiveness)
	assert.Equal(t, 5*time.Minute, cfg.Engine.Timeout)
	assert.Equal(t, 7.0, cfg.Pipeline.PH)
	assert.Equal(t, 4, cfg.Pipeline.MaxVariants)
	assert.Equal(t, "require", cfg.Pipeline.ProtonationMode)
	assert.Equal(t, 2, cfg.Worker.Concurrency)

	// Unset keys are defaulted.
	assert.Equal(t, DefaultNumConformers, cfg.Pipeline.NumConformers)
	assert.Equal(t, DefaultWorkerQueueDepth, cfg.Worker.QueueDepth)
	assert.Equal(t, DefaultMetricsNamespace, cfg.Metrics.Namespace)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DOCKPREP_ENGINE_BINARY_PATH", "/usr/local/bin/qvina")
	t.Setenv("DOCKPREP_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfigFile(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/qvina", cfg.Engine.BinaryPath)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadFromEnv_AllDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultEngineBinary, cfg.Engine.BinaryPath)
	assert.Equal(t, DefaultEngineScoring, cfg.Engine.Scoring)
	assert.Equal(t, DefaultPH, cfg.Pipeline.PH)
	assert.Equal(t, DefaultProtonation, cfg.Pipeline.ProtonationMode)
	assert.False(t, cfg.PersistenceEnabled)
	assert.False(t, cfg.EventsEnabled)
}

func TestMustLoad_PanicsOnError(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(filepath.Join(t.TempDir(), "absent.yaml"))
	})
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Log.Format)
	assert.Equal(t, DefaultEngineExhaustiveness, cfg.Engine.Exhaustiveness)
	assert.Equal(t, DefaultEngineTimeout, cfg.Engine.Timeout)
	assert.Equal(t, DefaultMaxVariants, cfg.Pipeline.MaxVariants)
	assert.Equal(t, DefaultBoxPadding, cfg.Pipeline.BoxPadding)
	assert.Equal(t, DefaultWorkerConcurrency, cfg.Worker.Concurrency)

	// Optional infrastructure is not defaulted unless enabled.
	assert.Empty(t, cfg.Database.Host)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Producer.Brokers)
}

func TestApplyDefaults_PersistenceAndEvents(t *testing.T) {
	cfg := Config{PersistenceEnabled: true, EventsEnabled: true}
	ApplyDefaults(&cfg)

	assert.Equal(t, DefaultDBHost, cfg.Database.Host)
	assert.Equal(t, DefaultDBPort, cfg.Database.Port)
	assert.Equal(t, DefaultDBName, cfg.Database.Database)
	assert.Equal(t, DefaultMigrationsPath, cfg.Database.MigrationsPath)
	assert.Equal(t, DefaultRedisAddr, cfg.Redis.Addr)
	assert.Equal(t, DefaultStorageEndpoint, cfg.Storage.Endpoint)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Producer.Brokers)
	assert.Equal(t, cfg.Producer.Brokers, cfg.Consumer.Brokers)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := Config{}
	cfg.Engine.Exhaustiveness = 32
	cfg.Pipeline.PH = 6.5
	ApplyDefaults(&cfg)

	assert.Equal(t, 32, cfg.Engine.Exhaustiveness)
	assert.Equal(t, 6.5, cfg.Pipeline.PH)
}

func validConfig() Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "logfmt" }, "log.format"},
		{"missing binary", func(c *Config) { c.Engine.BinaryPath = "" }, "engine.binary_path"},
		{"bad scoring", func(c *Config) { c.Engine.Scoring = "vinardo" }, "engine.scoring"},
		{"zero exhaustiveness", func(c *Config) { c.Engine.Exhaustiveness = 0 }, "engine.exhaustiveness"},
		{"zero timeout", func(c *Config) { c.Engine.Timeout = 0 }, "engine.timeout"},
		{"bad protonation mode", func(c *Config) { c.Pipeline.ProtonationMode = "always" }, "protonation_mode"},
		{"ph too high", func(c *Config) { c.Pipeline.PH = 14.5 }, "pipeline.ph"},
		{"zero max variants", func(c *Config) { c.Pipeline.MaxVariants = 0 }, "max_variants"},
		{"zero conformers", func(c *Config) { c.Pipeline.NumConformers = 0 }, "num_conformers"},
		{"negative padding", func(c *Config) { c.Pipeline.BoxPadding = -1 }, "box_padding"},
		{"zero concurrency", func(c *Config) { c.Worker.Concurrency = 0 }, "worker.concurrency"},
		{"persistence without db host", func(c *Config) {
			c.PersistenceEnabled = true
			c.Database.Database = "dockprep"
			c.Redis.Addr = "localhost:6379"
			c.Storage.Endpoint = "localhost:9000"
		}, "database.host"},
		{"persistence without redis", func(c *Config) {
			c.PersistenceEnabled = true
			c.Database.Host = "localhost"
			c.Database.Database = "dockprep"
			c.Storage.Endpoint = "localhost:9000"
		}, "redis.addr"},
		{"events without brokers", func(c *Config) { c.EventsEnabled = true }, "kafka_producer.brokers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
