// Package config defines the pipeline's configuration tree.  Infrastructure
// packages own their sub-structs; this package composes, defaults, and
// validates them.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/dockprep/internal/infrastructure/database/postgres"
	"github.com/turtacn/dockprep/internal/infrastructure/database/redis"
	"github.com/turtacn/dockprep/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/dockprep/internal/infrastructure/protonate"
	"github.com/turtacn/dockprep/internal/infrastructure/rcsb"
	"github.com/turtacn/dockprep/internal/infrastructure/storage/minio"
)

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level        string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format       string `mapstructure:"format"` // "json" | "text"
	Output       string `mapstructure:"output"`
	EnableCaller bool   `mapstructure:"enable_caller"`
}

// EngineConfig holds the docking engine invocation parameters.
type EngineConfig struct {
	BinaryPath     string        `mapstructure:"binary_path"`
	Scoring        string        `mapstructure:"scoring"` // "vina" | "ad4"
	Exhaustiveness int           `mapstructure:"exhaustiveness"`
	Seed           int           `mapstructure:"seed"`
	CPU            int           `mapstructure:"cpu"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// PipelineConfig holds preparation tunables shared by the CLI and worker.
type PipelineConfig struct {
	PH                 float64 `mapstructure:"ph"`
	MaxVariants        int     `mapstructure:"max_variants"`
	NumConformers      int     `mapstructure:"num_conformers"`
	ConformerSeed      int64   `mapstructure:"conformer_seed"`
	BoxPadding         float64 `mapstructure:"box_padding"`
	ProtonationMode    string  `mapstructure:"protonation_mode"` // "skip" | "best_effort" | "require"
	WorkDir            string  `mapstructure:"work_dir"`
	KeepWorkDirs       bool    `mapstructure:"keep_work_dirs"`
	EnumerateTautomers bool    `mapstructure:"enumerate_tautomers"`
	EnumerateAcidBase  bool    `mapstructure:"enumerate_acid_base"`
}

// WorkerConfig holds the docking worker pool parameters.
type WorkerConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	QueueDepth  int           `mapstructure:"queue_depth"`
	DrainGrace  time.Duration `mapstructure:"drain_grace"`
}

// Config is the root configuration for the pipeline.
type Config struct {
	Log       LogConfig                  `mapstructure:"log"`
	Fetcher   rcsb.FetcherConfig         `mapstructure:"fetcher"`
	Protonate protonate.ReduceConfig     `mapstructure:"protonate"`
	Engine    EngineConfig               `mapstructure:"engine"`
	Pipeline  PipelineConfig             `mapstructure:"pipeline"`
	Worker    WorkerConfig               `mapstructure:"worker"`
	Database  postgres.PostgresConfig    `mapstructure:"database"`
	Redis     redis.RedisConfig          `mapstructure:"redis"`
	Producer  kafka.ProducerConfig       `mapstructure:"kafka_producer"`
	Consumer  kafka.ConsumerConfig       `mapstructure:"kafka_consumer"`
	Storage   minio.MinIOConfig          `mapstructure:"storage"`
	Metrics   prometheus.CollectorConfig `mapstructure:"metrics"`

	// EventsEnabled gates kafka publishing; CLI-only use runs without a broker.
	EventsEnabled bool `mapstructure:"events_enabled"`

	// PersistenceEnabled gates postgres/redis/minio; CLI-only use works on
	// the local filesystem alone.
	PersistenceEnabled bool `mapstructure:"persistence_enabled"`
}

// Validate returns the first semantic error in a populated Config.  Callers
// treat any error as fatal.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|text", c.Log.Format)
	}

	if c.Engine.BinaryPath == "" {
		return fmt.Errorf("config: engine.binary_path is required")
	}
	switch c.Engine.Scoring {
	case "vina", "ad4":
	default:
		return fmt.Errorf("config: engine.scoring %q is invalid; expected vina|ad4", c.Engine.Scoring)
	}
	if c.Engine.Exhaustiveness < 1 {
		return fmt.Errorf("config: engine.exhaustiveness must be >= 1, got %d", c.Engine.Exhaustiveness)
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("config: engine.timeout must be positive")
	}

	switch c.Pipeline.ProtonationMode {
	case "skip", "best_effort", "require":
	default:
		return fmt.Errorf("config: pipeline.protonation_mode %q is invalid; expected skip|best_effort|require",
			c.Pipeline.ProtonationMode)
	}
	if c.Pipeline.PH <= 0 || c.Pipeline.PH >= 14 {
		return fmt.Errorf("config: pipeline.ph %.2f is out of range (0, 14)", c.Pipeline.PH)
	}
	if c.Pipeline.MaxVariants < 1 {
		return fmt.Errorf("config: pipeline.max_variants must be >= 1, got %d", c.Pipeline.MaxVariants)
	}
	if c.Pipeline.NumConformers < 1 {
		return fmt.Errorf("config: pipeline.num_conformers must be >= 1, got %d", c.Pipeline.NumConformers)
	}
	if c.Pipeline.BoxPadding < 0 {
		return fmt.Errorf("config: pipeline.box_padding must be non-negative")
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be >= 1, got %d", c.Worker.Concurrency)
	}

	if c.PersistenceEnabled {
		if c.Database.Host == "" {
			return fmt.Errorf("config: database.host is required when persistence is enabled")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("config: database.database is required when persistence is enabled")
		}
		if c.Redis.Addr == "" && len(c.Redis.SentinelAddrs) == 0 && len(c.Redis.ClusterAddrs) == 0 {
			return fmt.Errorf("config: redis.addr is required when persistence is enabled")
		}
		if c.Storage.Endpoint == "" {
			return fmt.Errorf("config: storage.endpoint is required when persistence is enabled")
		}
	}

	if c.EventsEnabled && len(c.Producer.Brokers) == 0 {
		return fmt.Errorf("config: kafka_producer.brokers is required when events are enabled")
	}

	return nil
}
