package config

import "time"

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultEngineBinary         = "vina"
	DefaultEngineScoring        = "vina"
	DefaultEngineExhaustiveness = 8
	DefaultEngineTimeout        = 10 * time.Minute

	DefaultPH            = 7.4
	DefaultMaxVariants   = 8
	DefaultNumConformers = 1
	DefaultBoxPadding    = 4.0
	DefaultProtonation   = "best_effort"

	DefaultWorkerConcurrency = 4
	DefaultWorkerQueueDepth  = 64
	DefaultWorkerDrainGrace  = 30 * time.Second

	DefaultDBHost = "localhost"
	DefaultDBPort = 5432
	DefaultDBName = "dockprep"

	DefaultMigrationsPath = "file://migrations"

	DefaultRedisAddr = "localhost:6379"

	DefaultKafkaBroker = "localhost:9092"

	DefaultStorageEndpoint = "localhost:9000"

	DefaultMetricsNamespace = "dockprep"
)

// ApplyDefaults fills zero-value fields with well-known defaults.  Explicit
// configuration always wins; call after unmarshalling, before Validate.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Engine.BinaryPath == "" {
		cfg.Engine.BinaryPath = DefaultEngineBinary
	}
	if cfg.Engine.Scoring == "" {
		cfg.Engine.Scoring = DefaultEngineScoring
	}
	if cfg.Engine.Exhaustiveness == 0 {
		cfg.Engine.Exhaustiveness = DefaultEngineExhaustiveness
	}
	if cfg.Engine.Timeout == 0 {
		cfg.Engine.Timeout = DefaultEngineTimeout
	}

	if cfg.Pipeline.PH == 0 {
		cfg.Pipeline.PH = DefaultPH
	}
	if cfg.Pipeline.MaxVariants == 0 {
		cfg.Pipeline.MaxVariants = DefaultMaxVariants
	}
	if cfg.Pipeline.NumConformers == 0 {
		cfg.Pipeline.NumConformers = DefaultNumConformers
	}
	if cfg.Pipeline.BoxPadding == 0 {
		cfg.Pipeline.BoxPadding = DefaultBoxPadding
	}
	if cfg.Pipeline.ProtonationMode == "" {
		cfg.Pipeline.ProtonationMode = DefaultProtonation
	}

	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.QueueDepth == 0 {
		cfg.Worker.QueueDepth = DefaultWorkerQueueDepth
	}
	if cfg.Worker.DrainGrace == 0 {
		cfg.Worker.DrainGrace = DefaultWorkerDrainGrace
	}

	if cfg.PersistenceEnabled {
		if cfg.Database.Host == "" {
			cfg.Database.Host = DefaultDBHost
		}
		if cfg.Database.Port == 0 {
			cfg.Database.Port = DefaultDBPort
		}
		if cfg.Database.Database == "" {
			cfg.Database.Database = DefaultDBName
		}
		if cfg.Database.MigrationsPath == "" {
			cfg.Database.MigrationsPath = DefaultMigrationsPath
		}
		if cfg.Redis.Addr == "" && len(cfg.Redis.SentinelAddrs) == 0 && len(cfg.Redis.ClusterAddrs) == 0 {
			cfg.Redis.Addr = DefaultRedisAddr
		}
		if cfg.Storage.Endpoint == "" {
			cfg.Storage.Endpoint = DefaultStorageEndpoint
		}
	}

	if cfg.EventsEnabled && len(cfg.Producer.Brokers) == 0 {
		cfg.Producer.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.EventsEnabled && len(cfg.Consumer.Brokers) == 0 {
		cfg.Consumer.Brokers = cfg.Producer.Brokers
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}
