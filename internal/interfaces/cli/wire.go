package cli

import (
	"github.com/turtacn/dockprep/internal/application/pipeline"
	"github.com/turtacn/dockprep/internal/config"
	"github.com/turtacn/dockprep/internal/domain/docking"
	"github.com/turtacn/dockprep/internal/infrastructure/database/postgres"
	"github.com/turtacn/dockprep/internal/infrastructure/database/redis"
	"github.com/turtacn/dockprep/internal/infrastructure/engine"
	"github.com/turtacn/dockprep/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/dockprep/internal/infrastructure/protonate"
	"github.com/turtacn/dockprep/internal/infrastructure/rcsb"
	"github.com/turtacn/dockprep/internal/infrastructure/storage/minio"
	dtypes "github.com/turtacn/dockprep/pkg/types/docking"
)

func dockingScoring(s string) dtypes.ScoringFunction {
	return dtypes.ScoringFunction(s)
}

// Services aggregates the wired application services for the command tree.
type Services struct {
	Fetcher   pipeline.StructureFetcher
	Receptors *pipeline.ReceptorService
	Ligands   *pipeline.LigandService
	Dock      *pipeline.DockService
	Pool      *pipeline.Pool

	// Runs is nil unless persistence is enabled.
	Runs postgres.RunRepository

	// Consumer configuration for the worker command; only meaningful when
	// events are enabled.
	ConsumerConfig kafka.ConsumerConfig
	EventsEnabled  bool

	closers []func() error
}

// Close releases infrastructure connections in reverse construction order.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// buildServices wires the full pipeline from configuration.  Optional
// infrastructure is only dialed when its feature gate is enabled, so the CLI
// works standalone against nothing but the RCSB API and a local engine
// binary.
func buildServices(cfg *config.Config, log logging.Logger) (*Services, error) {
	svcs := &Services{
		ConsumerConfig: cfg.Consumer,
		EventsEnabled:  cfg.EventsEnabled,
	}

	collector, err := prometheus.NewMetricsCollector(cfg.Metrics, log)
	if err != nil {
		return nil, err
	}
	metrics := prometheus.NewPipelineMetrics(collector)

	fetcher := rcsb.NewFetcher(&cfg.Fetcher, log)
	protonator := protonate.NewReduce(cfg.Protonate, log)

	engineCfg := docking.EngineConfig{
		BinaryPath:     cfg.Engine.BinaryPath,
		Scoring:        dockingScoring(cfg.Engine.Scoring),
		Exhaustiveness: cfg.Engine.Exhaustiveness,
		Seed:           cfg.Engine.Seed,
		CPU:            cfg.Engine.CPU,
		Timeout:        cfg.Engine.Timeout,
	}
	executor, err := engine.NewExecutor(engineCfg, log)
	if err != nil {
		return nil, err
	}

	workspace := pipeline.NewWorkspace(cfg.Pipeline.WorkDir, cfg.Pipeline.KeepWorkDirs, log)

	opts := pipeline.DockServiceOptions{Metrics: metrics}

	if cfg.PersistenceEnabled {
		conn, err := postgres.NewConnection(cfg.Database, log)
		if err != nil {
			return nil, err
		}
		svcs.closers = append(svcs.closers, conn.Close)
		if cfg.Database.MigrationsPath != "" {
			if err := postgres.RunMigrations(conn.DSN(), cfg.Database.MigrationsPath); err != nil {
				svcs.Close()
				return nil, err
			}
		}
		svcs.Runs = postgres.NewRunRepository(conn, log)
		opts.Runs = svcs.Runs

		redisClient, err := redis.NewClient(&cfg.Redis, log)
		if err != nil {
			svcs.Close()
			return nil, err
		}
		svcs.closers = append(svcs.closers, redisClient.Close)
		opts.Locks = redis.NewLockFactory(redisClient, log)
		opts.PoseCache = redis.NewPoseCache(redisClient, log)

		minioClient, err := minio.NewClient(&cfg.Storage, log)
		if err != nil {
			svcs.Close()
			return nil, err
		}
		svcs.closers = append(svcs.closers, minioClient.Close)
		opts.Artifacts = minio.NewArtifactStore(minioClient, log)
	}

	if cfg.EventsEnabled {
		producer, err := kafka.NewProducer(cfg.Producer, log)
		if err != nil {
			svcs.Close()
			return nil, err
		}
		svcs.closers = append(svcs.closers, producer.Close)
		opts.Events = kafka.NewEventPublisher(producer)
	}

	svcs.Fetcher = fetcher
	svcs.Receptors = pipeline.NewReceptorService(fetcher, protonator, metrics, log)
	svcs.Ligands = pipeline.NewLigandService(metrics, log)

	svcs.Dock, err = pipeline.NewDockService(svcs.Receptors, svcs.Ligands,
		executor, engineCfg, workspace, opts, log)
	if err != nil {
		svcs.Close()
		return nil, err
	}

	svcs.Pool, err = pipeline.NewPool(svcs.Dock, pipeline.PoolConfig{
		Concurrency: cfg.Worker.Concurrency,
		QueueDepth:  cfg.Worker.QueueDepth,
		DrainGrace:  cfg.Worker.DrainGrace,
	}, log)
	if err != nil {
		svcs.Close()
		return nil, err
	}
	return svcs, nil
}
