package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/turtacn/dockprep/internal/domain/docking"
	"github.com/turtacn/dockprep/internal/infrastructure/database/postgres"
	"github.com/turtacn/dockprep/internal/infrastructure/database/redis"
	"github.com/turtacn/dockprep/internal/infrastructure/engine"
	"github.com/turtacn/dockprep/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/dockprep/internal/infrastructure/storage/minio"
	"github.com/turtacn/dockprep/pkg/errors"
)

// EngineRunner invokes the external docking engine.  Satisfied by
// engine.Executor; swappable in tests.
type EngineRunner interface {
	Dock(ctx context.Context, req engine.Request) (*engine.Invocation, error)
}

// DockInput is one end-to-end docking request.
type DockInput struct {
	Accession string
	SMILES    string
	Box       BoxInput

	Receptor ReceptorInput // Accession field ignored; taken from above
	Ligand   LigandInput   // SMILES field ignored; taken from above
}

// DockOutput is the orchestrator's result: the persisted run aggregate and
// the ranked poses.
type DockOutput struct {
	Run    *docking.Run
	Result *docking.Result

	// Diagnostic is the engine's console output, returned even on success.
	Diagnostic string

	// CacheHit reports whether the poses came from the pose cache rather
	// than a fresh engine invocation.
	CacheHit bool
}

// DockServiceOptions carries the optional infrastructure.  Nil fields are
// skipped: without a repository runs are not persisted, without a lock
// factory mutual exclusion is process-local only, and so on.  Events default
// to the no-op publisher.
type DockServiceOptions struct {
	Runs      postgres.RunRepository
	Locks     redis.LockFactory
	PoseCache redis.PoseCache
	Artifacts minio.ArtifactStore
	Events    kafka.EventPublisher
	Metrics   *prometheus.PipelineMetrics
}

// DockService orchestrates the full pipeline: receptor preparation, ligand
// preparation, box resolution, engine execution, and run lifecycle
// bookkeeping.
type DockService struct {
	receptors *ReceptorService
	ligands   *LigandService
	runner    EngineRunner
	engineCfg docking.EngineConfig
	workspace *Workspace

	runs      postgres.RunRepository
	locks     redis.LockFactory
	poseCache redis.PoseCache
	artifacts minio.ArtifactStore
	events    kafka.EventPublisher
	metrics   *prometheus.PipelineMetrics

	logger logging.Logger
}

// NewDockService wires the orchestrator.
func NewDockService(receptors *ReceptorService, ligands *LigandService,
	runner EngineRunner, engineCfg docking.EngineConfig, workspace *Workspace,
	opts DockServiceOptions, log logging.Logger) (*DockService, error) {
	if receptors == nil || ligands == nil || runner == nil || workspace == nil {
		return nil, errors.InvalidParam("dock service requires receptor, ligand, engine and workspace components")
	}
	if err := engineCfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Events == nil {
		opts.Events = kafka.NopEventPublisher{}
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &DockService{
		receptors: receptors,
		ligands:   ligands,
		runner:    runner,
		engineCfg: engineCfg,
		workspace: workspace,
		runs:      opts.Runs,
		locks:     opts.Locks,
		poseCache: opts.PoseCache,
		artifacts: opts.Artifacts,
		events:    opts.Events,
		metrics:   opts.Metrics,
		logger:    log,
	}, nil
}

// Dock runs the whole pipeline for one receptor+ligand+box combination.  The
// run aggregate is persisted through every lifecycle transition; failures are
// recorded with their classification and diagnostics before the error is
// returned.
func (s *DockService) Dock(ctx context.Context, input DockInput) (*DockOutput, error) {
	recIn := input.Receptor
	recIn.Accession = input.Accession
	receptor, err := s.receptors.Prepare(ctx, recIn)
	if err != nil {
		return nil, err
	}

	box, err := ResolveBox(input.Box, receptor.Source)
	if err != nil {
		return nil, err
	}

	ligIn := input.Ligand
	ligIn.SMILES = input.SMILES
	prepared, err := s.ligands.Prepare(ctx, ligIn)
	if err != nil {
		return nil, err
	}

	run, err := docking.NewRun(input.Accession, input.SMILES, box, s.engineCfg)
	if err != nil {
		return nil, err
	}
	if s.runs != nil {
		if err := s.runs.Save(ctx, run); err != nil {
			return nil, err
		}
	}

	if s.locks != nil {
		lock := s.locks.ForRun(run.Key())
		if err := lock.TryAcquire(ctx); err != nil {
			return nil, err
		}
		defer func() {
			if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil {
				s.logger.Warn("failed to release run lock",
					logging.String("run_id", run.ID.String()),
					logging.Err(rerr))
			}
		}()
	}

	if err := run.Start(); err != nil {
		return nil, err
	}
	s.updateRun(ctx, run)
	s.publish(ctx, s.events.RunStarted, run)

	start := time.Now()
	out := &DockOutput{Run: run}
	result, err := s.executePoses(ctx, run, receptor, prepared, box, out)
	elapsed := time.Since(start)

	if err != nil {
		if ferr := run.Fail(err, out.Diagnostic); ferr != nil {
			s.logger.Warn("run state transition rejected", logging.Err(ferr))
		}
		s.updateRun(ctx, run)
		s.publish(ctx, s.events.RunFailed, run)
		if s.metrics != nil {
			s.metrics.RecordRun(run.Status.String(), elapsed)
		}
		return nil, err
	}

	if cerr := run.Complete(*result, out.Diagnostic); cerr != nil {
		return nil, cerr
	}
	s.updateRun(ctx, run)
	s.publish(ctx, s.events.RunCompleted, run)
	if s.metrics != nil {
		s.metrics.RecordRun(run.Status.String(), elapsed)
		s.metrics.RecordPoses(run.PoseCount, result.Best().Affinity)
	}

	out.Result = result
	s.logger.Info("docking run finished",
		logging.String("run_id", run.ID.String()),
		logging.Int("poses", run.PoseCount),
		logging.Float64("best_affinity", result.Best().Affinity),
		logging.Bool("cache_hit", out.CacheHit),
		logging.Duration("elapsed", elapsed))
	return out, nil
}

// executePoses obtains the ranked poses, consulting the pose cache when one
// is configured.  Concurrent identical runs collapse onto one engine
// invocation via GetOrCompute.
func (s *DockService) executePoses(ctx context.Context, run *docking.Run,
	receptor *PreparedReceptor, prepared *PreparedLigand, box docking.GridBox,
	out *DockOutput) (*docking.Result, error) {

	if s.poseCache == nil {
		return s.invokeEngine(ctx, run, receptor, prepared, box, out)
	}

	computed := false
	result, err := s.poseCache.GetOrCompute(ctx, run.Key(),
		func(ctx context.Context) (*docking.Result, error) {
			computed = true
			return s.invokeEngine(ctx, run, receptor, prepared, box, out)
		})
	if err != nil {
		return nil, err
	}
	out.CacheHit = !computed
	if s.metrics != nil {
		s.metrics.RecordPoseCache(out.CacheHit)
	}
	return result, nil
}

// invokeEngine materializes the prepared inputs in the run workspace, shells
// out to the engine, and archives the artifacts.
func (s *DockService) invokeEngine(ctx context.Context, run *docking.Run,
	receptor *PreparedReceptor, prepared *PreparedLigand, box docking.GridBox,
	out *DockOutput) (*docking.Result, error) {

	dir, err := s.workspace.RunDir(run.ID)
	if err != nil {
		return nil, err
	}
	defer s.workspace.Cleanup(run.ID)

	variant := prepared.Best()
	req := engine.Request{
		ReceptorPath: filepath.Join(dir, "receptor.pdbqt"),
		LigandPath:   filepath.Join(dir, "ligand.pdbqt"),
		ConfigPath:   filepath.Join(dir, "box.conf"),
		OutPath:      filepath.Join(dir, "poses.pdbqt"),
	}
	files := map[string]string{
		req.ReceptorPath: receptor.Rigid,
		req.LigandPath:   variant.PDBQT,
		req.ConfigPath:   box.ConfigText(),
		// Corner markers let the search volume be inspected in a viewer.
		filepath.Join(dir, "box.pdb"): box.CornersPDB(),
	}
	if receptor.Flex != "" {
		req.FlexPath = filepath.Join(dir, "flex.pdbqt")
		files[req.FlexPath] = receptor.Flex
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to write engine input")
		}
	}

	inv, err := s.runner.Dock(ctx, req)
	if inv != nil {
		out.Diagnostic = inv.Diagnostic
	}
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok && out.Diagnostic == "" {
			out.Diagnostic = appErr.Detail
		}
		return nil, err
	}

	s.archiveArtifacts(ctx, run, receptor, variant, inv)
	return inv.Result, nil
}

// archiveArtifacts stores the run's inputs and outputs in object storage.
// Archival failures are logged, not fatal: the poses are already in hand.
func (s *DockService) archiveArtifacts(ctx context.Context, run *docking.Run,
	receptor *PreparedReceptor, variant PreparedVariant, inv *engine.Invocation) {
	if s.artifacts == nil {
		return
	}
	runID := run.ID.String()

	if _, err := s.artifacts.PutReceptor(ctx, run.Accession,
		[]byte(receptor.Rigid), []byte(receptor.Flex)); err != nil {
		s.logger.Warn("failed to archive receptor", logging.Err(err))
	}
	if _, err := s.artifacts.PutLigand(ctx, runID, variant.Label,
		[]byte(variant.PDBQT)); err != nil {
		s.logger.Warn("failed to archive ligand", logging.Err(err))
	}
	if data, err := os.ReadFile(inv.Result.SourcePath); err == nil {
		if ref, err := s.artifacts.PutPoses(ctx, runID, data); err != nil {
			s.logger.Warn("failed to archive poses", logging.Err(err))
		} else {
			inv.Result.SourcePath = ref.Key
		}
	}
	if inv.Diagnostic != "" {
		if _, err := s.artifacts.PutEngineLog(ctx, runID, []byte(inv.Diagnostic)); err != nil {
			s.logger.Warn("failed to archive engine log", logging.Err(err))
		}
	}
}

func (s *DockService) updateRun(ctx context.Context, run *docking.Run) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Update(ctx, run); err != nil {
		s.logger.Warn("failed to persist run state",
			logging.String("run_id", run.ID.String()),
			logging.String("status", run.Status.String()),
			logging.Err(err))
	}
}

func (s *DockService) publish(ctx context.Context,
	fn func(context.Context, *docking.Run) error, run *docking.Run) {
	if err := fn(ctx, run); err != nil {
		s.logger.Warn("failed to publish run event",
			logging.String("run_id", run.ID.String()),
			logging.String("status", run.Status.String()),
			logging.Err(err))
	}
}
