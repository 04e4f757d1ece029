// Package engine runs an AutoDock-Vina-compatible docking binary as an
// external process and collects its pose output.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/turtacn/dockprep/internal/domain/docking"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dockprep/pkg/errors"
)

// Request describes one engine invocation.  All paths are local files
// prepared by the pipeline.
type Request struct {
	ReceptorPath string
	FlexPath     string
	LigandPath   string
	ConfigPath   string
	OutPath      string
}

// Invocation is the outcome of a completed engine run: the parsed poses plus
// the engine's own console output for diagnostics.
type Invocation struct {
	Result     *docking.Result
	Diagnostic string
	Elapsed    time.Duration
}

// Executor shells out to the configured docking binary.
type Executor struct {
	config docking.EngineConfig
	logger logging.Logger

	// lookPath is swappable for tests.
	lookPath func(string) (string, error)
}

func NewExecutor(cfg docking.EngineConfig, log logging.Logger) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Executor{config: cfg, logger: log, lookPath: exec.LookPath}, nil
}

// resolveBinary turns the configured engine path into an executable path,
// consulting PATH for bare names.
func (e *Executor) resolveBinary() (string, error) {
	p := e.config.BinaryPath
	if filepath.Base(p) != p {
		if _, err := os.Stat(p); err != nil {
			return "", errors.EngineNotFound(p)
		}
		return p, nil
	}
	resolved, err := e.lookPath(p)
	if err != nil {
		return "", errors.EngineNotFound(p)
	}
	return resolved, nil
}

// Dock runs the engine for one request.  The run is bounded by the
// configured timeout and by ctx; either one expiring kills the process.  The
// engine's combined output is always returned, success or failure, so
// callers can persist it as the run diagnostic.
func (e *Executor) Dock(ctx context.Context, req Request) (*Invocation, error) {
	binary, err := e.resolveBinary()
	if err != nil {
		return nil, err
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if e.config.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	args := e.buildArgs(req)
	cmd := exec.CommandContext(runCtx, binary, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	e.logger.Info("docking engine starting",
		logging.String("binary", binary),
		logging.String("ligand", req.LigandPath),
		logging.Duration("timeout", e.config.Timeout))

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)
	diagnostic := output.String()

	if runErr != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			e.logger.Warn("docking engine timed out",
				logging.Duration("elapsed", elapsed),
				logging.String("ligand", req.LigandPath))
			return nil, errors.EngineTimeout(
				fmt.Sprintf("engine exceeded %s budget", e.config.Timeout)).
				WithDetail(diagnostic)
		}
		if ctx.Err() == context.Canceled {
			return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "docking run cancelled")
		}
		return nil, errors.EngineExecution("engine exited with failure", diagnostic).
			WithCause(runErr)
	}

	result, err := docking.ParsePoseFile(req.OutPath)
	if err != nil {
		return nil, err
	}

	e.logger.Info("docking engine finished",
		logging.Duration("elapsed", elapsed),
		logging.Int("poses", len(result.Poses)),
		logging.Float64("best_affinity", result.Poses[0].Affinity))

	return &Invocation{Result: &result, Diagnostic: diagnostic, Elapsed: elapsed}, nil
}

func (e *Executor) buildArgs(req Request) []string {
	args := []string{
		"--receptor", req.ReceptorPath,
		"--ligand", req.LigandPath,
		"--config", req.ConfigPath,
		"--out", req.OutPath,
		"--scoring", string(e.config.Scoring),
	}
	if req.FlexPath != "" {
		args = append(args, "--flex", req.FlexPath)
	}
	if e.config.Exhaustiveness > 0 {
		args = append(args, "--exhaustiveness", strconv.Itoa(e.config.Exhaustiveness))
	}
	if e.config.Seed != 0 {
		args = append(args, "--seed", strconv.Itoa(e.config.Seed))
	}
	if e.config.CPU > 0 {
		args = append(args, "--cpu", strconv.Itoa(e.config.CPU))
	}
	return args
}
