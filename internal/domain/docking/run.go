package docking

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/turtacn/dockprep/pkg/errors"
	"github.com/turtacn/dockprep/pkg/types/common"
	dtypes "github.com/turtacn/dockprep/pkg/types/docking"
)

// ─────────────────────────────────────────────────────────────────────────────
// EngineConfig
// ─────────────────────────────────────────────────────────────────────────────

// EngineConfig carries the engine invocation parameters for one run.  The
// engine binary path is an explicit configuration value threaded in from the
// caller; it is never read from ambient process state.
type EngineConfig struct {
	// BinaryPath is the docking engine executable.
	BinaryPath string

	// Scoring selects the scoring function.
	Scoring dtypes.ScoringFunction

	// Exhaustiveness is the engine's search effort (vina default 8).
	Exhaustiveness int

	// Seed fixes the engine's random seed; 0 lets the engine choose.
	Seed int

	// CPU bounds the engine's worker threads; 0 lets the engine choose.
	CPU int

	// Timeout is the wall-clock budget for one invocation.
	Timeout time.Duration
}

// Validate checks the config before any process is spawned.
func (c EngineConfig) Validate() error {
	if c.BinaryPath == "" {
		return errors.InvalidParam("engine binary path must be set")
	}
	if !c.Scoring.IsValid() {
		return errors.InvalidParam("unsupported scoring function: " + c.Scoring.String())
	}
	if c.Exhaustiveness < 0 {
		return errors.InvalidParam("exhaustiveness must be non-negative")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Run — persisted docking-run aggregate
// ─────────────────────────────────────────────────────────────────────────────

// Run is the aggregate root for one docking invocation: its inputs, its
// lifecycle state, and a summary of its outcome.  Runs are persisted so that
// failed docks keep their diagnostic text and are never silently retried.
type Run struct {
	ID common.ID

	// Inputs
	Accession      string
	LigandSMILES   string
	Box            GridBox
	Scoring        dtypes.ScoringFunction
	Exhaustiveness int
	Seed           int

	// Lifecycle
	Status     dtypes.RunStatus
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time

	// Outcome
	Diagnostic   string
	FailureCode  string
	PoseCount    int
	BestAffinity *float64

	// PosePath is the artifact key of the stored pose file.
	PosePath string
}

// NewRun constructs a pending Run for the given inputs.
func NewRun(accession, smiles string, box GridBox, cfg EngineConfig) (*Run, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Scoring.IsValid() {
		return nil, errors.InvalidParam("unsupported scoring function: " + cfg.Scoring.String())
	}
	return &Run{
		ID:             common.NewID(),
		Accession:      accession,
		LigandSMILES:   smiles,
		Box:            box,
		Scoring:        cfg.Scoring,
		Exhaustiveness: cfg.Exhaustiveness,
		Seed:           cfg.Seed,
		Status:         dtypes.RunPending,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// Key returns the deterministic mutual-exclusion key for this run's
// receptor+ligand+box combination.  Two runs with identical inputs share a
// key and must not execute concurrently.
func (r *Run) Key() string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%.3f,%.3f,%.3f|%.3f,%.3f,%.3f|%s",
		r.Accession, r.LigandSMILES,
		r.Box.CenterX, r.Box.CenterY, r.Box.CenterZ,
		r.Box.SizeX, r.Box.SizeY, r.Box.SizeZ,
		r.Scoring)))
	return hex.EncodeToString(h[:])
}

// Start transitions the run to running.
func (r *Run) Start() error {
	if r.Status != dtypes.RunPending {
		return errors.New(errors.CodeConflict, "run is not pending").
			WithDetail(r.Status.String())
	}
	now := time.Now().UTC()
	r.Status = dtypes.RunRunning
	r.StartedAt = &now
	return nil
}

// Complete records a successful outcome.
func (r *Run) Complete(res Result, diagnostic string) error {
	if r.Status != dtypes.RunRunning {
		return errors.New(errors.CodeConflict, "run is not running").
			WithDetail(r.Status.String())
	}
	now := time.Now().UTC()
	r.Status = dtypes.RunSucceeded
	r.FinishedAt = &now
	r.Diagnostic = diagnostic
	r.PoseCount = len(res.Poses)
	if len(res.Poses) > 0 {
		best := res.Best().Affinity
		r.BestAffinity = &best
	}
	r.PosePath = res.SourcePath
	return nil
}

// Fail records a failed outcome, keeping the failure classification and any
// captured diagnostic text.
func (r *Run) Fail(cause error, diagnostic string) error {
	if r.Status.IsTerminal() {
		return errors.New(errors.CodeConflict, "run already finished").
			WithDetail(r.Status.String())
	}
	now := time.Now().UTC()
	r.Status = dtypes.RunFailed
	r.FinishedAt = &now
	r.Diagnostic = diagnostic
	r.FailureCode = errors.GetCode(cause).String()
	return nil
}
