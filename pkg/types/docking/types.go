// Package docking holds the shared enumerations of the docking pipeline:
// protonation modes, engine scoring functions, and run lifecycle states.
package docking

// ─────────────────────────────────────────────────────────────────────────────
// ProtonationMode
// ─────────────────────────────────────────────────────────────────────────────

// ProtonationMode controls how the receptor preparer handles hydrogen
// addition.  The mode is always an explicit caller choice; there is no
// ambient fallback behaviour.
type ProtonationMode string

const (
	// ProtonationSkip leaves the structure unprotonated.
	ProtonationSkip ProtonationMode = "skip"

	// ProtonationBestEffort attempts protonation; on failure the preparer
	// degrades to the unprotonated structure and sets a warning flag on the
	// result instead of failing.
	ProtonationBestEffort ProtonationMode = "best_effort"

	// ProtonationRequire attempts protonation; any failure is fatal.
	ProtonationRequire ProtonationMode = "require"
)

// IsValid reports whether the mode is one of the three declared values.
func (m ProtonationMode) IsValid() bool {
	switch m {
	case ProtonationSkip, ProtonationBestEffort, ProtonationRequire:
		return true
	}
	return false
}

func (m ProtonationMode) String() string { return string(m) }

// ─────────────────────────────────────────────────────────────────────────────
// ScoringFunction
// ─────────────────────────────────────────────────────────────────────────────

// ScoringFunction selects the engine's scoring model.
type ScoringFunction string

const (
	ScoringVina ScoringFunction = "vina"
	ScoringAD4  ScoringFunction = "ad4"
)

// IsValid reports whether the scoring function is supported.
func (s ScoringFunction) IsValid() bool {
	return s == ScoringVina || s == ScoringAD4
}

func (s ScoringFunction) String() string { return string(s) }

// ─────────────────────────────────────────────────────────────────────────────
// RunStatus
// ─────────────────────────────────────────────────────────────────────────────

// RunStatus is the lifecycle state of a persisted docking run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// IsValid reports whether the status is a declared lifecycle state.
func (s RunStatus) IsValid() bool {
	switch s {
	case RunPending, RunRunning, RunSucceeded, RunFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the run can no longer change state.
func (s RunStatus) IsTerminal() bool {
	return s == RunSucceeded || s == RunFailed
}

func (s RunStatus) String() string { return string(s) }
