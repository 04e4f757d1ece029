// Package pipeline provides the application-level services that compose the
// domain and infrastructure pieces into the docking workflow: receptor
// preparation, ligand preparation, grid-box resolution, and run orchestration.
// This package serves as the interface between CLI/worker adapters and domain
// logic.
package pipeline

import (
	"os"
	"path/filepath"

	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dockprep/pkg/errors"
	"github.com/turtacn/dockprep/pkg/types/common"
)

// Workspace hands out per-run scratch directories.  Each run gets a directory
// namespaced by its ID so concurrent runs never share files.
type Workspace struct {
	root   string
	keep   bool
	logger logging.Logger
}

// NewWorkspace creates a workspace manager rooted at dir.  An empty dir falls
// back to the system temp directory.  When keep is true, Cleanup leaves run
// directories in place for post-mortem inspection.
func NewWorkspace(dir string, keep bool, log logging.Logger) *Workspace {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "dockprep")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Workspace{root: dir, keep: keep, logger: log}
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string { return w.root }

// RunDir creates and returns the scratch directory for the given run.
func (w *Workspace) RunDir(runID common.ID) (string, error) {
	if runID.IsZero() {
		return "", errors.InvalidParam("workspace requires a run ID")
	}
	dir := filepath.Join(w.root, runID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "failed to create run workspace")
	}
	return dir, nil
}

// Cleanup removes the run's scratch directory unless the workspace is
// configured to keep them.
func (w *Workspace) Cleanup(runID common.ID) {
	if w.keep || runID.IsZero() {
		return
	}
	dir := filepath.Join(w.root, runID.String())
	if err := os.RemoveAll(dir); err != nil {
		w.logger.Warn("failed to remove run workspace",
			logging.String("dir", dir),
			logging.Err(err))
	}
}
