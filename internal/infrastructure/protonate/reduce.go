// Package protonate adds hydrogens to receptor structures by shelling out
// to a reduce-compatible external tool.
package protonate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/turtacn/dockprep/internal/domain/structure"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dockprep/pkg/errors"
)

// Protonator adds hydrogens to a structure.  Implementations must leave the
// input untouched and return a new structure.
type Protonator interface {
	Protonate(ctx context.Context, st *structure.Structure) (*structure.Structure, error)

	// Available reports whether the underlying tool can run at all; callers
	// in best-effort mode consult it to skip the step quietly.
	Available() bool
}

type ReduceConfig struct {
	BinaryPath string        `mapstructure:"binary_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
	WorkDir    string        `mapstructure:"work_dir"`
}

// Reduce runs the reduce program: the structure is written to a temp PDB
// file, the tool emits the hydrogenated model on stdout, and the output is
// parsed back into a structure.
type Reduce struct {
	config ReduceConfig
	logger logging.Logger

	lookPath func(string) (string, error)
}

func NewReduce(cfg ReduceConfig, log logging.Logger) *Reduce {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "reduce"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Reduce{config: cfg, logger: log, lookPath: exec.LookPath}
}

func (r *Reduce) Available() bool {
	_, err := r.resolve()
	return err == nil
}

func (r *Reduce) resolve() (string, error) {
	p := r.config.BinaryPath
	if filepath.Base(p) != p {
		if _, err := os.Stat(p); err != nil {
			return "", errors.ProtonationUnavailable(
				fmt.Sprintf("protonation tool not found at %s", p))
		}
		return p, nil
	}
	resolved, err := r.lookPath(p)
	if err != nil {
		return "", errors.ProtonationUnavailable(
			fmt.Sprintf("protonation tool %q not on PATH", p))
	}
	return resolved, nil
}

func (r *Reduce) Protonate(ctx context.Context, st *structure.Structure) (*structure.Structure, error) {
	binary, err := r.resolve()
	if err != nil {
		return nil, err
	}

	dir := r.config.WorkDir
	if dir == "" {
		dir = os.TempDir()
	}
	in, err := os.CreateTemp(dir, "protonate-*.pdb")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create protonation input")
	}
	defer os.Remove(in.Name())

	// Some builds of the tool refuse models without a unit cell record, so
	// a placeholder P1 cell is added when the source had none.
	model := st
	if model.Cryst1() == "" {
		model = model.WithCryst1("CRYST1    1.000    1.000    1.000  90.00  90.00  90.00 P 1           1")
	}
	if err := structure.WritePDB(in, model); err != nil {
		in.Close()
		return nil, err
	}
	if err := in.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to write protonation input")
	}

	runCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, binary, "-BUILD", in.Name())
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, errors.ProtonationUnavailable(
				fmt.Sprintf("protonation tool exceeded %s budget", r.config.Timeout))
		}
		return nil, errors.ProtonationUnavailable(
			fmt.Sprintf("protonation tool failed: %v", err)).WithDetail(stderr.String())
	}

	out, err := structure.Parse(&stdout)
	if err != nil {
		return nil, errors.ProtonationUnavailable("protonation tool produced unparseable output").
			WithCause(err)
	}

	r.logger.Info("structure protonated",
		logging.Int("atoms_in", st.Len()),
		logging.Int("atoms_out", out.Len()),
		logging.Duration("elapsed", time.Since(start)))
	return out, nil
}
