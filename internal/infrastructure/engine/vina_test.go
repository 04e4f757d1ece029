package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/dockprep/internal/domain/docking"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	dtypes "github.com/turtacn/dockprep/pkg/types/docking"
	"github.com/turtacn/dockprep/pkg/errors"
)

const fakePoseOutput = `MODEL 1
REMARK VINA RESULT:    -8.500      0.000      0.000
ATOM      1  C1  LIG A   1       0.000   0.000   0.000  1.00  0.00     0.031 C
ENDMDL
MODEL 2
REMARK VINA RESULT:    -7.200      1.800      2.400
ATOM      1  C1  LIG A   1       0.500   0.000   0.000  1.00  0.00     0.031 C
ENDMDL
`

// fakeEngine writes a shell script standing in for the docking binary.
func fakeEngine(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "vina")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func newExecutor(t *testing.T, binary string, timeout time.Duration) *Executor {
	t.Helper()
	ex, err := NewExecutor(docking.EngineConfig{
		BinaryPath:     binary,
		Scoring:        dtypes.ScoringVina,
		Exhaustiveness: 8,
		Timeout:        timeout,
	}, logging.NewNopLogger())
	require.NoError(t, err)
	return ex
}

func TestDockSuccess(t *testing.T) {
	out := filepath.Join(t.TempDir(), "poses.pdbqt")
	// The script echoes a progress line and writes the pose file given via
	// --out (ninth argument in the fixed argument order).
	script := `echo "Performing docking"
while [ "$1" != "--out" ] && [ $# -gt 0 ]; do shift; done
cat > "$2" <<'EOF'
` + fakePoseOutput + `EOF
`
	ex := newExecutor(t, fakeEngine(t, script), time.Minute)

	inv, err := ex.Dock(context.Background(), Request{
		ReceptorPath: "receptor.pdbqt",
		LigandPath:   "ligand.pdbqt",
		ConfigPath:   "box.txt",
		OutPath:      out,
	})
	require.NoError(t, err)

	require.Len(t, inv.Result.Poses, 2)
	assert.InDelta(t, -8.5, inv.Result.Poses[0].Affinity, 1e-9)
	assert.Contains(t, inv.Diagnostic, "Performing docking")
	assert.Greater(t, inv.Elapsed, time.Duration(0))
}

func TestDockBinaryNotFound(t *testing.T) {
	ex := newExecutor(t, "/nonexistent/path/vina", time.Minute)
	_, err := ex.Dock(context.Background(), Request{OutPath: "out.pdbqt"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeEngineNotFound))
}

func TestDockBareNameUsesLookPath(t *testing.T) {
	ex := newExecutor(t, "definitely-not-a-real-binary", time.Minute)
	_, err := ex.Dock(context.Background(), Request{OutPath: "out.pdbqt"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeEngineNotFound))

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Contains(t, appErr.Detail, "definitely-not-a-real-binary")
}

func TestDockNonZeroExit(t *testing.T) {
	ex := newExecutor(t, fakeEngine(t, `echo "PDBQT parsing error: unknown atom type" >&2
exit 1
`), time.Minute)

	_, err := ex.Dock(context.Background(), Request{OutPath: "out.pdbqt"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeEngineExecution))

	// The engine's own message survives as the diagnostic detail.
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Contains(t, appErr.Detail, "unknown atom type")
}

func TestDockTimeout(t *testing.T) {
	ex := newExecutor(t, fakeEngine(t, "sleep 5\n"), 50*time.Millisecond)

	start := time.Now()
	_, err := ex.Dock(context.Background(), Request{OutPath: "out.pdbqt"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeEngineTimeout))
	// The process is killed at the deadline, not awaited.
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestDockContextCancel(t *testing.T) {
	ex := newExecutor(t, fakeEngine(t, "sleep 5\n"), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := ex.Dock(ctx, Request{OutPath: "out.pdbqt"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeTimeout))
}

func TestDockMalformedEngineOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "poses.pdbqt")
	script := `while [ "$1" != "--out" ] && [ $# -gt 0 ]; do shift; done
echo "garbage, no models" > "$2"
`
	ex := newExecutor(t, fakeEngine(t, script), time.Minute)

	_, err := ex.Dock(context.Background(), Request{OutPath: out})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMalformedOutput))
}

func TestNewExecutorValidatesConfig(t *testing.T) {
	_, err := NewExecutor(docking.EngineConfig{}, logging.NewNopLogger())
	require.Error(t, err)
}
