package protonate

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/dockprep/internal/domain/structure"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dockprep/pkg/errors"
)

const inputPDB = `CRYST1    1.000    1.000    1.000  90.00  90.00  90.00 P 1           1
ATOM      1  N   MET A   1      10.000  10.000  10.000  1.00 20.00           N
ATOM      2  CA  MET A   1      11.000  10.500  10.200  1.00 20.00           C
END
`

func fakeReduce(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tool scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "reduce")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func parseInput(t *testing.T) *structure.Structure {
	t.Helper()
	st, err := structure.ParseString(inputPDB)
	require.NoError(t, err)
	return st
}

func TestProtonateAddsHydrogens(t *testing.T) {
	// The fake tool replays its input and appends one hydrogen.
	script := `cat "$2"
echo "ATOM      3  H   MET A   1      10.300  10.100  10.050  1.00  0.00           H"
`
	r := NewReduce(ReduceConfig{BinaryPath: fakeReduce(t, script)}, logging.NewNopLogger())
	require.True(t, r.Available())

	st := parseInput(t)
	out, err := r.Protonate(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, 3, out.Len())
	assert.Equal(t, 2, st.Len(), "input structure must stay untouched")
	assert.Equal(t, "H", out.At(2).Element)
}

func TestProtonateToolMissing(t *testing.T) {
	r := NewReduce(ReduceConfig{BinaryPath: "/nonexistent/reduce"}, logging.NewNopLogger())
	assert.False(t, r.Available())

	_, err := r.Protonate(context.Background(), parseInput(t))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeProtonationUnavailable))
}

func TestProtonateToolFailure(t *testing.T) {
	script := `echo "could not interpret residue" >&2
exit 2
`
	r := NewReduce(ReduceConfig{BinaryPath: fakeReduce(t, script)}, logging.NewNopLogger())

	_, err := r.Protonate(context.Background(), parseInput(t))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeProtonationUnavailable))

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Contains(t, appErr.Detail, "could not interpret residue")
}

func TestProtonateGarbageOutput(t *testing.T) {
	r := NewReduce(ReduceConfig{BinaryPath: fakeReduce(t, "echo not a pdb file\n")}, logging.NewNopLogger())

	_, err := r.Protonate(context.Background(), parseInput(t))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeProtonationUnavailable))
}

func TestProtonateTimeout(t *testing.T) {
	r := NewReduce(ReduceConfig{
		BinaryPath: fakeReduce(t, "sleep 5\n"),
		Timeout:    50 * time.Millisecond,
	}, logging.NewNopLogger())

	_, err := r.Protonate(context.Background(), parseInput(t))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeProtonationUnavailable))
}
