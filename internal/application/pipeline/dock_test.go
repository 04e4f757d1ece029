package pipeline

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/dockprep/internal/domain/docking"
	"github.com/turtacn/dockprep/internal/infrastructure/database/redis"
	"github.com/turtacn/dockprep/internal/infrastructure/engine"
	"github.com/turtacn/dockprep/pkg/errors"
	"github.com/turtacn/dockprep/pkg/types/common"
	dtypes "github.com/turtacn/dockprep/pkg/types/docking"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test doubles
// ─────────────────────────────────────────────────────────────────────────────

const testPoseFile = `MODEL 1
REMARK VINA RESULT:    -9.1      0.000      0.000
ATOM      1  C   LIG A   1       0.000   0.000   0.000  0.00  0.00    +0.000 C
ENDMDL
MODEL 2
REMARK VINA RESULT:    -8.0      1.200      2.100
ATOM      1  C   LIG A   1       1.000   0.000   0.000  0.00  0.00    +0.000 C
ENDMDL
`

// fakeRunner stands in for the engine executor.  On success it writes a pose
// file to the requested output path, like the real engine does.
type fakeRunner struct {
	mu    sync.Mutex
	err   error
	calls int
	req   engine.Request
}

func (r *fakeRunner) Dock(_ context.Context, req engine.Request) (*engine.Invocation, error) {
	r.mu.Lock()
	r.calls++
	r.req = req
	r.mu.Unlock()
	if r.err != nil {
		return &engine.Invocation{Diagnostic: "engine stderr"}, r.err
	}
	if err := os.WriteFile(req.OutPath, []byte(testPoseFile), 0o644); err != nil {
		return nil, err
	}
	result, err := docking.ParsePoseFile(req.OutPath)
	if err != nil {
		return nil, err
	}
	return &engine.Invocation{Result: &result, Diagnostic: "engine ok", Elapsed: time.Second}, nil
}

// MockRunRepository is a mock implementation of postgres.RunRepository.
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Save(ctx context.Context, run *docking.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) Update(ctx context.Context, run *docking.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) FindByID(ctx context.Context, id common.ID) (*docking.Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*docking.Run), args.Error(1)
}

func (m *MockRunRepository) FindByKey(ctx context.Context, runKey string) (*docking.Run, error) {
	args := m.Called(ctx, runKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*docking.Run), args.Error(1)
}

func (m *MockRunRepository) ListByStatus(ctx context.Context, status dtypes.RunStatus, limit int) ([]*docking.Run, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*docking.Run), args.Error(1)
}

func (m *MockRunRepository) ListRecent(ctx context.Context, limit int) ([]*docking.Run, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*docking.Run), args.Error(1)
}

// recordingEvents captures the lifecycle event sequence.
type recordingEvents struct {
	sequence []string
}

func (e *recordingEvents) RunStarted(_ context.Context, _ *docking.Run) error {
	e.sequence = append(e.sequence, "started")
	return nil
}

func (e *recordingEvents) RunCompleted(_ context.Context, _ *docking.Run) error {
	e.sequence = append(e.sequence, "completed")
	return nil
}

func (e *recordingEvents) RunFailed(_ context.Context, _ *docking.Run) error {
	e.sequence = append(e.sequence, "failed")
	return nil
}

// fakeLock scripts lock acquisition.
type fakeLock struct {
	acquireErr error
	released   bool
}

func (l *fakeLock) TryAcquire(context.Context) error { return l.acquireErr }

func (l *fakeLock) Release(context.Context) error {
	l.released = true
	return nil
}

func (l *fakeLock) Extend(context.Context, time.Duration) (bool, error) { return true, nil }

type fakeLockFactory struct{ lock *fakeLock }

func (f *fakeLockFactory) ForRun(string, ...redis.LockOption) redis.RunLock { return f.lock }

// fakePoseCache serves a canned result without running compute.
type fakePoseCache struct {
	stored *docking.Result
}

func (c *fakePoseCache) Get(context.Context, string) (*docking.Result, error) {
	return c.stored, nil
}

func (c *fakePoseCache) Put(context.Context, string, *docking.Result) error { return nil }

func (c *fakePoseCache) Invalidate(context.Context, string) error { return nil }

func (c *fakePoseCache) GetOrCompute(ctx context.Context, _ string,
	compute func(context.Context) (*docking.Result, error)) (*docking.Result, error) {
	if c.stored != nil {
		return c.stored, nil
	}
	return compute(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

func testEngineConfig() docking.EngineConfig {
	return docking.EngineConfig{
		BinaryPath:     "vina",
		Scoring:        dtypes.ScoringVina,
		Exhaustiveness: 8,
		Timeout:        time.Minute,
	}
}

func testDockInput() DockInput {
	return DockInput{
		Accession: "1ABC",
		SMILES:    "CCO",
		Box: BoxInput{
			Center: &[3]float64{1, 2, 3},
			Size:   &[3]float64{20, 20, 20},
		},
		Receptor: ReceptorInput{ProtonationMode: dtypes.ProtonationSkip},
	}
}

func newDockService(t *testing.T, runner EngineRunner, opts DockServiceOptions) *DockService {
	t.Helper()
	receptors := NewReceptorService(newFileFetcher(t, testReceptorPDB), nil, nil, nil)
	ligands := NewLigandService(nil, nil)
	ws := NewWorkspace(t.TempDir(), false, nil)
	svc, err := NewDockService(receptors, ligands, runner, testEngineConfig(), ws, opts, nil)
	require.NoError(t, err)
	return svc
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestDock_Success(t *testing.T) {
	runner := &fakeRunner{}
	events := &recordingEvents{}
	runs := new(MockRunRepository)
	runs.On("Save", mock.Anything, mock.Anything).Return(nil).Once()
	runs.On("Update", mock.Anything, mock.Anything).Return(nil).Times(2)

	svc := newDockService(t, runner, DockServiceOptions{Runs: runs, Events: events})

	out, err := svc.Dock(context.Background(), testDockInput())
	require.NoError(t, err)

	assert.Equal(t, dtypes.RunSucceeded, out.Run.Status)
	assert.Equal(t, 2, out.Run.PoseCount)
	require.NotNil(t, out.Run.BestAffinity)
	assert.InDelta(t, -9.1, *out.Run.BestAffinity, 1e-9)
	assert.Equal(t, -9.1, out.Result.Best().Affinity)
	assert.Equal(t, "engine ok", out.Diagnostic)
	assert.False(t, out.CacheHit)
	assert.Equal(t, []string{"started", "completed"}, events.sequence)
	assert.Equal(t, 1, runner.calls)

	// The engine saw materialized input files, not in-memory strings.
	assert.NotEmpty(t, runner.req.ReceptorPath)
	assert.NotEmpty(t, runner.req.ConfigPath)

	runs.AssertExpectations(t)
}

func TestDock_EngineFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.EngineExecution("engine exited with failure", "boom")}
	events := &recordingEvents{}

	svc := newDockService(t, runner, DockServiceOptions{Events: events})

	_, err := svc.Dock(context.Background(), testDockInput())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeEngineExecution))
	assert.Equal(t, []string{"started", "failed"}, events.sequence)
}

func TestDock_FailureRecordedOnRun(t *testing.T) {
	runner := &fakeRunner{err: errors.EngineTimeout("engine exceeded 1m0s budget")}
	runs := new(MockRunRepository)
	runs.On("Save", mock.Anything, mock.Anything).Return(nil).Once()

	var final *docking.Run
	runs.On("Update", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		final = args.Get(1).(*docking.Run)
	}).Return(nil).Times(2)

	svc := newDockService(t, runner, DockServiceOptions{Runs: runs})

	_, err := svc.Dock(context.Background(), testDockInput())
	require.Error(t, err)

	require.NotNil(t, final)
	assert.Equal(t, dtypes.RunFailed, final.Status)
	assert.Equal(t, errors.CodeEngineTimeout.String(), final.FailureCode)
	assert.Equal(t, "engine stderr", final.Diagnostic)
	assert.NotNil(t, final.FinishedAt)
	runs.AssertExpectations(t)
}

func TestDock_LockConflict(t *testing.T) {
	lock := &fakeLock{acquireErr: errors.New(errors.CodeRunConflict, "identical run already in progress")}
	runner := &fakeRunner{}
	events := &recordingEvents{}

	svc := newDockService(t, runner, DockServiceOptions{
		Locks:  &fakeLockFactory{lock: lock},
		Events: events,
	})

	_, err := svc.Dock(context.Background(), testDockInput())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeRunConflict))
	assert.Zero(t, runner.calls)
	assert.Empty(t, events.sequence)
}

func TestDock_LockReleasedAfterRun(t *testing.T) {
	lock := &fakeLock{}
	runner := &fakeRunner{}

	svc := newDockService(t, runner, DockServiceOptions{Locks: &fakeLockFactory{lock: lock}})

	_, err := svc.Dock(context.Background(), testDockInput())
	require.NoError(t, err)
	assert.True(t, lock.released)
}

func TestDock_PoseCacheHit(t *testing.T) {
	cached := &docking.Result{
		Poses:      []docking.Pose{{Rank: 1, Affinity: -7.5}},
		SourcePath: "poses/cached.pdbqt",
	}
	runner := &fakeRunner{}

	svc := newDockService(t, runner, DockServiceOptions{PoseCache: &fakePoseCache{stored: cached}})

	out, err := svc.Dock(context.Background(), testDockInput())
	require.NoError(t, err)

	assert.True(t, out.CacheHit)
	assert.Zero(t, runner.calls)
	assert.Equal(t, 1, out.Run.PoseCount)
	assert.Equal(t, dtypes.RunSucceeded, out.Run.Status)
}

func TestDock_PoseCacheMissComputes(t *testing.T) {
	runner := &fakeRunner{}

	svc := newDockService(t, runner, DockServiceOptions{PoseCache: &fakePoseCache{}})

	out, err := svc.Dock(context.Background(), testDockInput())
	require.NoError(t, err)
	assert.False(t, out.CacheHit)
	assert.Equal(t, 1, runner.calls)
}

func TestDock_PreparationFailureSkipsRun(t *testing.T) {
	runner := &fakeRunner{}
	runs := new(MockRunRepository) // no expectations: nothing may be persisted

	svc := newDockService(t, runner, DockServiceOptions{Runs: runs})

	input := testDockInput()
	input.Receptor.Chains = []string{"Z"}
	_, err := svc.Dock(context.Background(), input)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeEmptySelection))
	assert.Zero(t, runner.calls)
	runs.AssertExpectations(t)
}

func TestDock_AmbiguousBox(t *testing.T) {
	svc := newDockService(t, &fakeRunner{}, DockServiceOptions{})

	input := testDockInput()
	input.Box.RefResName = "STI"
	_, err := svc.Dock(context.Background(), input)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeAmbiguousBoxSpec))
}
