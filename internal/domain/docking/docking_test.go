package docking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/dockprep/internal/domain/structure"
	"github.com/turtacn/dockprep/pkg/errors"
	dtypes "github.com/turtacn/dockprep/pkg/types/docking"
)

func refStructure(t *testing.T) *structure.Structure {
	t.Helper()
	s, err := structure.ParseString(`HETATM    1  C1  STI A 201       0.000   0.000   0.000  1.00  0.00           C
HETATM    2  C2  STI A 201       2.000   4.000   6.000  1.00  0.00           C
ATOM      3  CA  ALA A   1      50.000  50.000  50.000  1.00  0.00           C
END
`)
	require.NoError(t, err)
	return s
}

func TestCompute_ExplicitMode(t *testing.T) {
	box, err := Compute(BoxSpec{
		Center: &[3]float64{1, 2, 3},
		Size:   &[3]float64{20, 22, 24},
	}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, box.CenterX, 1e-9)
	assert.InDelta(t, 24.0, box.SizeZ, 1e-9)
}

func TestCompute_ReferenceCentroid(t *testing.T) {
	sel := structure.ResName("STI")
	box, err := Compute(BoxSpec{
		Reference: &sel,
		Size:      &[3]float64{20, 20, 20},
	}, refStructure(t))
	require.NoError(t, err)
	// centroid = arithmetic mean of the two STI atoms
	assert.InDelta(t, 1.0, box.CenterX, 1e-6)
	assert.InDelta(t, 2.0, box.CenterY, 1e-6)
	assert.InDelta(t, 3.0, box.CenterZ, 1e-6)
}

func TestCompute_ReferenceDefaultPadding(t *testing.T) {
	sel := structure.ResName("STI")
	box, err := Compute(BoxSpec{Reference: &sel}, refStructure(t))
	require.NoError(t, err)
	assert.InDelta(t, 2.0+2*DefaultPadding, box.SizeX, 1e-6)
	assert.InDelta(t, 4.0+2*DefaultPadding, box.SizeY, 1e-6)
	assert.InDelta(t, 6.0+2*DefaultPadding, box.SizeZ, 1e-6)
}

func TestCompute_ReferenceCustomPadding(t *testing.T) {
	sel := structure.ResName("STI")
	box, err := Compute(BoxSpec{Reference: &sel, Padding: 8.0}, refStructure(t))
	require.NoError(t, err)
	assert.InDelta(t, 2.0+16.0, box.SizeX, 1e-6)
	assert.InDelta(t, 4.0+16.0, box.SizeY, 1e-6)
	assert.InDelta(t, 6.0+16.0, box.SizeZ, 1e-6)
}

func TestCompute_AmbiguousSpecs(t *testing.T) {
	sel := structure.ResName("STI")
	cases := []struct {
		name string
		spec BoxSpec
	}{
		{"neither mode", BoxSpec{}},
		{"both modes", BoxSpec{Center: &[3]float64{0, 0, 0}, Size: &[3]float64{1, 1, 1}, Reference: &sel}},
		{"center without size", BoxSpec{Center: &[3]float64{0, 0, 0}}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compute(tc.spec, refStructure(t))
			assert.True(t, errors.IsCode(err, errors.CodeAmbiguousBoxSpec), "got %v", err)
		})
	}
}

func TestCompute_EmptyReference(t *testing.T) {
	sel := structure.ResName("ZZZ")
	_, err := Compute(BoxSpec{Reference: &sel}, refStructure(t))
	assert.True(t, errors.IsCode(err, errors.CodeEmptySelection))
}

func TestGridBox_ValidateRejectsNonPositiveExtents(t *testing.T) {
	box := GridBox{SizeX: 10, SizeY: 0, SizeZ: 10}
	err := box.Validate()
	assert.True(t, errors.IsCode(err, errors.CodeInvalidBoxExtent))
}

func TestGridBox_ConfigText(t *testing.T) {
	box := GridBox{CenterX: 15.61, CenterY: 53.38, CenterZ: 15.45, SizeX: 20, SizeY: 20, SizeZ: 20}
	text := box.ConfigText()
	assert.Contains(t, text, "center_x = 15.610")
	assert.Contains(t, text, "size_z = 20.000")
}

func TestGridBox_CornersPDBHasEightCorners(t *testing.T) {
	box := GridBox{SizeX: 10, SizeY: 10, SizeZ: 10}
	lines := strings.Split(strings.TrimSpace(box.CornersPDB()), "\n")
	assert.Len(t, lines, 8)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, "HETATM"))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Pose parsing
// ─────────────────────────────────────────────────────────────────────────────

const validPoseFile = `MODEL 1
REMARK VINA RESULT:      -9.1      0.000      0.000
ATOM      1  C   LIG A   1       0.000   0.000   0.000  1.00  0.00     0.000 C
ENDMDL
MODEL 2
REMARK VINA RESULT:      -8.4      1.912      2.704
ATOM      1  C   LIG A   1       1.000   0.000   0.000  1.00  0.00     0.000 C
ENDMDL
MODEL 3
REMARK VINA RESULT:      -8.4      2.101      3.012
ATOM      1  C   LIG A   1       2.000   0.000   0.000  1.00  0.00     0.000 C
ENDMDL
`

func TestParsePoses_RanksAndScores(t *testing.T) {
	res, err := ParsePoses(strings.NewReader(validPoseFile))
	require.NoError(t, err)
	require.Len(t, res.Poses, 3)

	for i, p := range res.Poses {
		assert.Equal(t, i+1, p.Rank)
	}
	assert.InDelta(t, -9.1, res.Best().Affinity, 1e-9)
	assert.InDelta(t, 1.912, res.Poses[1].RMSDLower, 1e-9)
	assert.Contains(t, res.Poses[0].Block, "MODEL 1")
	assert.Contains(t, res.Poses[0].Block, "REMARK VINA RESULT")
}

func TestParsePoses_EmptyFileIsMalformed(t *testing.T) {
	_, err := ParsePoses(strings.NewReader("REMARK nothing here\n"))
	assert.True(t, errors.IsCode(err, errors.CodeMalformedOutput))
}

func TestParsePoses_NonContiguousRanks(t *testing.T) {
	text := strings.Replace(validPoseFile, "MODEL 2", "MODEL 5", 1)
	_, err := ParsePoses(strings.NewReader(text))
	assert.True(t, errors.IsCode(err, errors.CodeMalformedOutput))
}

func TestParsePoses_ScorelessModelIsMalformed(t *testing.T) {
	// A model without its score remark must be rejected; a defaulted zero
	// affinity would otherwise slip past the ordering check after any
	// negative score.
	text := strings.Replace(validPoseFile,
		"REMARK VINA RESULT:      -8.4      1.912      2.704\n", "", 1)
	_, err := ParsePoses(strings.NewReader(text))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMalformedOutput))
}

func TestParsePoses_NonMonotonicScoresAreCorruption(t *testing.T) {
	text := strings.Replace(validPoseFile, "-8.4      1.912", "-9.9      1.912", 1)
	_, err := ParsePoses(strings.NewReader(text))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMalformedOutput),
		"out-of-order scores must be rejected, not re-sorted")
}

// ─────────────────────────────────────────────────────────────────────────────
// Run lifecycle
// ─────────────────────────────────────────────────────────────────────────────

func newTestRun(t *testing.T) *Run {
	t.Helper()
	run, err := NewRun("1IEP", "CCO",
		GridBox{CenterX: 1, CenterY: 2, CenterZ: 3, SizeX: 20, SizeY: 20, SizeZ: 20},
		EngineConfig{BinaryPath: "/usr/bin/vina", Scoring: dtypes.ScoringVina})
	require.NoError(t, err)
	return run
}

func TestNewRun_Defaults(t *testing.T) {
	run := newTestRun(t)
	assert.False(t, run.ID.IsZero())
	assert.Equal(t, dtypes.RunPending, run.Status)
}

func TestNewRun_RejectsInvalidBox(t *testing.T) {
	_, err := NewRun("1IEP", "CCO", GridBox{}, EngineConfig{Scoring: dtypes.ScoringVina})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidBoxExtent))
}

func TestRun_KeyIsDeterministicPerInputs(t *testing.T) {
	a, b := newTestRun(t), newTestRun(t)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Key(), b.Key(), "identical inputs must share a lock key")

	b.LigandSMILES = "CCN"
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestRun_Lifecycle(t *testing.T) {
	run := newTestRun(t)
	require.NoError(t, run.Start())
	assert.Equal(t, dtypes.RunRunning, run.Status)
	assert.Error(t, run.Start(), "double start must be rejected")

	res, err := ParsePoses(strings.NewReader(validPoseFile))
	require.NoError(t, err)
	require.NoError(t, run.Complete(res, "engine output"))
	assert.Equal(t, dtypes.RunSucceeded, run.Status)
	assert.Equal(t, 3, run.PoseCount)
	require.NotNil(t, run.BestAffinity)
	assert.InDelta(t, -9.1, *run.BestAffinity, 1e-9)
}

func TestRun_FailKeepsDiagnosticAndCode(t *testing.T) {
	run := newTestRun(t)
	require.NoError(t, run.Start())

	cause := errors.EngineExecution("vina exited abnormally", "parse error on line 3")
	require.NoError(t, run.Fail(cause, "parse error on line 3"))

	assert.Equal(t, dtypes.RunFailed, run.Status)
	assert.Equal(t, errors.CodeEngineExecution.String(), run.FailureCode)
	assert.Contains(t, run.Diagnostic, "parse error")
	assert.Error(t, run.Fail(cause, ""), "terminal runs must not transition again")
}

func TestEngineConfig_Validate(t *testing.T) {
	assert.Error(t, EngineConfig{}.Validate())
	assert.Error(t, EngineConfig{BinaryPath: "/x", Scoring: "bogus"}.Validate())
	assert.NoError(t, EngineConfig{BinaryPath: "/x", Scoring: dtypes.ScoringAD4}.Validate())
}
