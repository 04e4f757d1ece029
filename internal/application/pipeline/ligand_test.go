package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/dockprep/pkg/errors"
)

func TestLigandPrepare_Ethanol(t *testing.T) {
	svc := NewLigandService(nil, nil)

	prepared, err := svc.Prepare(context.Background(), LigandInput{SMILES: "CCO"})
	require.NoError(t, err)

	require.NotEmpty(t, prepared.Variants)
	assert.Empty(t, prepared.Failures)

	best := prepared.Best()
	assert.NotEmpty(t, best.Label)
	assert.Equal(t, 3, best.HeavyAtoms)
	assert.Contains(t, best.PDBQT, "ROOT")
	assert.Contains(t, best.PDBQT, "TORSDOF")
}

func TestLigandPrepare_EmptySMILES(t *testing.T) {
	svc := NewLigandService(nil, nil)

	_, err := svc.Prepare(context.Background(), LigandInput{SMILES: ""})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidSMILES))
}

func TestLigandPrepare_InvalidSMILES(t *testing.T) {
	svc := NewLigandService(nil, nil)

	_, err := svc.Prepare(context.Background(), LigandInput{SMILES: "C(C"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidSMILES))
}

func TestLigandPrepare_AcidBaseVariants(t *testing.T) {
	svc := NewLigandService(nil, nil)

	// Acetic acid is almost fully deprotonated at pH 7.4; enumeration
	// should yield both states with the anion more probable.
	prepared, err := svc.Prepare(context.Background(), LigandInput{
		SMILES:            "CC(=O)O",
		PH:                7.4,
		EnumerateAcidBase: true,
		MaxVariants:       4,
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(prepared.Variants), 2)

	best := prepared.Best()
	for _, v := range prepared.Variants[1:] {
		assert.GreaterOrEqual(t, best.Probability, v.Probability)
	}
}

func TestLigandPrepare_MaxVariantsCap(t *testing.T) {
	svc := NewLigandService(nil, nil)

	prepared, err := svc.Prepare(context.Background(), LigandInput{
		SMILES:            "NCC(=O)O", // glycine: amine + carboxyl sites
		EnumerateAcidBase: true,
		MaxVariants:       2,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(prepared.Variants), 2)
}

func TestLigandPrepare_Deterministic(t *testing.T) {
	svc := NewLigandService(nil, nil)
	input := LigandInput{SMILES: "CCCO", Seed: 42}

	first, err := svc.Prepare(context.Background(), input)
	require.NoError(t, err)
	second, err := svc.Prepare(context.Background(), input)
	require.NoError(t, err)

	require.Equal(t, len(first.Variants), len(second.Variants))
	assert.Equal(t, first.Best().PDBQT, second.Best().PDBQT)
}

func TestLigandPrepare_Cancelled(t *testing.T) {
	svc := NewLigandService(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Prepare(ctx, LigandInput{SMILES: "CCO"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeTimeout))
}

func TestLigandPrepare_ImatinibSingleVariant(t *testing.T) {
	svc := NewLigandService(nil, nil)

	// Imatinib at physiological pH, no enumeration flags: the preparation
	// must yield exactly one variant with a usable encoding.
	const imatinib = "Cc1ccc(NC(=O)c2ccc(CN3CCN(C)CC3)cc2)cc1Nc1nccc(-c2cccnc2)n1"
	out, err := svc.Prepare(context.Background(), LigandInput{
		SMILES: imatinib,
		PH:     7.4,
	})
	require.NoError(t, err)
	require.Len(t, out.Variants, 1)
	assert.Empty(t, out.Failures)

	best := out.Best()
	assert.NotEmpty(t, best.PDBQT)
	assert.Contains(t, best.PDBQT, "ROOT")
	assert.Greater(t, best.HeavyAtoms, 30)
}
